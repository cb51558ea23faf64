package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"kakao-autopilot/src/journal"
	"kakao-autopilot/src/workflow"
)

const maxFriendName = 20

type FriendInput struct {
	Username      string `json:"username"`
	Phone         string `json:"phone"`
	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person"`
}

type AddFriendsRequest struct {
	Friends []FriendInput `json:"friends"`
}

// FriendName builds "company-person" capped at 20 runes, cutting the company first.
func FriendName(company, person string) string {
	company, person = strings.TrimSpace(company), strings.TrimSpace(person)
	switch {
	case company == "":
		return person
	case person == "":
		return company
	}
	combined := company + "-" + person
	if len([]rune(combined)) <= maxFriendName {
		return combined
	}
	p := []rune(person)
	cut := maxFriendName - (len(p) + 1)
	if cut <= 0 {
		if len(p) > maxFriendName {
			p = p[:maxFriendName]
		}
		return string(p)
	}
	return string([]rune(company)[:cut]) + "-" + person
}

// Contacts converts request items to workflow contacts. An empty username is
// derived from company and contact person when available.
func (r AddFriendsRequest) Contacts() []workflow.Contact {
	out := make([]workflow.Contact, len(r.Friends))
	for i, f := range r.Friends {
		name := strings.TrimSpace(f.Username)
		if name == "" {
			name = FriendName(f.CompanyName, f.ContactPerson)
		}
		out[i] = workflow.Contact{Username: name, Phone: strings.TrimSpace(f.Phone)}
	}
	return out
}

// AddFriends registers a batch of contacts.
// POST /kakao/add-friends
func (h *Handler) AddFriends(c echo.Context) error {
	var req AddFriendsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Friends == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "friends is required"})
	}
	contacts := req.Contacts()
	return h.runBatch(c, journal.KindFriendAdd, func(ctx context.Context) []workflow.Result {
		return h.auto.AddFriends(ctx, contacts)
	})
}
