package workflow

import (
	"strings"
	"unicode"
)

type Status string

const (
	StatusSuccess           Status = "success"
	StatusAlreadyRegistered Status = "already_registered"
	StatusNotAllowed        Status = "not_allowed"
	StatusFail              Status = "fail"
	StatusSkip              Status = "skip"
)

const (
	KindText  = "text"
	KindImage = "image"
)

type Contact struct {
	Username string `json:"username"`
	Phone    string `json:"phone"`
}

// DisplayName is the name typed into the add dialog. Contacts without a
// username get a placeholder built from the phone number.
func (c Contact) DisplayName() string {
	if name := strings.TrimSpace(c.Username); name != "" {
		return name
	}
	return PlaceholderName(c.Phone)
}

// PlaceholderName returns "연락처-" followed by the last four digits of phone.
func PlaceholderName(phone string) string {
	var digits []rune
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return "연락처-" + string(digits)
}

type MessageItem struct {
	Kind    string `json:"type"`
	Content string `json:"content"`
}

type MessageGroup struct {
	Username string        `json:"username"`
	Messages []MessageItem `json:"messages"`
}

// ItemResult is the informational outcome of one message item.
// Only item 0 influences the group status.
type ItemResult struct {
	Index  int    `json:"index"`
	Kind   string `json:"type"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type Result struct {
	Key      string       `json:"key"`
	Username string       `json:"username"`
	Phone    string       `json:"phone,omitempty"`
	Status   Status       `json:"status"`
	Reason   string       `json:"reason"`
	Items    []ItemResult `json:"items,omitempty"`
}
