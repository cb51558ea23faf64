package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"kakao-autopilot/src/imageprep"
	"kakao-autopilot/src/journal"
	"kakao-autopilot/src/workflow"
)

// Content accepts either a string or an array of strings. Arrays are joined with commas.
type Content string

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("content must be a string or an array of strings")
	}
	*c = Content(strings.Join(list, ","))
	return nil
}

type MessageInput struct {
	Type    string  `json:"type"`
	Content Content `json:"content"`
}

type GroupInput struct {
	Username string         `json:"username"`
	Messages []MessageInput `json:"messages"`
}

type SendMessagesRequest struct {
	MessageGroups []GroupInput `json:"message_groups"`
}

// Groups converts the request. Image paths are resolved under imageRoot when
// it is set; a path that cannot be resolved is passed through unchanged so
// the workflow reports it as a skipped item.
func (r SendMessagesRequest) Groups(imageRoot string) []workflow.MessageGroup {
	out := make([]workflow.MessageGroup, len(r.MessageGroups))
	for i, g := range r.MessageGroups {
		msgs := make([]workflow.MessageItem, 0, len(g.Messages))
		for _, m := range g.Messages {
			content := string(m.Content)
			if m.Type == workflow.KindImage && imageRoot != "" {
				content = resolveAll(imageRoot, content)
			}
			msgs = append(msgs, workflow.MessageItem{Kind: m.Type, Content: content})
		}
		out[i] = workflow.MessageGroup{Username: strings.TrimSpace(g.Username), Messages: msgs}
	}
	return out
}

func resolveAll(root, content string) string {
	var parts []string
	for _, p := range strings.Split(content, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := imageprep.ResolveUnderRoot(root, p)
		if err != nil {
			log.Printf("api: %v", err)
			abs = p
		}
		parts = append(parts, abs)
	}
	return strings.Join(parts, ",")
}

// SendMessages delivers a batch of message groups.
// POST /kakao/send-messages
func (h *Handler) SendMessages(c echo.Context) error {
	var req SendMessagesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.MessageGroups == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message_groups is required"})
	}
	groups := req.Groups(h.imageRoot)
	return h.runBatch(c, journal.KindMessageSend, func(ctx context.Context) []workflow.Result {
		return h.auto.SendMessages(ctx, groups)
	})
}
