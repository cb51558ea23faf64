// Package client talks to a resident autopilot over its HTTP front door.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kakao-autopilot/src/api"
	"kakao-autopilot/src/singleinstance"
)

// ErrBusy mirrors the resident's 409: another batch holds the desktop.
var ErrBusy = errors.New("resident is busy with another batch")

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	// Batches drive a real UI and can take minutes.
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 30 * time.Minute}}
}

// Discover asks the instance guard on port for the resident's address.
func Discover(ctx context.Context, port int) (*Client, error) {
	info, err := singleinstance.ResidentInfo(ctx, port)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(info, "http://") && !strings.HasPrefix(info, "https://") {
		return nil, fmt.Errorf("resident returned unexpected info %q", info)
	}
	return New(info), nil
}

func (c *Client) AddFriends(ctx context.Context, req api.AddFriendsRequest) (api.BatchResponse, error) {
	return c.post(ctx, "/kakao/add-friends", req)
}

func (c *Client) SendMessages(ctx context.Context, req api.SendMessagesRequest) (api.BatchResponse, error) {
	return c.post(ctx, "/kakao/send-messages", req)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (api.BatchResponse, error) {
	var out api.BatchResponse
	data, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return out, fmt.Errorf("request to resident failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("failed to read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusConflict:
		return out, ErrBusy
	case resp.StatusCode != http.StatusOK:
		return out, fmt.Errorf("resident returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}
