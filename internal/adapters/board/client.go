// Package board is the HTTP adapter for the external task-board API.
package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/cardwatch/internal/ports/secondary"
)

// Client talks to the board's JSON API with bearer auth.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a board client with a default HTTP client.
func NewClient(baseURL, token string) *Client {
	return NewClientWithHTTP(baseURL, token, &http.Client{
		Timeout: 10 * time.Second,
	})
}

// NewClientWithHTTP creates a board client with a custom HTTP client.
func NewClientWithHTTP(baseURL, token string, client *http.Client) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  client,
	}
}

type cardPayload struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	BoardRef  string            `json:"board_ref"`
	Status    string            `json:"status"`
	OpenedAt  time.Time         `json:"opened_at"`
	DueAt     *time.Time        `json:"due_at,omitempty"`
	Assignees []assigneePayload `json:"assignees"`
}

type assigneePayload struct {
	Identity   string `json:"identity"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	ChatHandle string `json:"chat_handle,omitempty"`
}

type listCardsResponse struct {
	Cards   []cardPayload `json:"cards"`
	HasMore bool          `json:"has_more"`
}

type activityPayload struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

type activityResponse struct {
	Activities []activityPayload `json:"activities"`
}

// ListMonitored returns one page of open cards and whether more remain.
func (c *Client) ListMonitored(ctx context.Context, page, pageSize int) ([]*secondary.BoardCard, bool, error) {
	query := url.Values{}
	query.Set("status", "open")
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	var resp listCardsResponse
	if err := c.getJSON(ctx, "/cards?"+query.Encode(), &resp); err != nil {
		return nil, false, err
	}

	cards := make([]*secondary.BoardCard, len(resp.Cards))
	for i, p := range resp.Cards {
		cards[i] = p.toBoardCard()
	}
	return cards, resp.HasMore, nil
}

// ActivitySince returns activity entries strictly after since.
// The since filter is also applied client-side: the engine's correctness
// depends on it, not on the board honoring the query parameter.
func (c *Client) ActivitySince(ctx context.Context, cardID string, since time.Time) ([]secondary.BoardActivity, error) {
	path := fmt.Sprintf("/cards/%s/activity", url.PathEscape(cardID))
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.Format(time.RFC3339))
	}

	var resp activityResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}

	var activities []secondary.BoardActivity
	for _, a := range resp.Activities {
		if !since.IsZero() && !a.Timestamp.After(since) {
			continue
		}
		activities = append(activities, secondary.BoardActivity{
			Author:    a.Author,
			Body:      a.Body,
			Timestamp: a.Timestamp,
		})
	}
	return activities, nil
}

// PostComment posts a comment on the card.
func (c *Client) PostComment(ctx context.Context, cardID, body string) error {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("marshal comment payload: %w", err)
	}

	path := fmt.Sprintf("/cards/%s/comments", url.PathEscape(cardID))
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create comment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", secondary.ErrBoardUnavailable, err)
	}
	defer resp.Body.Close()

	return classifyStatus(resp.StatusCode)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create board request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", secondary.ErrBoardUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode board response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// classifyStatus maps HTTP status codes onto the board error taxonomy:
// auth failures are fatal, server trouble means the board is down for
// this cycle, anything else 4xx is a plain request error.
func classifyStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", secondary.ErrBoardAuth, status)
	case status >= 500 || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", secondary.ErrBoardUnavailable, status)
	default:
		return fmt.Errorf("board request failed: status %d", status)
	}
}

func (p cardPayload) toBoardCard() *secondary.BoardCard {
	card := &secondary.BoardCard{
		ID:       p.ID,
		Name:     p.Name,
		BoardRef: p.BoardRef,
		Open:     p.Status == "open",
		OpenedAt: p.OpenedAt,
	}
	if p.DueAt != nil {
		card.DueAt = *p.DueAt
	}
	for _, a := range p.Assignees {
		card.Recipients = append(card.Recipients, secondary.RecipientRecord{
			Identity:   a.Identity,
			Email:      a.Email,
			Phone:      a.Phone,
			ChatHandle: a.ChatHandle,
		})
	}
	return card
}

// Ensure Client implements the interface
var _ secondary.BoardClient = (*Client)(nil)
