package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/cardwatch/internal/ports/secondary"
)

// EmailProvider sends through a JSON-over-HTTP transactional mail API.
type EmailProvider struct {
	url    string
	token  string
	from   string
	client *http.Client
}

// NewEmailProvider creates an email provider with a default HTTP client.
func NewEmailProvider(url, token, from string) *EmailProvider {
	return NewEmailProviderWithClient(url, token, from, defaultHTTPClient())
}

// NewEmailProviderWithClient creates an email provider with a custom HTTP client.
func NewEmailProviderWithClient(url, token, from string, client *http.Client) *EmailProvider {
	return &EmailProvider{url: url, token: token, from: from, client: client}
}

type emailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type emailResponse struct {
	MessageID string `json:"message_id"`
}

// Send delivers one email and returns the provider-assigned message ID.
func (p *EmailProvider) Send(ctx context.Context, msg secondary.Message) (secondary.DeliveryResult, error) {
	payload, err := json.Marshal(emailPayload{
		From:    p.from,
		To:      msg.Recipient,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		return secondary.DeliveryResult{}, fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewReader(payload))
	if err != nil {
		return secondary.DeliveryResult{}, fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		derr := transportError(p.Name(), err)
		return secondary.DeliveryResult{ErrorClass: derr.Class}, derr
	}
	defer resp.Body.Close()

	if derr := classifyStatus(p.Name(), resp.StatusCode); derr != nil {
		return secondary.DeliveryResult{ErrorClass: derr.Class}, derr
	}

	var body emailResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		// Accepted but unparseable ack: the mail went out.
		return secondary.DeliveryResult{Success: true}, nil
	}

	return secondary.DeliveryResult{Success: true, ProviderMessageID: body.MessageID}, nil
}

// Name returns "email"
func (p *EmailProvider) Name() string {
	return "email"
}

// Ensure EmailProvider implements the interface
var _ secondary.DeliveryProvider = (*EmailProvider)(nil)
