package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/cardwatch/internal/ports/secondary"
)

// SMSProvider sends through a JSON-over-HTTP SMS API.
type SMSProvider struct {
	url    string
	token  string
	client *http.Client
}

// NewSMSProvider creates an SMS provider with a default HTTP client.
func NewSMSProvider(url, token string) *SMSProvider {
	return NewSMSProviderWithClient(url, token, defaultHTTPClient())
}

// NewSMSProviderWithClient creates an SMS provider with a custom HTTP client.
func NewSMSProviderWithClient(url, token string, client *http.Client) *SMSProvider {
	return &SMSProvider{url: url, token: token, client: client}
}

type smsPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
}

// Send delivers one SMS. The subject is folded into the body since SMS
// has no subject line.
func (p *SMSProvider) Send(ctx context.Context, msg secondary.Message) (secondary.DeliveryResult, error) {
	body := msg.Body
	if msg.Subject != "" {
		body = msg.Subject + "\n" + body
	}

	payload, err := json.Marshal(smsPayload{To: msg.Recipient, Body: body})
	if err != nil {
		return secondary.DeliveryResult{}, fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewReader(payload))
	if err != nil {
		return secondary.DeliveryResult{}, fmt.Errorf("create sms request: %w", err)
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

	var ack smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return secondary.DeliveryResult{Success: true}, nil
	}

	return secondary.DeliveryResult{Success: true, ProviderMessageID: ack.MessageID}, nil
}

// Name returns "sms"
func (p *SMSProvider) Name() string {
	return "sms"
}

// Ensure SMSProvider implements the interface
var _ secondary.DeliveryProvider = (*SMSProvider)(nil)
