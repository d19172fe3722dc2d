package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/cardwatch/internal/ports/secondary"
)

// ChatProvider posts to a chat webhook (Slack-compatible payload).
type ChatProvider struct {
	webhookURL string
	client     *http.Client
}

// NewChatProvider creates a chat provider with a default HTTP client.
func NewChatProvider(webhookURL string) *ChatProvider {
	return NewChatProviderWithClient(webhookURL, defaultHTTPClient())
}

// NewChatProviderWithClient creates a chat provider with a custom HTTP client.
func NewChatProviderWithClient(webhookURL string, client *http.Client) *ChatProvider {
	return &ChatProvider{webhookURL: webhookURL, client: client}
}

// Send posts the message to the webhook, mentioning the recipient handle.
// Webhooks return no message ID; the result carries only success.
func (p *ChatProvider) Send(ctx context.Context, msg secondary.Message) (secondary.DeliveryResult, error) {
	text := fmt.Sprintf("%s *%s*\n%s", msg.Recipient, msg.Subject, msg.Body)

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return secondary.DeliveryResult{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return secondary.DeliveryResult{}, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		derr := transportError(p.Name(), err)
		return secondary.DeliveryResult{ErrorClass: derr.Class}, derr
	}
	defer resp.Body.Close()

	if derr := classifyStatus(p.Name(), resp.StatusCode); derr != nil {
		return secondary.DeliveryResult{ErrorClass: derr.Class}, derr
	}

	return secondary.DeliveryResult{Success: true}, nil
}

// Name returns "chat"
func (p *ChatProvider) Name() string {
	return "chat"
}

// Ensure ChatProvider implements the interface
var _ secondary.DeliveryProvider = (*ChatProvider)(nil)
