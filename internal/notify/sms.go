package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SMSChannel отправляет SMS через HTTP шлюз: POST {to, text} с Bearer токеном
type SMSChannel struct {
	url    string
	token  string
	client *http.Client
}

func NewSMSChannel(url, token string, client *http.Client) *SMSChannel {
	if client == nil {
		client = http.DefaultClient
	}
	return &SMSChannel{url: url, token: token, client: client}
}

func (c *SMSChannel) Name() string {
	return "sms"
}

type smsRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (c *SMSChannel) Send(ctx context.Context, recipient Recipient, msg Message) error {
	if recipient.Phone == "" {
		return ErrNoAddress
	}

	body, err := json.Marshal(smsRequest{To: recipient.Phone, Text: msg.Text})
	if err != nil {
		return fmt.Errorf("marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	return nil
}
