package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Sender delivers one rendered HTML email and returns the provider message ID.
type Sender interface {
	SendEmail(ctx context.Context, from, to, subject, html string) (string, error)
}

// ResendClient sends email through the Resend API.
type ResendClient struct {
	client      *resend.Client
	apiKey      string
	fromAddress string
}

func NewResendClient(apiKey, fromAddress string) *ResendClient {
	c := &ResendClient{apiKey: apiKey, fromAddress: fromAddress}
	if apiKey != "" {
		c.client = resend.NewClient(apiKey)
	}
	return c
}

// IsEnabled is false when no API key is configured.
func (c *ResendClient) IsEnabled() bool {
	return c.client != nil
}

func (c *ResendClient) GetFromAddress() string {
	return c.fromAddress
}

func (c *ResendClient) SendEmail(ctx context.Context, from, to, subject, html string) (string, error) {
	if !c.IsEnabled() {
		return "", fmt.Errorf("resend client is not configured")
	}
	sent, err := c.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return sent.Id, nil
}
