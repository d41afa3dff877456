package notifx

import (
	"context"
)

// Channel identifies a one-time-code delivery channel.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// CodeMessage is a one-time code to be delivered out-of-band.
type CodeMessage struct {
	Destination string  `json:"destination"` // phone number or email address
	Code        string  `json:"code"`
	Channel     Channel `json:"channel"`
	AppName     string  `json:"app_name,omitempty"`
}

// CodeSender delivers a one-time code through a single channel.
// Fire-and-forget: implementations report success or failure once and never
// retry on the caller's behalf.
type CodeSender interface {
	SendCode(ctx context.Context, msg CodeMessage) error
}

// Client routes code delivery to the provider registered for each channel.
type Client struct {
	providers map[Channel]CodeSender
}

// NewClient creates a client with per-channel providers. A nil provider
// leaves its channel unconfigured.
func NewClient(email, sms CodeSender) *Client {
	providers := make(map[Channel]CodeSender, 2)
	if email != nil {
		providers[ChannelEmail] = email
	}
	if sms != nil {
		providers[ChannelSMS] = sms
	}
	return &Client{providers: providers}
}

// SendCode dispatches a code through the provider for its channel.
func (c *Client) SendCode(ctx context.Context, msg CodeMessage) error {
	if msg.Destination == "" {
		return notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "empty destination")
	}
	if msg.Code == "" {
		return notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "empty code")
	}

	provider, ok := c.providers[msg.Channel]
	if !ok {
		return notifxErrors.New(ErrNoProvider).WithDetail("channel", string(msg.Channel))
	}
	return provider.SendCode(ctx, msg)
}
