package notifxses

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/trustgate/pkg/notifx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESProvider delivers email one-time codes via AWS SES.
type SESProvider struct {
	client      *ses.Client
	fromAddress string
	fromName    string
}

// NewSESProvider creates a new SES code provider.
func NewSESProvider(client *ses.Client, fromAddress, fromName string) *SESProvider {
	return &SESProvider{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
	}
}

// SendCode sends the one-time code as a plain-text email.
func (p *SESProvider) SendCode(ctx context.Context, msg notifx.CodeMessage) error {
	appName := msg.AppName
	if appName == "" {
		appName = p.fromName
	}

	subject := fmt.Sprintf("%s verification code", appName)
	body := fmt.Sprintf("Your %s verification code is: %s\n\nIf you did not request this code, ignore this message.", appName, msg.Code)

	input := &ses.SendEmailInput{
		Source: aws.String(fmt.Sprintf("%s <%s>", p.fromName, p.fromAddress)),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Destination},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := p.client.SendEmail(ctx, input); err != nil {
		return notifx.SendFailed(err).
			WithDetail("channel", string(notifx.ChannelEmail)).
			WithDetail("destination", msg.Destination)
	}
	return nil
}
