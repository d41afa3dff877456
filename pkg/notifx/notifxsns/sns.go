package notifxsns

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/trustgate/pkg/notifx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSProvider delivers SMS one-time codes via AWS SNS.
type SNSProvider struct {
	client *sns.Client
}

// NewSNSProvider creates a new SNS code provider.
func NewSNSProvider(client *sns.Client) *SNSProvider {
	return &SNSProvider{client: client}
}

// SendCode publishes the one-time code as a transactional SMS.
func (p *SNSProvider) SendCode(ctx context.Context, msg notifx.CodeMessage) error {
	appName := msg.AppName
	if appName == "" {
		appName = "TrustGate"
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(msg.Destination),
		Message:     aws.String(fmt.Sprintf("%s verification code: %s", appName, msg.Code)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}

	if _, err := p.client.Publish(ctx, input); err != nil {
		return notifx.SendFailed(err).
			WithDetail("channel", string(notifx.ChannelSMS)).
			WithDetail("destination", msg.Destination)
	}
	return nil
}
