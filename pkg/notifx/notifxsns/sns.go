package notifxsns

import (
	"context"
	"strings"

	"github.com/Abraxas-365/otpguard/pkg/notifx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// API is the subset of *sns.Client the provider uses.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSProvider implements notifx.SMSSender by publishing directly to a phone number.
type SNSProvider struct {
	client      API
	countryCode string
	senderID    string
}

// NewSNSProvider creates a new SNS SMS provider. countryCode is prepended to
// national numbers, e.g. "+91".
func NewSNSProvider(client API, countryCode, senderID string) *SNSProvider {
	return &SNSProvider{
		client:      client,
		countryCode: countryCode,
		senderID:    senderID,
	}
}

// SendSMS publishes one message via SNS.
func (p *SNSProvider) SendSMS(ctx context.Context, msg notifx.SMSMessage, opts ...notifx.Option) (notifx.SendResult, error) {
	so := notifx.ApplyOptions(opts)
	phone := p.E164(msg.To)

	senderID := msg.SenderID
	if senderID == "" {
		senderID = p.senderID
	}

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String(so.SMSType),
		},
	}
	if senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(senderID),
		}
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(msg.Body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return notifx.SendResult{To: phone, Error: err.Error()},
			snsErrors.NewWithCause(ErrPublishFailed, err).WithDetail("to", phone)
	}

	return notifx.SendResult{
		MessageID: aws.ToString(out.MessageId),
		To:        phone,
		Success:   true,
	}, nil
}

// E164 prefixes national numbers with the configured country code.
func (p *SNSProvider) E164(number string) string {
	if strings.HasPrefix(number, "+") {
		return number
	}
	return p.countryCode + number
}
