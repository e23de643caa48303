package otpinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/asyncx"
	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/notifx"
)

const smsTemplate = "otp_code"

const defaultSMSBody = `{{.Code}} is your verification code. It is valid for {{.Minutes}} minutes. Do not share it with anyone.`

// NotifxSMSSender delivers codes through a notifx client, retrying transient failures.
type NotifxSMSSender struct {
	client   *notifx.Client
	validFor time.Duration
	senderID string
	attempts int
	backoff  time.Duration
}

type SMSOption func(*NotifxSMSSender)

func WithSenderID(id string) SMSOption {
	return func(s *NotifxSMSSender) { s.senderID = id }
}

// WithRetry sets how many sends are tried and the first backoff delay.
func WithRetry(attempts int, backoff time.Duration) SMSOption {
	return func(s *NotifxSMSSender) {
		s.attempts = attempts
		s.backoff = backoff
	}
}

func NewNotifxSMSSender(client *notifx.Client, validFor time.Duration, opts ...SMSOption) (*NotifxSMSSender, error) {
	s := &NotifxSMSSender{
		client:   client,
		validFor: validFor,
		attempts: 3,
		backoff:  250 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	if err := client.RegisterTemplate(smsTemplate, defaultSMSBody); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *NotifxSMSSender) Send(ctx context.Context, mobileNumber, code string) error {
	data := map[string]interface{}{
		"Code":    code,
		"Minutes": int(s.validFor / time.Minute),
	}
	msg := notifx.SMSMessage{To: mobileNumber, SenderID: s.senderID}

	try := 0
	res, err := asyncx.RetryWithBackoff(ctx, s.attempts, s.backoff, func(ctx context.Context) (notifx.SendResult, error) {
		try++
		res, err := s.client.SendTemplatedSMS(ctx, smsTemplate, data, msg, notifx.WithSMSType(notifx.SMSTransactional))
		if err != nil {
			logx.WithError(err).WithFields(logx.Fields{
				"mobile_number": mobileNumber,
				"attempt":       try,
			}).Warn("sms send failed")
		}
		return res, err
	})
	if err != nil {
		return err
	}

	logx.WithFields(logx.Fields{
		"mobile_number": mobileNumber,
		"message_id":    res.MessageID,
	}).Debug("otp sms sent")
	return nil
}
