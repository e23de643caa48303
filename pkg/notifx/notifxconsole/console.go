package notifxconsole

import (
	"context"
	"strings"

	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/notifx"
	"github.com/google/uuid"
)

// ConsoleProvider prints messages to the terminal via logx. Intended for development and testing.
type ConsoleProvider struct{}

// NewConsoleProvider creates a new console provider.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

// SendSMS logs the message, body included, instead of sending it.
func (p *ConsoleProvider) SendSMS(_ context.Context, msg notifx.SMSMessage, opts ...notifx.Option) (notifx.SendResult, error) {
	so := notifx.ApplyOptions(opts)
	id := uuid.NewString()

	logx.WithFields(logx.Fields{
		"to":         msg.To,
		"sender_id":  msg.SenderID,
		"sms_type":   so.SMSType,
		"message_id": id,
	}).Infof("notifx/console: sms sent (dev mode): %s", msg.Body)

	return notifx.SendResult{MessageID: id, To: msg.To, Success: true}, nil
}

// SendEmail logs the email details instead of sending it.
func (p *ConsoleProvider) SendEmail(_ context.Context, msg notifx.EmailMessage, _ ...notifx.Option) error {
	logx.WithFields(logx.Fields{
		"from":    msg.From,
		"to":      strings.Join(msg.To, ", "),
		"subject": msg.Subject,
	}).Info("notifx/console: email sent (dev mode)")

	if msg.TextBody != "" {
		logx.Debugf("notifx/console: text body:\n%s", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		logx.Debugf("notifx/console: html body:\n%s", msg.HTMLBody)
	}

	return nil
}
