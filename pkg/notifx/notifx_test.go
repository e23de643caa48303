package notifx_test

import (
	"context"
	"testing"

	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/notifx"
)

type recordingSMS struct {
	sent []notifx.SMSMessage
	opts notifx.SendOptions
}

func (r *recordingSMS) SendSMS(_ context.Context, msg notifx.SMSMessage, opts ...notifx.Option) (notifx.SendResult, error) {
	r.sent = append(r.sent, msg)
	r.opts = notifx.ApplyOptions(opts)
	return notifx.SendResult{To: msg.To, Success: true}, nil
}

func TestClient_SendTemplatedSMS(t *testing.T) {
	sms := &recordingSMS{}
	c := notifx.NewClient(sms, nil)
	if err := c.RegisterTemplate("otp", "Your code is {{.Code}}. Valid for {{.Minutes}} minutes."); err != nil {
		t.Fatalf("register: %v", err)
	}

	data := map[string]interface{}{"Code": "123456", "Minutes": 5}
	if _, err := c.SendTemplatedSMS(context.Background(), "otp", data, notifx.SMSMessage{To: "9876543210"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(sms.sent) != 1 || sms.sent[0].Body != "Your code is 123456. Valid for 5 minutes." {
		t.Fatalf("unexpected sent messages: %+v", sms.sent)
	}
	if sms.opts.SMSType != notifx.SMSTransactional {
		t.Fatalf("expected transactional default, got %q", sms.opts.SMSType)
	}
}

func TestClient_Validation(t *testing.T) {
	c := notifx.NewClient(&recordingSMS{}, nil)
	ctx := context.Background()

	if _, err := c.SendSMS(ctx, notifx.SMSMessage{To: " ", Body: "x"}); !errx.HasCode(err, notifx.ErrInvalidMessage) {
		t.Fatalf("expected invalid message, got %v", err)
	}
	if err := c.SendEmail(ctx, notifx.EmailMessage{To: []string{"a@b.c"}, Subject: "s"}); !errx.HasCode(err, notifx.ErrNoProvider) {
		t.Fatalf("expected no provider for email, got %v", err)
	}
}

func TestClient_TemplateErrors(t *testing.T) {
	c := notifx.NewClient(&recordingSMS{}, nil)
	ctx := context.Background()

	if _, err := c.SendTemplatedSMS(ctx, "missing", nil, notifx.SMSMessage{To: "1"}); !errx.HasCode(err, notifx.ErrTemplateNotFound) {
		t.Fatalf("expected template not found, got %v", err)
	}
	if err := c.RegisterTemplate("bad", "{{.Code"); !errx.HasCode(err, notifx.ErrTemplateParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	_ = c.RegisterTemplate("strict", "{{.Code}}")
	if _, err := c.SendTemplatedSMS(ctx, "strict", map[string]string{}, notifx.SMSMessage{To: "1"}); !errx.HasCode(err, notifx.ErrTemplateRender) {
		t.Fatalf("expected render error on missing key, got %v", err)
	}
}
