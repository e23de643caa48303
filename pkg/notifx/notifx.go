package notifx

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"text/template"
)

// SMSSender sends a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage, opts ...Option) (SendResult, error)
}

// EmailSender sends a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage, opts ...Option) error
}

// Client is the main entry point for sending notifications.
// Either provider may be nil; sending through a missing one fails with ErrNoProvider.
type Client struct {
	sms   SMSSender
	email EmailSender

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewClient creates a new notification client.
func NewClient(sms SMSSender, email EmailSender) *Client {
	return &Client{
		sms:       sms,
		email:     email,
		templates: map[string]*template.Template{},
	}
}

// SendSMS validates and sends a text message through the configured provider.
func (c *Client) SendSMS(ctx context.Context, msg SMSMessage, opts ...Option) (SendResult, error) {
	if c.sms == nil {
		return SendResult{}, notifxErrors.New(ErrNoProvider).WithDetail("channel", "sms")
	}
	if strings.TrimSpace(msg.To) == "" {
		return SendResult{}, notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "no recipient")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return SendResult{}, notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "empty body")
	}
	return c.sms.SendSMS(ctx, msg, opts...)
}

// SendEmail sends an email through the configured provider.
func (c *Client) SendEmail(ctx context.Context, msg EmailMessage, opts ...Option) error {
	if c.email == nil {
		return notifxErrors.New(ErrNoProvider).WithDetail("channel", "email")
	}
	if len(msg.To) == 0 {
		return notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "no recipients")
	}
	if msg.Subject == "" {
		return notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "empty subject")
	}
	return c.email.SendEmail(ctx, msg, opts...)
}

// RegisterTemplate parses body and stores it under name, replacing any
// earlier template with that name. Missing keys fail at render time.
func (c *Client) RegisterTemplate(name, body string) error {
	t, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("template", name)
	}
	c.mu.Lock()
	c.templates[name] = t
	c.mu.Unlock()
	return nil
}

func (c *Client) render(name string, data interface{}) (string, error) {
	c.mu.RLock()
	t, ok := c.templates[name]
	c.mu.RUnlock()
	if !ok {
		return "", notifxErrors.New(ErrTemplateNotFound).WithDetail("template", name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", notifxErrors.NewWithCause(ErrTemplateRender, err).WithDetail("template", name)
	}
	return buf.String(), nil
}

// SendTemplatedSMS renders a registered template into the body and sends it.
func (c *Client) SendTemplatedSMS(ctx context.Context, name string, data interface{}, msg SMSMessage, opts ...Option) (SendResult, error) {
	body, err := c.render(name, data)
	if err != nil {
		return SendResult{}, err
	}
	msg.Body = body
	return c.SendSMS(ctx, msg, opts...)
}

// SendTemplatedEmail renders a registered template into the text body.
func (c *Client) SendTemplatedEmail(ctx context.Context, name string, data interface{}, msg EmailMessage, opts ...Option) error {
	body, err := c.render(name, data)
	if err != nil {
		return err
	}
	msg.TextBody = body
	return c.SendEmail(ctx, msg, opts...)
}
