package notifx

// SMS types understood by carriers that distinguish OTP traffic from marketing.
const (
	SMSTransactional = "Transactional"
	SMSPromotional   = "Promotional"
)

// SendOptions holds optional configuration for a send operation.
type SendOptions struct {
	Tags     map[string]string
	ConfigID string
	SMSType  string
}

// Option is a functional option for send operations.
type Option func(*SendOptions)

// WithTags adds metadata tags to the send operation.
func WithTags(tags map[string]string) Option {
	return func(o *SendOptions) {
		o.Tags = tags
	}
}

// WithConfigID sets a provider-specific configuration set identifier.
func WithConfigID(id string) Option {
	return func(o *SendOptions) {
		o.ConfigID = id
	}
}

// WithSMSType sets the carrier routing class.
func WithSMSType(smsType string) Option {
	return func(o *SendOptions) {
		o.SMSType = smsType
	}
}

// ApplyOptions folds opts over the defaults. Providers call it.
func ApplyOptions(opts []Option) SendOptions {
	so := SendOptions{SMSType: SMSTransactional}
	for _, o := range opts {
		o(&so)
	}
	return so
}
