package config

// NotifxConfig configures SMS delivery and operator alert email.
type NotifxConfig struct {
	SMSProvider     string
	SMSSenderID     string
	SMSCountryCode  string
	EmailProvider   string
	FromAddress     string
	AlertRecipients []string
	AWSRegion       string
}

func loadNotifxConfig() NotifxConfig {
	return NotifxConfig{
		SMSProvider:     getEnv("NOTIFX_SMS_PROVIDER", "console"),
		SMSSenderID:     getEnv("NOTIFX_SMS_SENDER_ID", "OTPGRD"),
		SMSCountryCode:  getEnv("NOTIFX_SMS_COUNTRY_CODE", "+91"),
		EmailProvider:   getEnv("NOTIFX_EMAIL_PROVIDER", "console"),
		FromAddress:     getEnv("NOTIFX_FROM_ADDRESS", "security@otpguard.local"),
		AlertRecipients: getEnvStringSlice("NOTIFX_ALERT_RECIPIENTS", nil),
		AWSRegion:       getEnv("NOTIFX_AWS_REGION", getEnv("AWS_REGION", "ap-south-1")),
	}
}
