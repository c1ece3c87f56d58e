package sms

import "time"

// Config holds the SMS gateway settings. An empty GatewayURL disables SMS.
type Config struct {
	GatewayURL   string        `env:"SMS_GATEWAY_URL"`
	APIKey       string        `env:"SMS_API_KEY"`
	SenderID     string        `env:"SMS_SENDER_ID" envDefault:"DRIP"`
	Timeout      time.Duration `env:"SMS_TIMEOUT" envDefault:"10s"`
	MaxRetries   int           `env:"SMS_MAX_RETRIES" envDefault:"2"`
	RetryBackoff time.Duration `env:"SMS_RETRY_BACKOFF" envDefault:"1s"`
}

// Enabled reports whether a gateway is configured.
func (c Config) Enabled() bool {
	return c.GatewayURL != ""
}
