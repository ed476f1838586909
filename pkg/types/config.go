package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Base URL used to build Stripe success/cancel and webhook URLs
	AppURL string `envconfig:"APP_URL" default:"http://localhost:8080"`

	// Stripe
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`

	// Registered-office (CROP) subscription plan
	RegisteredOfficePriceID string `envconfig:"REGISTERED_OFFICE_PRICE_ID"`

	// Background check providers
	IntellicorpAPIKey          string `envconfig:"INTELLICORP_API_KEY"`
	IntellicorpWebhookSecret   string `envconfig:"INTELLICORP_WEBHOOK_SECRET"`
	GoodhireAPIKey             string `envconfig:"GOODHIRE_API_KEY"`
	GoodhireWebhookSecret      string `envconfig:"GOODHIRE_WEBHOOK_SECRET"`
	CheckrAPIKey               string `envconfig:"CHECKR_API_KEY"`
	CheckrWebhookSecret        string `envconfig:"CHECKR_WEBHOOK_SECRET"`
	VerifiedCredsAPIKey        string `envconfig:"VERIFIED_CREDENTIALS_API_KEY"`
	VerifiedCredsWebhookSecret string `envconfig:"VERIFIED_CREDENTIALS_WEBHOOK_SECRET"`

	// Notary payouts
	PaymentDelayDays int `envconfig:"PAYMENT_DELAY_DAYS" default:"7"`

	// Document storage (uploaded proofs, generated 1099s)
	DocumentsBucket string `envconfig:"DOCUMENTS_BUCKET" default:"notroom-documents"`

	// Cognito Auth
	CognitoUserPoolID string `envconfig:"COGNITO_USER_POOL_ID"`
	CognitoClientID   string `envconfig:"COGNITO_CLIENT_ID"`
	CognitoIssuerURL  string `envconfig:"COGNITO_ISSUER_URL"`

	// Auth Configuration
	CookieName       string `envconfig:"SESSION_COOKIE_NAME" default:"session_id"`
	SessionMaxAgeSec int    `envconfig:"SESSION_MAX_AGE_SEC" default:"604800"` // 7 days

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ProviderWebhookSecret returns the shared HMAC secret for a background
// check provider, or "" when none is configured.
func (c *Config) ProviderWebhookSecret(providerID string) string {
	switch providerID {
	case "intellicorp":
		return c.IntellicorpWebhookSecret
	case "goodhire":
		return c.GoodhireWebhookSecret
	case "checkr":
		return c.CheckrWebhookSecret
	case "verified_credentials":
		return c.VerifiedCredsWebhookSecret
	}
	return ""
}

func (c *Config) ProviderAPIKey(providerID string) string {
	switch providerID {
	case "intellicorp":
		return c.IntellicorpAPIKey
	case "goodhire":
		return c.GoodhireAPIKey
	case "checkr":
		return c.CheckrAPIKey
	case "verified_credentials":
		return c.VerifiedCredsAPIKey
	}
	return ""
}
