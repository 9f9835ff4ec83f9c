package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"3000"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables

	S3BucketName string        `env:"S3_BUCKET_NAME" envDefault:"account-images"`
	ImageURLTTL  time.Duration `env:"IMAGE_URL_TTL" envDefault:"168h"`

	SNSRegion     string `env:"SNS_REGION" envDefault:"us-east-1"`
	AlertTopicARN string `env:"ALERT_TOPIC_ARN"`

	JWTPrivateKeyPath  string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./private_key.pem"`
	JWTPublicKeyPath   string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	JWTExpiry          time.Duration `env:"JWT_EXPIRY" envDefault:"168h"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"720h"`

	Identity Identity

	TemplateMailURL string              `env:"TEMPLATE_MAIL_URL" envDefault:"https://api.emailjs.com/api/v1.0/email/send"`
	TemplateMailA   TemplateMailService `envPrefix:"TEMPLATE_MAIL_1_"`
	TemplateMailB   TemplateMailService `envPrefix:"TEMPLATE_MAIL_2_"`
	SMTP            SMTP                `envPrefix:"SMTP_"`

	Verification Verification
	Tasks        Tasks `envPrefix:"TASKS_"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"` // CORS allowed origins
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"5"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users             string `env:"DYNAMO_TABLE_USERS" envDefault:"users"`
	VerificationCodes string `env:"DYNAMO_TABLE_VERIFICATION_CODES" envDefault:"verification_codes"`
}

// Identity configures the Firebase account service client. Endpoint points
// at the auth emulator in development.
type Identity struct {
	ProjectID       string `env:"FIREBASE_PROJECT_ID"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	Endpoint        string `env:"IDENTITY_TOOLKIT_ENDPOINT"`
}

// TemplateMailService is one account on a template mail REST service.
type TemplateMailService struct {
	ServiceID  string `env:"SERVICE_ID"`
	TemplateID string `env:"TEMPLATE_ID"`
	PublicKey  string `env:"PUBLIC_KEY"`
	PrivateKey string `env:"PRIVATE_KEY"`
}

// Configured reports whether every credential is present.
func (t TemplateMailService) Configured() bool {
	return t.ServiceID != "" && t.TemplateID != "" && t.PublicKey != "" && t.PrivateKey != ""
}

type SMTP struct {
	Host     string `env:"HOST" envDefault:"smtp-relay.brevo.com"`
	Port     int    `env:"PORT" envDefault:"587"`
	From     string `env:"FROM" envDefault:"noreply@example.com"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	// TLS requires STARTTLS; when false the relay is used opportunistically.
	TLS bool `env:"TLS" envDefault:"true"`
}

type Verification struct {
	CodeLength      int           `env:"VERIFICATION_CODE_LENGTH" envDefault:"6"`
	CodeTTL         time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"2m"`
	DeliveryTimeout time.Duration `env:"VERIFICATION_DELIVERY_TIMEOUT" envDefault:"10s"`
}

type Tasks struct {
	Workers        int           `env:"WORKERS" envDefault:"4"`
	Buffer         int           `env:"BUFFER" envDefault:"256"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	AttemptTimeout time.Duration `env:"ATTEMPT_TIMEOUT" envDefault:"10s"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Verification.CodeLength < 4 {
		return nil, fmt.Errorf("VERIFICATION_CODE_LENGTH must be at least 4, got %d", cfg.Verification.CodeLength)
	}
	if cfg.Verification.CodeTTL <= 0 || cfg.Verification.DeliveryTimeout <= 0 {
		return nil, fmt.Errorf("verification durations must be positive")
	}
	if cfg.Tasks.Workers < 1 || cfg.Tasks.MaxAttempts < 1 || cfg.Tasks.Buffer < 1 {
		return nil, fmt.Errorf("task workers, buffer and attempts must be at least 1")
	}
	return cfg, nil
}
