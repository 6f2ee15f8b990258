package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig
	Billing    BillingConfig `validate:"required"`
	Webhook    WebhookConfig `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	SSLMode                string
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
}

// BillingConfig holds the knobs of the billing cycle engine
type BillingConfig struct {
	// GatewayProvider selects the payment gateway implementation
	GatewayProvider string `validate:"required"`
	// FakeFailureRate is the failure probability of the fake gateway, in [0, 1]
	FakeFailureRate float64
	// GatewayTimeout bounds every gateway call; timeouts are recorded as
	// ambiguous outcomes, never as failures
	GatewayTimeout time.Duration
	// PendingGracePeriod is how long a payment may stay PENDING before the
	// reconciliation job re-queries its status at the gateway
	PendingGracePeriod time.Duration
	// PayloadRetentionDays is how long raw gateway request/response payloads
	// are kept before the cleanup job purges them
	PayloadRetentionDays int
	// JobMaxRetries bounds the retry attempts of a cron-triggered run
	JobMaxRetries uint64
	// JobRetryBackoff is the fixed interval between cron retry attempts
	JobRetryBackoff time.Duration
}

type WebhookConfig struct {
	Topic string `validate:"required"`
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billforge")

	v.SetEnvPrefix("BILLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.maxopenconns", 10)
	v.SetDefault("postgres.maxidleconns", 5)
	v.SetDefault("postgres.connmaxlifetimeminutes", 30)
	v.SetDefault("billing.gatewayprovider", "fake")
	v.SetDefault("billing.fakefailurerate", 0.1)
	v.SetDefault("billing.gatewaytimeout", "30s")
	v.SetDefault("billing.pendinggraceperiod", "1h")
	v.SetDefault("billing.payloadretentiondays", 90)
	v.SetDefault("billing.jobmaxretries", 3)
	v.SetDefault("billing.jobretrybackoff", "5m")
	v.SetDefault("webhook.topic", "billforge.webhooks")
}

func (c Configuration) Validate() error {
	if c.Billing.FakeFailureRate < 0 || c.Billing.FakeFailureRate > 1 {
		return fmt.Errorf("billing.fakefailurerate must be within [0, 1]")
	}
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// and for unit tests that do not read a config file.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			GatewayProvider:      "fake",
			FakeFailureRate:      0.1,
			GatewayTimeout:       30 * time.Second,
			PendingGracePeriod:   time.Hour,
			PayloadRetentionDays: 90,
			JobMaxRetries:        3,
			JobRetryBackoff:      5 * time.Minute,
		},
		Webhook: WebhookConfig{Topic: "billforge.webhooks"},
	}
}
