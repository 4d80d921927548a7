package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/billforge/billforge/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Events     EventsConfig     `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Tiers      TiersConfig
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
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// EventsConfig configures the subscription history event sink
type EventsConfig struct {
	Topic string `validate:"required"`
}

// BillingConfig holds tunables for the billing sweeps
type BillingConfig struct {
	// GraceDays is the number of days after a missed billing date during
	// which feature access is not yet revoked
	GraceDays int `validate:"required,min=0"`
	// MaxFailedAttempts is the failed billing count that forces suspension
	MaxFailedAttempts int `validate:"required,min=1"`
	// SweepSchedule is the cron expression for the periodic maintenance sweeps
	SweepSchedule string
	// SweepConcurrency bounds the number of records processed in parallel
	// by a single sweep
	SweepConcurrency int
}

// DSN builds the postgres connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
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

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if len(config.Tiers) == 0 {
		config.Tiers = DefaultTiersConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "billforge")
	v.SetDefault("postgres.dbname", "billforge")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("events.topic", "subscription_history")
	v.SetDefault("billing.gracedays", 3)
	v.SetDefault("billing.maxfailedattempts", 3)
	v.SetDefault("billing.sweepschedule", "@every 1h")
	v.SetDefault("billing.sweepconcurrency", 8)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Tiers.Validate()
}

// GetDefaultConfig returns a default configuration for local development
// and tests. This is useful for running scripts or other non web
// applications.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelInfo},
		Events:     EventsConfig{Topic: "subscription_history"},
		Billing: BillingConfig{
			GraceDays:         3,
			MaxFailedAttempts: 3,
			SweepSchedule:     "@every 1h",
			SweepConcurrency:  8,
		},
		Tiers: DefaultTiersConfig(),
	}
}
