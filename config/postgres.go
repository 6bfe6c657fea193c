package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	// SSMPrefix names the Parameter Store path holding HOST, USER and
	// PASSWORD for the prod environment, e.g. "/stockstream/db/".
	SSMPrefix string `mapstructure:"ssm_prefix"`

	CreateDatabase bool `mapstructure:"create_database"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ParameterLookup resolves a Parameter Store value by name.
type ParameterLookup func(ctx context.Context, name string, decrypt bool) (string, error)

// DSN builds the connection string. In prod, host and credentials come from
// AWS SSM Parameter Store; a missing parameter falls back to the configured value.
func (cfg *PostgresConfig) DSN(env string) string {
	return cfg.dsn(env, getParameterStoreValue)
}

func (cfg *PostgresConfig) dsn(env string, lookup ParameterLookup) string {
	host, user, password := cfg.Host, cfg.User, cfg.Password

	if env == "prod" && cfg.SSMPrefix != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if v, err := lookup(ctx, cfg.SSMPrefix+"HOST", true); err == nil && v != "" {
			host = v
		}
		if v, err := lookup(ctx, cfg.SSMPrefix+"USER", true); err == nil && v != "" {
			user = v
		}
		if v, err := lookup(ctx, cfg.SSMPrefix+"PASSWORD", true); err == nil && v != "" {
			password = v
		}
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, cfg.DBName, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}

// AdminDSN points at the maintenance "postgres" database, used to create
// the application database when it does not exist yet.
func (cfg *PostgresConfig) AdminDSN(env string) string {
	admin := *cfg
	admin.DBName = "postgres"
	return admin.DSN(env)
}

func getParameterStoreValue(ctx context.Context, parameterName string, decrypt bool) (string, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctx, input)
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", parameterName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", nil
	}

	return *result.Parameter.Value, nil
}
