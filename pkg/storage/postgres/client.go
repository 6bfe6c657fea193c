package postgres

import (
	"context"
	"fmt"
	"time"

	"stockstream/config"
	"stockstream/logger"
	"stockstream/pkg/storage"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type PostgresClient struct {
	DB *gorm.DB
}

var _ storage.Store = (*PostgresClient)(nil)

// NewClient opens a gorm connection. A nil log keeps gorm's default logger.
func NewClient(dsn string, log *zap.Logger) (*PostgresClient, error) {
	gormCfg := &gorm.Config{}
	if log != nil {
		gormCfg.Logger = logger.NewGormLogger(log, 200*time.Millisecond)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresClient{DB: db}, nil
}

// Open connects to Postgres, optionally creates the database, applies the
// pool settings and runs AutoMigrate.
func Open(ctx context.Context, cfg config.PostgresConfig, env string, log *zap.Logger) (*PostgresClient, error) {
	if cfg.CreateDatabase {
		if err := CreateDatabase(ctx, cfg, env); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	client, err := NewClient(cfg.DSN(env), log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	sqlDB, err := client.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := client.AutoMigrate(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func (p *PostgresClient) AutoMigrate() error {
	if err := p.DB.AutoMigrate(&SampleRecord{}); err != nil {
		return fmt.Errorf("auto-migrate price table: %w", err)
	}
	return nil
}

func (p *PostgresClient) Ping(ctx context.Context) error {
	db, err := p.DB.DB()
	if err != nil {
		return storage.Unavailable("ping", err)
	}
	return storage.Unavailable("ping", db.PingContext(ctx))
}

func (p *PostgresClient) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
