// Package postgres provides PostgreSQL database connection and management
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	gormModels "github.com/alchemorsel/kitchen/internal/infrastructure/persistence/gorm"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

// ConnectionManager owns the primary connection and any read replicas
type ConnectionManager struct {
	config  *config.DatabaseConfig
	logger  *zap.Logger
	db      *gorm.DB
	writeDB *sql.DB
	readDBs []*sql.DB
}

// NewConnectionManager connects to the primary and registers read replicas
func NewConnectionManager(cfg *config.Config, log *zap.Logger) (*ConnectionManager, error) {
	cm := &ConnectionManager{
		config: &cfg.Database,
		logger: log.With(zap.String("component", "postgres")),
	}

	if err := cm.initializePrimaryConnection(cfg.GetDSN()); err != nil {
		return nil, fmt.Errorf("failed to initialize primary connection: %w", err)
	}

	if err := cm.initializeReadReplicas(cfg); err != nil {
		cm.logger.Warn("Failed to initialize read replicas", zap.Error(err))
	}

	cm.logger.Info("Database connection manager initialized",
		zap.Int("max_open_conns", cm.config.MaxOpenConns),
		zap.Int("max_idle_conns", cm.config.MaxIdleConns),
		zap.Int("replicas", len(cm.readDBs)),
	)
	return cm, nil
}

// initializePrimaryConnection opens the pgx-backed pool and wraps it in GORM
func (cm *ConnectionManager) initializePrimaryConnection(dsn string) error {
	sqlDB, err := cm.openPool(dsn)
	if err != nil {
		return err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 cm.gormLogger(),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	cm.db = db
	cm.writeDB = sqlDB
	return nil
}

// initializeReadReplicas routes reads to replicas through the GORM DB resolver
func (cm *ConnectionManager) initializeReadReplicas(cfg *config.Config) error {
	if len(cm.config.Replicas) == 0 {
		return nil
	}

	replicas := make([]gorm.Dialector, 0, len(cm.config.Replicas))
	for _, host := range cm.config.Replicas {
		sqlDB, err := cm.openPool(cfg.DSNFor(host))
		if err != nil {
			return fmt.Errorf("replica %s: %w", host, err)
		}
		cm.readDBs = append(cm.readDBs, sqlDB)
		replicas = append(replicas, postgres.New(postgres.Config{Conn: sqlDB}))
	}

	err := cm.db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   dbresolver.RandomPolicy{},
	}).
		SetMaxOpenConns(cm.config.MaxOpenConns).
		SetMaxIdleConns(cm.config.MaxIdleConns).
		SetConnMaxLifetime(cm.config.ConnMaxLifetime))
	if err != nil {
		return fmt.Errorf("failed to register read replicas: %w", err)
	}

	cm.logger.Info("Read replicas configured", zap.Strings("replicas", cm.config.Replicas))
	return nil
}

func (cm *ConnectionManager) openPool(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cm.config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cm.config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cm.config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return sqlDB, nil
}

func (cm *ConnectionManager) gormLogger() logger.Interface {
	return logger.New(
		&GORMLogWriter{logger: cm.logger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormModels.LogLevel(cm.config.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GetDB returns the GORM handle
func (cm *ConnectionManager) GetDB() *gorm.DB {
	return cm.db
}

// SQLDB returns the primary pool, used by migrations and health checks
func (cm *ConnectionManager) SQLDB() *sql.DB {
	return cm.writeDB
}

// HealthCheck pings the primary and reports replica failures as warnings
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.writeDB.PingContext(ctx); err != nil {
		return fmt.Errorf("primary database ping failed: %w", err)
	}

	for i, readDB := range cm.readDBs {
		if err := readDB.PingContext(ctx); err != nil {
			cm.logger.Warn("Read replica ping failed",
				zap.Int("replica_index", i),
				zap.Error(err),
			)
		}
	}

	return nil
}

// Close closes all database connections
func (cm *ConnectionManager) Close() error {
	if cm.writeDB != nil {
		if err := cm.writeDB.Close(); err != nil {
			cm.logger.Error("Failed to close primary database", zap.Error(err))
		}
	}

	for i, readDB := range cm.readDBs {
		if err := readDB.Close(); err != nil {
			cm.logger.Error("Failed to close read replica",
				zap.Int("replica_index", i),
				zap.Error(err),
			)
		}
	}

	return nil
}

// GORMLogWriter routes GORM's log output through zap
type GORMLogWriter struct {
	logger *zap.Logger
}

// Printf implements the logger.Writer interface
func (w *GORMLogWriter) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	switch {
	case strings.Contains(msg, "SLOW SQL"):
		w.logger.Warn("GORM slow query", zap.String("message", msg))
	case strings.Contains(msg, "error"), strings.Contains(msg, "ERROR"):
		w.logger.Error("GORM error", zap.String("message", msg))
	default:
		w.logger.Debug("GORM log", zap.String("message", msg))
	}
}
