package container

import (
	"context"
	"fmt"
	"time"

	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/alchemorsel/kitchen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/kitchen/internal/infrastructure/persistence/fallback"
	gormrepo "github.com/alchemorsel/kitchen/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/kitchen/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/kitchen/internal/infrastructure/persistence/migrations"
	"github.com/alchemorsel/kitchen/internal/infrastructure/persistence/postgres"
	redisstore "github.com/alchemorsel/kitchen/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/kitchen/internal/infrastructure/persistence/sqlite"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"github.com/alchemorsel/kitchen/pkg/healthcheck"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const flushInterval = 30 * time.Second

// StoreModule provides the preference store selected by theme.store
var StoreModule = fx.Provide(newPreferenceStore)

func newPreferenceStore(
	lc fx.Lifecycle,
	cfg *config.Config,
	metrics *monitoring.MetricsCollector,
	hc *healthcheck.HealthCheck,
	log *zap.Logger,
) (outbound.PreferenceStore, error) {
	var inner outbound.PreferenceStore

	switch cfg.Theme.Store {
	case "memory":
		log.Info("Using in-memory theme preference store")
		return memory.NewPreferenceStore(), nil

	case "redis":
		client, err := redisstore.NewClient(cfg, log)
		if err != nil {
			return nil, err
		}
		hc.Register("redis", healthcheck.NewRedisChecker(client))
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error { return client.Close() },
		})
		inner = redisstore.NewPreferenceStore(client, log)

	case "database":
		db, err := openDatabase(lc, cfg, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		hc.Register("database", healthcheck.NewSQLChecker(sqlDB))
		inner = gormrepo.NewPreferenceRepository(db)

	default:
		return nil, fmt.Errorf("unknown theme store %q", cfg.Theme.Store)
	}

	// A failing backend must not break theming; writes are kept and retried.
	store := fallback.New(inner, metrics.StoreFailures(), log)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go store.Run(ctx, flushInterval)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if pending := store.Pending(); pending > 0 {
				store.Flush(stopCtx)
			}
			return nil
		},
	})
	return store, nil
}

// openDatabase connects to sqlite or postgres and brings the schema up to date
func openDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.SetupDatabase(cfg.Database.Path, gormrepo.LogLevel(cfg.Database.LogLevel), cfg.Database.AutoMigrate)
		if err != nil {
			return nil, fmt.Errorf("failed to setup SQLite database: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
		log.Info("Connected to SQLite database", zap.String("path", cfg.Database.Path))
		return db, nil

	case "postgres":
		cm, err := postgres.NewConnectionManager(cfg, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error { return cm.Close() },
		})

		if cfg.Database.AutoMigrate {
			migrator, err := migrations.New(context.Background(), cm.SQLDB(), cfg.Database.Database, log)
			if err != nil {
				return nil, err
			}
			defer migrator.Close()
			if err := migrator.Up(); err != nil {
				return nil, err
			}
		}
		return cm.GetDB(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
