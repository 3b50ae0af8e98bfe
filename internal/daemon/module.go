package daemon

import (
	"context"

	"github.com/aryanfhm/tgsnap/internal/api"
	"github.com/aryanfhm/tgsnap/internal/bus"
	"github.com/aryanfhm/tgsnap/internal/config"
	"github.com/aryanfhm/tgsnap/internal/lock"
	"github.com/aryanfhm/tgsnap/internal/logging"
	"github.com/aryanfhm/tgsnap/internal/session"
	"github.com/aryanfhm/tgsnap/internal/store"
	"github.com/aryanfhm/tgsnap/internal/tg"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved daemon configuration passed to the fx module.
type Params struct {
	ConfigPath string // optional override; empty = ~/.tgsnap/config.toml
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideRegistry,
			provideLoginService,
			provideIngestService,
			provideScheduler,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger() (*zap.Logger, error) {
	if err := session.EnsureBaseDirs(); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(), "tgsnapd")
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", session.BaseDir()))
	l, err := lock.Acquire(session.BaseDir())
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(logger *zap.Logger) (*store.DB, error) {
	dbPath := session.StorePath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRegistry(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *session.Registry {
	return NewRegistry(cfg, b, logger)
}

// NewRegistry builds the session registry backed by real Telegram clients.
// Shared by the daemon module and the in-process CLI.
func NewRegistry(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *session.Registry {
	factory := func(accountID string) (tg.Client, error) {
		if err := session.EnsureAccountDir(accountID); err != nil {
			return nil, err
		}
		return tg.NewAdapter(tg.AdapterConfig{
			APIID:       cfg.APIID,
			APIHash:     cfg.APIHash,
			SessionFile: session.SessionFile(accountID),
			Logger:      logger.Named("tg").With(zap.String("account", accountID)),
		}), nil
	}
	return session.NewRegistry(factory, b, logger)
}

func provideLoginService(registry *session.Registry, cfg *config.Config, logger *zap.Logger) *api.LoginService {
	return api.NewLoginService(registry, cfg.CountryCode, logger)
}

func provideIngestService(registry *session.Registry, db *store.DB, b *bus.Bus, logger *zap.Logger) *api.IngestService {
	return api.NewIngestService(registry, db, b, logger)
}

func provideScheduler(cfg *config.Config, login *api.LoginService, ingestSvc *api.IngestService, logger *zap.Logger) *Scheduler {
	return NewScheduler(cfg, login, ingestSvc, logger)
}

func registerLifecycle(lc fx.Lifecycle, sched *Scheduler, registry *session.Registry, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := sched.Start(); err != nil {
				return err
			}
			logger.Info("daemon started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			sched.Stop()
			registry.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
