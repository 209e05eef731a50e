package app

import (
	"context"

	"github.com/matheus3301/threadstore/internal/bus"
	"github.com/matheus3301/threadstore/internal/config"
	"github.com/matheus3301/threadstore/internal/conversation"
	"github.com/matheus3301/threadstore/internal/logging"
	"github.com/matheus3301/threadstore/internal/message"
	"github.com/matheus3301/threadstore/internal/store"
	intsync "github.com/matheus3301/threadstore/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds what the caller resolves before the fx graph is built.
type Params struct {
	ConfigPath string // empty = config.DefaultPath()
	Component  string
	// Config, when set, is used instead of reading ConfigPath.
	Config *config.Config
}

// Module returns the fx module composing the stores, the conversation
// store and the ingest engine.
func Module(p Params) fx.Option {
	return fx.Module("threadstore",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStore,
			provideSMSStore,
			provideMMSStore,
			provideIdentity,
			provideConversation,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	cfg, err := config.Resolve(p.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath, p.Component, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStore(cfg *config.Config, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(cfg.DatabasePath)
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
		logger.Debug("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Debug("store initialized", zap.String("path", cfg.DatabasePath))
	return db, nil
}

func provideSMSStore(db *store.DB) *store.SMSStore {
	return store.NewSMSStore(db)
}

func provideMMSStore(db *store.DB) *store.MMSStore {
	return store.NewMMSStore(db)
}

func provideIdentity(cfg *config.Config) message.Identity {
	return message.NewLocalIdentity(cfg.LocalAddresses...)
}

func provideConversation(db *store.DB, sms *store.SMSStore, mms *store.MMSStore, id message.Identity, b *bus.Bus, logger *zap.Logger) *conversation.Store {
	return conversation.New(db, sms, mms, id, b, logger.Named("conversation"))
}

func provideEngine(db *store.DB, conv *conversation.Store, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, conv, b, logger.Named("ingest"))
}

func registerLifecycle(lc fx.Lifecycle, db *store.DB, engine *intsync.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Consume inbound.* events published by producers in this process.
			engine.Start(context.Background())
			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing database", zap.Error(err))
			}
			_ = logger.Sync()
			return nil
		},
	})
}
