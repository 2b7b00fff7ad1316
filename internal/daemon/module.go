// Package daemon wires the per-profile sync daemon: one conversation store,
// its notification aggregator and composer, the polling engine and the local
// JSON API on a unix socket.
package daemon

import (
	"context"
	"fmt"

	"github.com/matheus3301/fitmsg/internal/api"
	"github.com/matheus3301/fitmsg/internal/bus"
	"github.com/matheus3301/fitmsg/internal/client"
	"github.com/matheus3301/fitmsg/internal/composer"
	"github.com/matheus3301/fitmsg/internal/config"
	"github.com/matheus3301/fitmsg/internal/conversation"
	"github.com/matheus3301/fitmsg/internal/lock"
	"github.com/matheus3301/fitmsg/internal/logging"
	"github.com/matheus3301/fitmsg/internal/model"
	"github.com/matheus3301/fitmsg/internal/notify"
	"github.com/matheus3301/fitmsg/internal/profile"
	"github.com/matheus3301/fitmsg/internal/status"
	intsync "github.com/matheus3301/fitmsg/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	// Paths roots config and data; zero means the XDG defaults.
	Paths profile.Paths
	// Config overrides the config file and environment when set.
	Config *config.Config
	// SocketPath overrides the profile socket, mainly for tests.
	SocketPath string
	// Quiet disables console logging.
	Quiet bool
}

func (p Params) paths() profile.Paths {
	if p.Paths == (profile.Paths{}) {
		return profile.DefaultPaths()
	}
	return p.Paths
}

func (p Params) socketPath() string {
	if p.SocketPath != "" {
		return p.SocketPath
	}
	return p.paths().SocketPath(p.Profile)
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideClient,
			provideConversationStore,
			provideComposer,
			provideAggregator,
			provideEngine,
			provideStatusService,
			provideConversationService,
			provideDraftService,
			provideNotificationService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, config.Env, error) {
	if p.Config != nil {
		cfg := *p.Config
		return &cfg, config.Env{}, cfg.Validate()
	}
	paths := p.paths()
	cfg, err := config.LoadOrDefault(paths.ConfigPath())
	if err != nil {
		return nil, config.Env{}, err
	}
	env, err := config.LoadEnv(paths.EnvPath(), ".env")
	if err != nil {
		return nil, config.Env{}, err
	}
	cfg.Apply(env)
	if err := cfg.Validate(); err != nil {
		return nil, config.Env{}, fmt.Errorf("config %s: %w", paths.ConfigPath(), err)
	}
	return cfg, env, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Path:    p.paths().LogPath(p.Profile),
		Profile: p.Profile,
		Level:   cfg.Log.Level,
		Quiet:   p.Quiet,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	paths := p.paths()
	if err := paths.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(paths.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideClient seeds the client from the stored token; tokens from the
// environment win and are persisted. Refreshed tokens are persisted too.
func provideClient(p Params, cfg *config.Config, env config.Env, logger *zap.Logger) (*client.Client, error) {
	tokenPath := p.paths().TokenPath(p.Profile)
	tok, err := profile.LoadToken(tokenPath)
	if err != nil {
		return nil, err
	}
	if env.AccessToken != "" || env.RefreshToken != "" {
		if env.AccessToken != "" {
			tok.AccessToken = env.AccessToken
		}
		if env.RefreshToken != "" {
			tok.RefreshToken = env.RefreshToken
		}
		if err := profile.SaveToken(tokenPath, tok); err != nil {
			return nil, err
		}
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		logger.Warn("no stored credentials, requests will fail until a token is provided",
			zap.String("env", config.EnvAccessToken))
	}

	role := model.ParseRole(cfg.Backend.Role)
	logger.Info("backend configured",
		zap.String("base_url", cfg.Backend.BaseURL),
		zap.String("role", string(role)),
		zap.Int64("user_id", cfg.Backend.UserID),
	)
	return client.New(client.Options{
		BaseURL:      cfg.Backend.BaseURL,
		Role:         role,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Timeout:      cfg.Backend.Timeout.Duration,
		SelfID:       cfg.Backend.UserID,
		Logger:       logger.Named("client"),
		OnTokenRefresh: func(t *oauth2.Token) {
			if err := profile.SaveToken(tokenPath, profile.Token{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}); err != nil {
				logger.Warn("persist refreshed token", zap.Error(err))
				return
			}
			logger.Info("access token refreshed")
		},
	})
}

func provideConversationStore(c *client.Client, b *bus.Bus, logger *zap.Logger) *conversation.Store {
	return conversation.New(c, c.Role(), b, logger.Named("conversation"))
}

func provideComposer(store *conversation.Store, b *bus.Bus, logger *zap.Logger) *composer.Composer {
	return composer.New(store, b, logger.Named("composer"))
}

func provideAggregator(store *conversation.Store, c *client.Client, comp *composer.Composer, b *bus.Bus, logger *zap.Logger) *notify.Aggregator {
	return notify.New(store, c, comp, b, logger.Named("notify"))
}

func provideEngine(store *conversation.Store, agg *notify.Aggregator, m *status.Machine, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(store, agg, m, intsync.Intervals{
		Conversations: cfg.Poll.Conversations.Duration,
		Notifications: cfg.Poll.Notifications.Duration,
	}, logger.Named("sync"))
}

func provideStatusService(p Params, cfg *config.Config, m *status.Machine, store *conversation.Store, agg *notify.Aggregator) *api.StatusService {
	return api.NewStatusService(p.Profile, string(model.ParseRole(cfg.Backend.Role)), m, store, agg)
}

func provideConversationService(store *conversation.Store, comp *composer.Composer, logger *zap.Logger) *api.ConversationService {
	return api.NewConversationService(store, comp, logger)
}

func provideDraftService(comp *composer.Composer, store *conversation.Store, logger *zap.Logger) *api.DraftService {
	return api.NewDraftService(comp, store, logger)
}

func provideNotificationService(agg *notify.Aggregator, store *conversation.Store, engine *intsync.Engine, logger *zap.Logger) *api.NotificationService {
	return api.NewNotificationService(agg, store, engine, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, engine *intsync.Engine, b *bus.Bus, logger *zap.Logger) {
	var unsub func()
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			unsub = logStatusChanges(b, logger)

			// Pollers outlive the start context.
			engine.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("api server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			engine.Stop()
			srv.Stop(ctx)
			if unsub != nil {
				unsub()
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

// logStatusChanges logs every sync status transition until the returned
// function is called.
func logStatusChanges(b *bus.Bus, logger *zap.Logger) func() {
	ch, unsub := b.Subscribe("sync.", 16)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case evt := <-ch:
				change, ok := evt.Payload.(status.StatusChange)
				if !ok {
					continue
				}
				logger.Info("sync status changed",
					zap.String("from", string(change.From)),
					zap.String("to", string(change.To)),
					zap.String("cause", change.Cause),
				)
			case <-done:
				return
			}
		}
	}()
	return func() {
		unsub()
		close(done)
	}
}
