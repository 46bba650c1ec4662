package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/pflexctl/internal/config"
	"github.com/dokzlo13/pflexctl/internal/db"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/info"
	"github.com/dokzlo13/pflexctl/internal/ledger"
	"github.com/dokzlo13/pflexctl/internal/reconcile/rcg"
	"github.com/dokzlo13/pflexctl/internal/reconcile/sds"
	"github.com/dokzlo13/pflexctl/internal/reconcile/snapshotpolicy"
	"github.com/dokzlo13/pflexctl/internal/reconcile/storagepool"
	"github.com/dokzlo13/pflexctl/internal/reconcile/volume"
)

// Backend is everything the modules need from one gateway.
type Backend interface {
	info.Backend
	volume.Backend
	storagepool.Backend
	sds.Backend
	snapshotpolicy.Backend
	rcg.Backend
	rcg.RemoteBackend

	Close()
}

// Dialer opens a connected backend.
type Dialer func(ctx context.Context, cfg config.GatewayConfig) (Backend, error)

// DialGateway connects a gateway client.
func DialGateway(ctx context.Context, cfg config.GatewayConfig) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := gateway.NewClient(cfg.Client())
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// App holds what outlives a single invocation: configuration, the audit ledger and
// the way gateways are dialed.
type App struct {
	cfg    *config.Config
	db     *db.DB
	ledger *ledger.Ledger
	dial   Dialer
}

// Option customises an App.
type Option func(*App)

// WithDialer replaces how gateways are dialed.
func WithDialer(d Dialer) Option {
	return func(a *App) { a.dial = d }
}

// New creates an App. The ledger is opened, and pruned to its retention, when configured.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, dial: DialGateway}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.Ledger.Enabled() {
		database, err := db.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		a.db = database
		a.ledger = ledger.New(database.DB)

		if retention := cfg.Ledger.Retention(); retention > 0 {
			if removed, err := a.ledger.DeleteOlderThan(ctx, retention); err != nil {
				log.Warn().Err(err).Msg("Failed to prune ledger")
			} else if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("Pruned ledger")
			}
		}
	}

	return a, nil
}

// Ledger returns the audit ledger, nil when disabled.
func (a *App) Ledger() *ledger.Ledger {
	return a.ledger
}

// Close releases the ledger database.
func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
