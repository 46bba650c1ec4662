package app

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/pflexctl/internal/config"
	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/rcg"
)

// Invocation is one module run. It owns the gateway connections opened for the
// run and closes them when done; nothing is shared between invocations.
type Invocation struct {
	ID     string
	Module string
	Logger zerolog.Logger

	app    *App
	opened []Backend
}

func (a *App) newInvocation(module string) *Invocation {
	id := uuid.NewString()
	return &Invocation{
		ID:     id,
		Module: module,
		Logger: log.Logger.With().Str("invocation", id).Str("module", module).Logger(),
		app:    a,
	}
}

// Close closes every connection opened by the invocation.
func (inv *Invocation) Close() {
	for _, b := range inv.opened {
		b.Close()
	}
	inv.opened = nil
}

// Connect opens the primary gateway with the task's overrides applied.
func (inv *Invocation) Connect(ctx context.Context, overrides config.Connection) (Backend, error) {
	return inv.dial(ctx, overrides.Apply(inv.app.cfg.Gateway))
}

// Remote opens the replication peer, either a gateway named under remote_gateways
// or inline connection settings.
func (inv *Invocation) Remote(ctx context.Context, peer rcg.RemotePeer) (rcg.RemoteBackend, error) {
	if peer.Gateway != nil {
		cfg, ok := inv.app.cfg.RemoteGateways[*peer.Gateway]
		if !ok {
			return nil, errs.WithHint(
				errs.Newf(errs.ErrInvalidParameter, "remote gateway %q is not configured", *peer.Gateway),
				"configured remote_gateways: "+strings.Join(remoteNames(inv.app.cfg), ", "))
		}
		return inv.dial(ctx, cfg)
	}
	return inv.dial(ctx, peer.Connection.Apply(config.Default().Gateway))
}

// Engine returns an engine recording to the ledger when one is configured.
func (inv *Invocation) Engine() *reconcile.Engine {
	if inv.app.ledger == nil {
		return reconcile.NewEngine(nil)
	}
	return reconcile.NewEngine(inv.app.ledger.Recorder(inv.ID, inv.Module))
}

func (inv *Invocation) dial(ctx context.Context, cfg config.GatewayConfig) (Backend, error) {
	inv.Logger.Debug().Str("hostname", cfg.Hostname).Int("port", cfg.Port).Msg("Connecting to gateway")
	b, err := inv.app.dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	inv.opened = append(inv.opened, b)
	return b, nil
}

func remoteNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.RemoteGateways))
	for name := range cfg.RemoteGateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
