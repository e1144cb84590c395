package gate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/writegate/writegate/internal/approval"
	"github.com/writegate/writegate/internal/audit"
	"github.com/writegate/writegate/internal/config"
	"github.com/writegate/writegate/internal/diffview"
	"github.com/writegate/writegate/internal/pathsec"
	"github.com/writegate/writegate/internal/store"
	"github.com/writegate/writegate/internal/store/jsonl"
	"github.com/writegate/writegate/internal/store/sqlite"
)

// Runtime is a fully wired gate plus the pieces the CLI and HTTP server
// need to drive it.
type Runtime struct {
	Gate *Gate
	// Manager is non-nil when the api decision channel is active.
	Manager *approval.Manager
	Store   store.AuditStore
}

// Close releases the audit store.
func (r *Runtime) Close() error {
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

// BuildRuntime assembles a gate from configuration: validator, decision
// channel, approval controller, and audit store (sealed when integrity is
// enabled).
func BuildRuntime(ctx context.Context, cfg config.Config, log *slog.Logger) (*Runtime, error) {
	if log == nil {
		log = slog.Default()
	}

	validator, err := pathsec.New(cfg.Workspace.Root, cfg.Workspace.ProtectedPaths)
	if err != nil {
		return nil, fmt.Errorf("workspace validator: %w", err)
	}

	auditStore, err := openStore(ctx, cfg.Audit)
	if err != nil {
		return nil, err
	}

	channel, manager := selectChannel(cfg.Approvals)
	timeout, err := cfg.Approvals.TimeoutDuration()
	if err != nil {
		_ = auditStore.Close()
		return nil, err
	}
	controller := approval.New(channel, timeout, log)

	g, err := New(Options{
		Validator:  validator,
		Controller: controller,
		Audit:      auditStore,
		Thresholds: diffview.Thresholds{
			LineFloor:    cfg.Thresholds.LineFloor,
			RatioCeiling: cfg.Thresholds.RatioCeiling,
		},
		Render: diffview.RenderOptions{
			MaxLines: cfg.Diff.MaxLines,
			Context:  cfg.Diff.Context,
			Color:    cfg.Diff.Color,
		},
		WriteBack: cfg.Workspace.WriteBack,
		Logger:    log,
	})
	if err != nil {
		_ = auditStore.Close()
		return nil, err
	}
	return &Runtime{Gate: g, Manager: manager, Store: auditStore}, nil
}

// selectChannel maps the approvals config to a decision channel. The
// unattended flag only removes the channel; nothing here can approve.
func selectChannel(cfg config.ApprovalsConfig) (approval.Channel, *approval.Manager) {
	if cfg.Unattended {
		return nil, nil
	}
	switch cfg.Channel {
	case "none":
		return nil, nil
	case "tty":
		return approval.NewTTY(), nil
	case "api":
		m := approval.NewManager()
		return m, m
	default: // auto
		if approval.Interactive() {
			return approval.NewTTY(), nil
		}
		return nil, nil
	}
}

func openStore(ctx context.Context, cfg config.AuditConfig) (store.AuditStore, error) {
	var (
		inner store.AuditStore
		err   error
	)
	switch cfg.Backend {
	case "", "jsonl":
		inner, err = jsonl.New(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups)
	case "sqlite":
		inner, err = sqlite.Open(cfg.Path)
	default:
		err = fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}

	if !cfg.Integrity.Enabled {
		return inner, nil
	}
	key, err := audit.LoadKey(cfg.Integrity.KeyFile, cfg.Integrity.KeyEnv)
	if err != nil {
		_ = inner.Close()
		return nil, fmt.Errorf("audit integrity: %w", err)
	}
	chain, err := audit.NewChainWithAlgorithm(key, cfg.Integrity.Algorithm)
	if err != nil {
		_ = inner.Close()
		return nil, fmt.Errorf("audit integrity: %w", err)
	}
	sealed, err := store.NewSealed(ctx, inner, chain)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return sealed, nil
}
