// Package cli implements the writegate command tree.
package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/writegate/writegate/internal/config"
)

func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "writegate",
		Short:         "writegate: safe write gate for code-generation pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("writegate {{.Version}}\n")

	cmd.PersistentFlags().String("config", getenvDefault("WRITEGATE_CONFIG", ""), "Path to writegate YAML config")
	cmd.PersistentFlags().String("workspace", "", "Workspace root (overrides config)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error (overrides config)")

	cmd.AddCommand(newEvaluateCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newApprovalsCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration for a command invocation.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if ws, _ := cmd.Root().PersistentFlags().GetString("workspace"); ws != "" {
		cfg.Workspace.Root = ws
	}
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "."
	}
	if lvl, _ := cmd.Root().PersistentFlags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
