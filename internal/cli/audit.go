package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/writegate/writegate/internal/audit"
	"github.com/writegate/writegate/internal/config"
	"github.com/writegate/writegate/internal/store"
	"github.com/writegate/writegate/internal/store/jsonl"
	"github.com/writegate/writegate/internal/store/sqlite"
	"github.com/writegate/writegate/pkg/types"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail commands",
	}
	cmd.AddCommand(newAuditListCmd())
	cmd.AddCommand(newAuditVerifyCmd())
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		pathLike string
		outcome  string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openAuditStore(cfg.Audit)
			if err != nil {
				return err
			}
			defer st.Close()

			q := types.AuditQuery{PathLike: pathLike, Limit: limit}
			for _, o := range strings.Split(outcome, ",") {
				if o = strings.TrimSpace(o); o != "" {
					q.Outcomes = append(q.Outcomes, types.AuditOutcome(o))
				}
			}
			recs, err := st.Query(cmd.Context(), q)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no audit records")
				return nil
			}
			for _, rec := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-15s  %-8s  %s%s\n",
					rec.Timestamp.Format(time.RFC3339),
					colorOutcome(rec.Outcome), rec.Classification,
					rec.TargetPath, suffix(rec))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pathLike, "path", "", "Filter by path substring")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Filter by outcome (comma-separated)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to show")
	return cmd
}

func newAuditVerifyCmd() *cobra.Command {
	var (
		keyFile   string
		keyEnv    string
		algorithm string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity chain of the audit trail",
		Long: `Verify recomputes the HMAC chain over every audit record in order,
checking that each entry's prev_hash matches its predecessor and that the
entry hash is correct for the payload. Any edit, deletion, or reordering
breaks the chain at the first affected record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if keyFile == "" && keyEnv == "" {
				keyFile = cfg.Audit.Integrity.KeyFile
				keyEnv = cfg.Audit.Integrity.KeyEnv
			}
			if algorithm == "" {
				algorithm = cfg.Audit.Integrity.Algorithm
			}
			key, err := audit.LoadKey(keyFile, keyEnv)
			if err != nil {
				return err
			}

			st, err := openAuditStore(cfg.Audit)
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.Query(cmd.Context(), types.AuditQuery{Asc: true})
			if err != nil {
				return err
			}
			res := audit.Verify(recs, key, algorithm)
			if !res.OK {
				return exitWith(3, "chain broken at record %d of %d: %s", res.BadIndex+1, res.Count, res.Reason)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d records verified\n",
				color.New(color.FgGreen).Sprint("ok"), res.Count)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyFile, "key-file", "", "HMAC key file (defaults to config)")
	cmd.Flags().StringVar(&keyEnv, "key-env", "", "Environment variable holding the HMAC key")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "hmac-sha256 or hmac-sha512")
	return cmd
}

func openAuditStore(cfg config.AuditConfig) (store.AuditStore, error) {
	switch cfg.Backend {
	case "", "jsonl":
		return jsonl.New(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups)
	case "sqlite":
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
}

func colorOutcome(o types.AuditOutcome) string {
	switch o {
	case types.OutcomeWritten, types.OutcomeApproved:
		return color.New(color.FgGreen).Sprint(string(o))
	case types.OutcomeSecurityBlock, types.OutcomePolicyBlock:
		return color.New(color.FgRed).Sprint(string(o))
	default:
		return color.New(color.FgYellow).Sprint(string(o))
	}
}

func suffix(rec types.AuditRecord) string {
	var parts []string
	if rec.Actor != "" {
		parts = append(parts, "actor="+rec.Actor)
	}
	if rec.Fallback != "" {
		parts = append(parts, "fallback")
	}
	if rec.Reason != "" {
		parts = append(parts, rec.Reason)
	}
	if len(parts) == 0 {
		return ""
	}
	return "  (" + strings.Join(parts, ", ") + ")"
}
