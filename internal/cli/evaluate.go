package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/writegate/writegate/internal/gate"
	"github.com/writegate/writegate/pkg/types"
)

func newEvaluateCmd() *cobra.Command {
	var (
		fromFile     string
		strategy     string
		insertOffset int
		actor        string
		unattended   bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate <target-path>",
		Short: "Evaluate one proposed write through the gate",
		Long: `Evaluate reads proposed content from --file (or stdin) and runs it
through the gate against the workspace. New files and ordinary modifies are
approved automatically; a replace prompts on the terminal unless
--unattended is set, in which case it is rejected immediately.

Exit codes: 0 approved/written, 2 rejected or blocked, 1 error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if unattended {
				cfg.Approvals.Unattended = true
			}

			proposed, err := readProposed(fromFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			log := newLogger(cfg.Logging, cmd.ErrOrStderr())
			rt, err := gate.BuildRuntime(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Gate.Evaluate(cmd.Context(), types.WriteRequest{
				TargetPath:      args[0],
				ProposedContent: proposed,
				Strategy:        types.MergeStrategy(strategy),
				InsertOffset:    insertOffset,
				Actor:           actor,
			})
			printResult(cmd.OutOrStdout(), res)
			if err != nil {
				return err
			}
			if !res.Decision.Approved {
				return exitWith(2, "write rejected: %s", res.Decision.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read proposed content from file instead of stdin")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Merge strategy: replace|append|insert|extend")
	cmd.Flags().IntVar(&insertOffset, "insert-offset", 0, "Line offset for the insert strategy")
	cmd.Flags().StringVar(&actor, "actor", "cli", "Actor recorded in the audit trail")
	cmd.Flags().BoolVar(&unattended, "unattended", false, "Run without a decision channel (replaces fail fast)")

	return cmd
}

func readProposed(path string, stdin io.Reader) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read proposed content: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func printResult(w io.Writer, res types.GateResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if res.Analysis != nil {
		fmt.Fprintf(w, "classification: %s (+%d/-%d of %d lines, ratio %.2f)\n",
			res.Analysis.Classification, res.Analysis.AddedLines,
			res.Analysis.DeletedLines, res.Analysis.OriginalLines, res.Analysis.ChangeRatio)
	}
	switch {
	case res.Written:
		fmt.Fprintf(w, "%s %s\n", green("written"), res.Target.Path)
	case res.Decision.Approved:
		fmt.Fprintf(w, "%s strategy=%s (content returned, not written)\n", green("approved"), res.Decision.Strategy)
	default:
		fmt.Fprintf(w, "%s %s\n", red("rejected"), res.Decision.Reason)
		if res.Diff != "" {
			fmt.Fprintf(w, "\n%s\n", res.Diff)
		}
	}
	if res.Fallback != "" {
		fmt.Fprintf(w, "note: %s\n", res.Fallback)
	}
}
