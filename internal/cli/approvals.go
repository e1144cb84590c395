package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/writegate/writegate/internal/approval"
)

func newApprovalsCmd() *cobra.Command {
	var (
		serverAddr string
		apiKey     string
	)

	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Inspect and resolve pending replace approvals on a running gate",
	}
	cmd.PersistentFlags().StringVar(&serverAddr, "server", getenvDefault("WRITEGATE_SERVER", "http://127.0.0.1:8448"), "writegate server base URL")
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", getenvDefault("WRITEGATE_API_KEY", ""), "API key (sent as X-API-Key)")

	cmd.AddCommand(newApprovalsListCmd(&serverAddr, &apiKey))
	cmd.AddCommand(newApprovalsResolveCmd(&serverAddr, &apiKey))
	return cmd
}

func newApprovalsListCmd(serverAddr, apiKey *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List prompts waiting for a decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pending []approval.Prompt
			if err := apiGet(*serverAddr, *apiKey, "/api/v1/approvals", &pending); err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending approvals")
				return nil
			}
			yellow := color.New(color.FgYellow).SprintFunc()
			for _, p := range pending {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  (+%d/-%d of %d lines)  expires %s\n",
					yellow(p.ID), p.TargetPath, p.Analysis.AddedLines,
					p.Analysis.DeletedLines, p.Analysis.OriginalLines,
					p.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newApprovalsResolveCmd(serverAddr, apiKey *string) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "resolve <id> <token>",
		Short: "Deliver a decision token for a pending approval",
		Long: `Resolve delivers the literal decision token. Only an exact
case-insensitive "approve" (optionally "approve <strategy>") approves;
anything else rejects.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"token": args[1], "by": by}
			if err := apiPost(*serverAddr, *apiKey, "/api/v1/approvals/"+args[0], body, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "resolved")
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Identity recorded as the decider")
	return cmd
}

func apiGet(base, apiKey, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	return apiDo(req, apiKey, out)
}

func apiPost(base, apiKey, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return apiDo(req, apiKey, out)
}

func apiDo(req *http.Request, apiKey string, out any) error {
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("server: %s", e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
