package approval

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

// Interactive reports whether stdin is attached to a terminal, i.e. whether
// a TTY decision channel can exist at all.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// TTY is a decision channel that prompts on the controlling terminal.
// Opening /dev/tty directly keeps the prompt working when stdout is piped.
type TTY struct {
	promptMu sync.Mutex
}

func NewTTY() *TTY { return &TTY{} }

func (t *TTY) Name() string { return "tty" }

func (t *TTY) Decide(ctx context.Context, p Prompt) (Response, error) {
	t.promptMu.Lock()
	defer t.promptMu.Unlock()

	f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return Response{}, fmt.Errorf("open /dev/tty: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "\n=== APPROVAL REQUIRED ===\n")
	fmt.Fprintf(f, "Target: %s\nChange: replace (%d lines, +%d/-%d, ratio %.2f)\n",
		p.TargetPath, p.Analysis.OriginalLines, p.Analysis.AddedLines,
		p.Analysis.DeletedLines, p.Analysis.ChangeRatio)
	if p.Diff != "" {
		fmt.Fprintf(f, "\n%s\n", p.Diff)
	}
	if p.DeletedPreview != "" {
		fmt.Fprintf(f, "\nContent that will be deleted:\n%s", p.DeletedPreview)
	}
	fmt.Fprintf(f, "\nType 'approve' (optionally 'approve <replace|append|insert|extend>') to proceed; anything else rejects.\n> ")

	// Read on a goroutine so cancellation and the decision deadline still
	// unblock the controller while the prompt sits unanswered.
	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(f).ReadString('\n')
		if err != nil {
			errCh <- err
			return
		}
		lineCh <- line
	}()

	select {
	case line := <-lineCh:
		return Response{Token: line, By: "tty"}, nil
	case err := <-errCh:
		return Response{}, fmt.Errorf("read /dev/tty: %w", err)
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}
