// Package approval decides whether a classified write may proceed.
//
// The controller is a state machine:
//
//	PENDING -> AUTO_APPROVED            -> APPROVED   (new / modify)
//	PENDING -> AWAITING_DECISION        -> APPROVED   (explicit "approve" token)
//	PENDING -> AWAITING_DECISION        -> REJECTED   (anything else, timeout, cancel)
//	PENDING -> NON_INTERACTIVE_BLOCKED  -> REJECTED   (replace with no decision channel)
//
// No state reachable without a decision channel can terminate in APPROVED
// for a replace, so an unattended run structurally cannot force one through.
package approval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/writegate/writegate/pkg/types"
)

// DefaultTimeout bounds the wait for a decision.
const DefaultTimeout = 30 * time.Minute

// Prompt is what a decision channel shows to whoever decides.
type Prompt struct {
	ID             string               `json:"id"`
	TargetPath     string               `json:"target_path"`
	Analysis       types.ChangeAnalysis `json:"analysis"`
	Diff           string               `json:"diff,omitempty"`
	DeletedPreview string               `json:"deleted_preview,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ExpiresAt      time.Time            `json:"expires_at"`
}

// Response is the raw decision input from a human or calling process.
type Response struct {
	// Token is the literal decision text. Only an exact case-insensitive
	// "approve", optionally followed by a strategy name, approves.
	Token string
	By    string
}

// Channel presents a prompt and blocks until a response, context
// cancellation, or deadline.
type Channel interface {
	Name() string
	Decide(ctx context.Context, p Prompt) (Response, error)
}

// Controller runs the approval state machine for one gate instance.
type Controller struct {
	channel Channel
	timeout time.Duration
	log     *slog.Logger
}

// New builds a controller. channel may be nil, which makes
// AWAITING_DECISION unreachable: every replace is then blocked immediately.
func New(channel Channel, timeout time.Duration, log *slog.Logger) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{channel: channel, timeout: timeout, log: log}
}

// Interactive reports whether a decision channel is available.
func (c *Controller) Interactive() bool { return c.channel != nil }

// Decide resolves the approval state machine for one analyzed request.
// It never returns a non-terminal state and never blocks beyond the
// configured timeout.
func (c *Controller) Decide(ctx context.Context, p Prompt) types.ApprovalDecision {
	cls := p.Analysis.Classification
	if !cls.RequiresApproval() {
		return types.ApprovalDecision{
			Classification: cls,
			Approved:       true,
			State:          types.StateApproved,
			Via:            types.StateAutoApproved,
			DecidedBy:      "auto",
			DecidedAt:      time.Now().UTC(),
		}
	}

	if c.channel == nil {
		c.log.Warn("replace blocked: no decision channel", "path", p.TargetPath)
		return types.ApprovalDecision{
			Classification: cls,
			State:          types.StateRejected,
			Via:            types.StateNonInteractiveBlocked,
			DecidedBy:      "gate",
			Reason:         "replace requires approval and no decision channel is available",
			DecidedAt:      time.Now().UTC(),
		}
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.ExpiresAt = now.Add(c.timeout)

	dctx, cancel := context.WithDeadline(ctx, p.ExpiresAt)
	defer cancel()

	resp, err := c.channel.Decide(dctx, p)
	if err != nil {
		reason := "decision channel error: " + err.Error()
		switch {
		case dctx.Err() == context.DeadlineExceeded:
			reason = "timeout"
		case ctx.Err() != nil:
			reason = "canceled"
		}
		c.log.Warn("replace rejected", "path", p.TargetPath, "reason", reason)
		return types.ApprovalDecision{
			Classification: cls,
			State:          types.StateRejected,
			Via:            types.StateAwaitingDecision,
			DecidedBy:      c.channel.Name(),
			Reason:         reason,
			DecidedAt:      time.Now().UTC(),
		}
	}

	approved, strategy := ParseToken(resp.Token)
	by := resp.By
	if by == "" {
		by = c.channel.Name()
	}
	d := types.ApprovalDecision{
		Classification: cls,
		Approved:       approved,
		Strategy:       strategy,
		Via:            types.StateAwaitingDecision,
		DecidedBy:      by,
		DecidedAt:      time.Now().UTC(),
	}
	if approved {
		d.State = types.StateApproved
	} else {
		d.State = types.StateRejected
		d.Reason = "explicit rejection"
		if strings.TrimSpace(resp.Token) == "" {
			d.Reason = "empty decision input"
		}
	}
	return d
}

// ParseToken interprets raw decision input. Only an exact case-insensitive
// "approve" token approves; it may carry a strategy selection, e.g.
// "approve append". Empty or unrecognized input is a rejection, never an
// implicit approval.
func ParseToken(input string) (bool, types.MergeStrategy) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(fields) == 0 || fields[0] != "approve" {
		return false, ""
	}
	if len(fields) >= 2 {
		s := types.MergeStrategy(fields[1])
		if !types.ValidStrategy(s) {
			// An unrecognized selection is not a valid approval phrase.
			return false, ""
		}
		return true, s
	}
	return true, ""
}
