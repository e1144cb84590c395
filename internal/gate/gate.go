// Package gate composes path validation, change analysis, approval, and
// merging into a single evaluation call with an unconditional audit trail.
package gate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/writegate/writegate/internal/approval"
	"github.com/writegate/writegate/internal/diffview"
	"github.com/writegate/writegate/internal/merge"
	"github.com/writegate/writegate/internal/pathsec"
	"github.com/writegate/writegate/internal/store"
	"github.com/writegate/writegate/pkg/types"
)

// AnalyzeError means the existing content could not be read or decoded, so
// the change cannot be classified. The gate fails closed on it.
type AnalyzeError struct {
	Path string
	Err  error
}

func (e *AnalyzeError) Error() string {
	return fmt.Sprintf("cannot analyze %s: %v", e.Path, e.Err)
}

func (e *AnalyzeError) Unwrap() error { return e.Err }

// Options configure one gate instance. Thresholds, diff bounds, and timeout
// live in explicit values so instances with different policies can coexist.
type Options struct {
	Validator  *pathsec.Validator
	Controller *approval.Controller
	Audit      store.AuditStore
	Thresholds diffview.Thresholds
	Render     diffview.RenderOptions
	// WriteBack makes the gate write approved content to disk itself.
	// Otherwise the caller writes GateResult.FinalContent.
	WriteBack bool
	Logger    *slog.Logger
}

// Gate evaluates proposed writes. Safe for concurrent use; evaluations of
// the same canonical path are serialized.
type Gate struct {
	validator  *pathsec.Validator
	controller *approval.Controller
	audit      store.AuditStore
	th         diffview.Thresholds
	render     diffview.RenderOptions
	writeBack  bool
	log        *slog.Logger

	locks sync.Map // canonical path -> *sync.Mutex
}

func New(opts Options) (*Gate, error) {
	if opts.Validator == nil {
		return nil, fmt.Errorf("gate: validator is required")
	}
	if opts.Controller == nil {
		return nil, fmt.Errorf("gate: approval controller is required")
	}
	if opts.Audit == nil {
		return nil, fmt.Errorf("gate: audit store is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		validator:  opts.Validator,
		controller: opts.Controller,
		audit:      opts.Audit,
		th:         opts.Thresholds,
		render:     opts.Render,
		writeBack:  opts.WriteBack,
		log:        log,
	}, nil
}

// Evaluate runs one write request through the gate. Approval outcomes
// (rejected, blocked) are ordinary results with Written=false; security and
// analysis failures return an error. In every case exactly one audit record
// is appended before returning.
func (g *Gate) Evaluate(ctx context.Context, req types.WriteRequest) (types.GateResult, error) {
	if req.Strategy != "" && !types.ValidStrategy(req.Strategy) {
		res := types.GateResult{Decision: types.ApprovalDecision{
			State:     types.StateRejected,
			Reason:    fmt.Sprintf("unknown merge strategy %q", req.Strategy),
			DecidedBy: "gate",
			DecidedAt: time.Now().UTC(),
		}}
		err := fmt.Errorf("unknown merge strategy %q", req.Strategy)
		return g.finish(ctx, req, res, types.OutcomeRejected, res.Decision.Reason), err
	}

	target, err := g.validator.Resolve(req.TargetPath)
	if err != nil {
		outcome := types.OutcomeSecurityBlock
		if _, ok := err.(*pathsec.PolicyError); ok {
			outcome = types.OutcomePolicyBlock
		}
		g.log.Warn("write blocked before analysis", "path", req.TargetPath, "err", err)
		res := types.GateResult{Decision: types.ApprovalDecision{
			State:     types.StateRejected,
			Reason:    err.Error(),
			DecidedBy: "gate",
			DecidedAt: time.Now().UTC(),
		}}
		return g.finish(ctx, req, res, outcome, err.Error()), err
	}

	mu := g.pathLock(target.Path)
	mu.Lock()
	defer mu.Unlock()

	original, err := g.readOriginal(target)
	if err != nil {
		res := types.GateResult{Target: target, Decision: types.ApprovalDecision{
			State:     types.StateRejected,
			Reason:    err.Error(),
			DecidedBy: "gate",
			DecidedAt: time.Now().UTC(),
		}}
		return g.finish(ctx, req, res, types.OutcomeAnalyzeFailure, err.Error()), err
	}

	analysis := diffview.Analyze(original, req.ProposedContent, g.th)

	res := types.GateResult{Target: target, Analysis: &analysis}
	prompt := approval.Prompt{
		ID:         "approval-" + uuid.NewString(),
		TargetPath: target.Path,
		Analysis:   analysis,
	}
	if analysis.Classification.RequiresApproval() {
		diff, derr := diffview.Unified(original, req.ProposedContent, target.Path, g.render)
		if derr != nil {
			diff = "(diff unavailable: " + derr.Error() + ")"
		}
		res.Diff = diff
		prompt.Diff = diff
		prompt.DeletedPreview = diffview.DeletedPreview(analysis.DeletedPreview, g.render.Color)
	}

	res.Decision = g.controller.Decide(ctx, prompt)
	res.Decision.Classification = analysis.Classification

	if !res.Decision.Approved {
		return g.finish(ctx, req, res, types.OutcomeRejected, res.Decision.Reason), nil
	}

	strategy := req.Strategy
	if res.Decision.Strategy != "" {
		// The approver's explicit selection wins over the request's.
		strategy = res.Decision.Strategy
	}
	merged, err := merge.Apply(original, req.ProposedContent, strategy, merge.Options{
		Path:         target.Path,
		InsertOffset: req.InsertOffset,
	})
	if err != nil {
		res.Decision.Reason = err.Error()
		return g.finish(ctx, req, res, types.OutcomeRejected, err.Error()), err
	}
	res.FinalContent = merged.Content
	res.Decision.Strategy = merged.Strategy

	res.Fallback = merged.Fallback
	if merged.Fallback != "" {
		g.log.Info("merge fallback", "path", target.Path, "note", merged.Fallback)
	}

	outcome := types.OutcomeApproved
	if g.writeBack {
		if err := writeFile(target.Path, merged.Content); err != nil {
			reason := "write failed: " + err.Error()
			return g.finish(ctx, req, res, types.OutcomeApproved, reason), err
		}
		res.Written = true
		outcome = types.OutcomeWritten
	}

	return g.finish(ctx, req, res, outcome, res.Decision.Reason), nil
}

// finish appends exactly one audit record for the evaluation and returns the
// completed result. It is the single exit point for Evaluate.
func (g *Gate) finish(ctx context.Context, req types.WriteRequest, res types.GateResult, outcome types.AuditOutcome, reason string) types.GateResult {
	rec := types.AuditRecord{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		TargetPath: req.TargetPath,
		State:      res.Decision.State,
		Outcome:    outcome,
		Actor:      req.Actor,
		Strategy:   res.Decision.Strategy,
		Fallback:   res.Fallback,
		Reason:     reason,
	}
	if res.Target.Path != "" {
		rec.TargetPath = res.Target.Path
	}
	if res.Analysis != nil {
		rec.Classification = res.Analysis.Classification
	}
	if err := g.audit.Append(ctx, rec); err != nil {
		g.log.Error("audit append failed", "path", rec.TargetPath, "err", err)
	}
	res.Audit = rec
	return res
}

func (g *Gate) readOriginal(target types.ResolvedTarget) (string, error) {
	if !target.Exists {
		return "", nil
	}
	data, err := os.ReadFile(target.Path)
	if err != nil {
		return "", &AnalyzeError{Path: target.Path, Err: err}
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", &AnalyzeError{Path: target.Path, Err: fmt.Errorf("binary or undecodable content")}
	}
	return string(data), nil
}

func (g *Gate) pathLock(p string) *sync.Mutex {
	v, _ := g.locks.LoadOrStore(p, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
