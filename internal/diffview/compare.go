// Package diffview compares existing file content against proposed content,
// classifies how drastic the change is, and renders bounded diffs for
// approval prompts.
package diffview

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/writegate/writegate/pkg/types"
)

// Thresholds tune classification. Zero values fall back to the defaults.
type Thresholds struct {
	// LineFloor is the original line count at or below which a change is
	// always an ordinary modify, however much content it touches.
	LineFloor int
	// RatioCeiling is the change ratio at or above which a large file's
	// rewrite classifies as a replace.
	RatioCeiling float64
}

const (
	DefaultLineFloor    = 100
	DefaultRatioCeiling = 0.5
)

func (t Thresholds) withDefaults() Thresholds {
	if t.LineFloor <= 0 {
		t.LineFloor = DefaultLineFloor
	}
	if t.RatioCeiling <= 0 {
		t.RatioCeiling = DefaultRatioCeiling
	}
	return t
}

// Analyze computes line-level added/deleted counts between original and
// proposed content and classifies the change. It is pure and deterministic:
// identical inputs always produce identical analyses.
func Analyze(original, proposed string, th Thresholds) types.ChangeAnalysis {
	th = th.withDefaults()

	a := splitLines(original)
	b := splitLines(proposed)

	var added, deleted int
	var deletedPreview []string
	m := difflib.NewMatcher(a, b)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'd':
			deleted += op.I2 - op.I1
			deletedPreview = append(deletedPreview, a[op.I1:op.I2]...)
		case 'i':
			added += op.J2 - op.J1
		case 'r':
			deleted += op.I2 - op.I1
			added += op.J2 - op.J1
			deletedPreview = append(deletedPreview, a[op.I1:op.I2]...)
		}
	}

	an := types.ChangeAnalysis{
		OriginalLines:  len(a),
		AddedLines:     added,
		DeletedLines:   deleted,
		DeletedPreview: deletedPreview,
	}
	if an.OriginalLines > 0 {
		an.ChangeRatio = float64(added+deleted) / float64(an.OriginalLines)
	}
	an.Classification = classify(an, th)
	return an
}

func classify(an types.ChangeAnalysis, th Thresholds) types.Classification {
	switch {
	case an.OriginalLines == 0:
		return types.ClassNew
	case an.OriginalLines <= th.LineFloor:
		return types.ClassModify
	case an.ChangeRatio < th.RatioCeiling:
		return types.ClassModify
	default:
		return types.ClassReplace
	}
}

// splitLines splits content into lines without trailing newlines. Empty
// content has zero lines; a trailing newline does not produce a phantom
// final line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
