// Package merge combines approved proposed content with existing file
// content according to the selected strategy.
package merge

import (
	"fmt"
	"strings"

	"github.com/writegate/writegate/pkg/types"
)

// Options carry the per-request knobs for Apply.
type Options struct {
	// Path is the target path, used to pick a language-specific boundary
	// finder for the extend strategy.
	Path string
	// InsertOffset is the zero-based line offset for the insert strategy.
	// Out-of-range offsets clamp to end of file.
	InsertOffset int
}

// Result is the merged content plus the strategy that actually ran.
type Result struct {
	Content string
	// Strategy is the effective strategy; differs from the requested one
	// only when extend fell back to append.
	Strategy types.MergeStrategy
	// Fallback explains a strategy substitution for the audit record.
	Fallback string
}

// Apply produces the final content for an approved write. It must only be
// called after an affirmative approval decision.
func Apply(original, proposed string, strategy types.MergeStrategy, opts Options) (Result, error) {
	switch strategy {
	case "", types.StrategyReplace:
		return Result{Content: proposed, Strategy: types.StrategyReplace}, nil
	case types.StrategyAppend:
		return Result{Content: appendContent(original, proposed), Strategy: types.StrategyAppend}, nil
	case types.StrategyInsert:
		return Result{Content: insertContent(original, proposed, opts.InsertOffset), Strategy: types.StrategyInsert}, nil
	case types.StrategyExtend:
		return extendContent(original, proposed, opts.Path), nil
	default:
		return Result{}, fmt.Errorf("unknown merge strategy %q", strategy)
	}
}

func appendContent(original, proposed string) string {
	if original == "" {
		return proposed
	}
	return strings.TrimRight(original, "\n") + "\n\n" + proposed
}

func insertContent(original, proposed string, offset int) string {
	lines := contentLines(original)
	if offset < 0 {
		offset = 0
	}
	if offset > len(lines) {
		offset = len(lines)
	}
	spliced := make([]string, 0, len(lines)+1)
	spliced = append(spliced, lines[:offset]...)
	spliced = append(spliced, contentLines(proposed)...)
	spliced = append(spliced, lines[offset:]...)
	return joinLines(spliced)
}

func extendContent(original, proposed, path string) Result {
	finder, ok := FinderFor(path)
	if !ok {
		return Result{
			Content:  appendContent(original, proposed),
			Strategy: types.StrategyAppend,
			Fallback: "extend: no boundary finder for target language; appended",
		}
	}
	lines := contentLines(original)
	idx, ok := finder.Boundary(lines)
	if !ok {
		return Result{
			Content:  appendContent(original, proposed),
			Strategy: types.StrategyAppend,
			Fallback: fmt.Sprintf("extend: %s finder found no structural boundary; appended", finder.Name()),
		}
	}
	spliced := make([]string, 0, len(lines)+1)
	spliced = append(spliced, lines[:idx]...)
	spliced = append(spliced, contentLines(proposed)...)
	spliced = append(spliced, lines[idx:]...)
	return Result{Content: joinLines(spliced), Strategy: types.StrategyExtend}
}

func contentLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
