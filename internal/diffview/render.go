package diffview

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
)

// RenderOptions bound and decorate rendered diffs.
type RenderOptions struct {
	// MaxLines caps the rendered diff. Zero falls back to the default.
	MaxLines int
	// Color decorates added/deleted lines for terminal display.
	Color bool
	// Context is the number of unchanged lines around each hunk.
	Context int
}

const DefaultMaxDiffLines = 50

// Unified renders a unified-diff-style block between original and proposed
// content. Output is capped at MaxLines; when truncated, exactly one marker
// line is appended stating how many lines were omitted.
func Unified(original, proposed, path string, opts RenderOptions) (string, error) {
	maxLines := opts.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxDiffLines
	}
	ctx := opts.Context
	if ctx <= 0 {
		ctx = 3
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(proposed),
		FromFile: path + " (current)",
		ToFile:   path + " (proposed)",
		Context:  ctx,
	})
	if err != nil {
		return "", fmt.Errorf("render diff: %w", err)
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > maxLines {
		omitted := len(lines) - maxLines
		lines = append(lines[:maxLines], fmt.Sprintf("... (%d more lines omitted)", omitted))
	}
	if opts.Color {
		colorizeLines(lines)
	}
	return strings.Join(lines, "\n"), nil
}

// DeletedPreview renders the lines that disappear if the proposed content is
// written. It is deliberately independent of diff truncation so a replace
// warning can always show everything that would be lost.
func DeletedPreview(preview []string, colored bool) string {
	if len(preview) == 0 {
		return ""
	}
	var b strings.Builder
	red := color.New(color.FgRed).SprintFunc()
	for _, line := range preview {
		out := "- " + line
		if colored {
			out = red(out)
		}
		b.WriteString(out)
		b.WriteByte('\n')
	}
	return b.String()
}

func colorizeLines(lines []string) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			// keep headers plain
		case strings.HasPrefix(line, "@@"):
			lines[i] = cyan(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = green(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = red(line)
		}
	}
}
