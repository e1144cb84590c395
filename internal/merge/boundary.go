package merge

import (
	"path/filepath"
	"strings"
)

// BoundaryFinder locates where new members should be spliced into existing
// content for the extend strategy. Boundary heuristics are inherently
// language-specific, so each target language registers its own finder.
type BoundaryFinder interface {
	Name() string
	// Boundary returns the line index immediately before the closing
	// boundary of the last top-level structural block. ok is false when no
	// unambiguous boundary exists.
	Boundary(lines []string) (idx int, ok bool)
}

var finders = map[string]BoundaryFinder{
	".go":   braceFinder{},
	".py":   indentFinder{},
	".java": braceFinder{},
	".ts":   braceFinder{},
	".js":   braceFinder{},
}

// FinderFor selects a boundary finder by the target file's extension.
func FinderFor(path string) (BoundaryFinder, bool) {
	f, ok := finders[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// braceFinder handles brace-delimited languages: the closing boundary is the
// last line holding a lone "}" at column zero.
type braceFinder struct{}

func (braceFinder) Name() string { return "brace" }

func (braceFinder) Boundary(lines []string) (int, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimRight(lines[i], " \t") == "}" {
			return i, true
		}
	}
	return 0, false
}

// indentFinder handles indentation-delimited languages: the last top-level
// def/class block closes at the first later line back at column zero, or at
// end of file.
type indentFinder struct{}

func (indentFinder) Name() string { return "indent" }

func (indentFinder) Boundary(lines []string) (int, bool) {
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "def ") || strings.HasPrefix(line, "class ") {
			start = i
		}
	}
	if start < 0 {
		return 0, false
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			end = i
			break
		}
	}
	// Trim trailing blank lines out of the block so members land inside it.
	for end > start+1 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return end, true
}
