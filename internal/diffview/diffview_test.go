package diffview

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/writegate/writegate/pkg/types"
)

func numberedLines(prefix string, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s-%d\n", prefix, i)
	}
	return b.String()
}

func TestAnalyzeNewFile(t *testing.T) {
	an := Analyze("", "package main\n\nfunc main() {}\n", Thresholds{})
	if an.Classification != types.ClassNew {
		t.Fatalf("classification = %s, want new", an.Classification)
	}
	if an.Classification.RequiresApproval() {
		t.Fatalf("new must never require approval")
	}
	if an.OriginalLines != 0 || an.DeletedLines != 0 {
		t.Fatalf("unexpected counts: %+v", an)
	}
	if an.AddedLines != 3 {
		t.Fatalf("added = %d, want 3", an.AddedLines)
	}
}

func TestAnalyzeEmptyProposedToMissingFileIsNew(t *testing.T) {
	an := Analyze("", "", Thresholds{})
	if an.Classification != types.ClassNew {
		t.Fatalf("classification = %s, want new", an.Classification)
	}
}

func TestAnalyzeSmallFileFullRewriteIsModify(t *testing.T) {
	original := numberedLines("old", 50)
	proposed := numberedLines("new", 50)
	an := Analyze(original, proposed, Thresholds{})
	if an.Classification != types.ClassModify {
		t.Fatalf("classification = %s, want modify (small file, 100%% rewrite)", an.Classification)
	}
	if an.ChangeRatio < 1.0 {
		t.Fatalf("expected full rewrite ratio, got %f", an.ChangeRatio)
	}
}

func TestAnalyzeLargeRewriteIsReplace(t *testing.T) {
	// 300-line original: 50 kept, 250 deleted; proposed keeps 50 and adds 30.
	kept := numberedLines("keep", 50)
	original := kept + numberedLines("del", 250)
	proposed := kept + numberedLines("add", 30)

	an := Analyze(original, proposed, Thresholds{})
	if an.OriginalLines != 300 {
		t.Fatalf("original lines = %d, want 300", an.OriginalLines)
	}
	if an.DeletedLines != 250 || an.AddedLines != 30 {
		t.Fatalf("counts = +%d/-%d, want +30/-250", an.AddedLines, an.DeletedLines)
	}
	if an.ChangeRatio < DefaultRatioCeiling {
		t.Fatalf("ratio = %f, want >= %f", an.ChangeRatio, DefaultRatioCeiling)
	}
	if an.Classification != types.ClassReplace {
		t.Fatalf("classification = %s, want replace", an.Classification)
	}
	if !an.Classification.RequiresApproval() {
		t.Fatalf("replace must require approval")
	}
	if len(an.DeletedPreview) != 250 {
		t.Fatalf("deleted preview has %d lines, want 250", len(an.DeletedPreview))
	}
}

func TestAnalyzeSmallChangeToLargeFileIsModify(t *testing.T) {
	original := numberedLines("line", 200)
	proposed := strings.Replace(original, "line-100", "changed-100", 1)
	an := Analyze(original, proposed, Thresholds{})
	if an.Classification != types.ClassModify {
		t.Fatalf("classification = %s, want modify", an.Classification)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	original := numberedLines("a", 150)
	proposed := numberedLines("b", 150)
	first := Analyze(original, proposed, Thresholds{})
	second := Analyze(original, proposed, Thresholds{})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("analyses differ:\n%+v\n%+v", first, second)
	}
}

func TestAnalyzeCustomThresholds(t *testing.T) {
	original := numberedLines("x", 20)
	proposed := numberedLines("y", 20)
	an := Analyze(original, proposed, Thresholds{LineFloor: 10, RatioCeiling: 0.9})
	if an.Classification != types.ClassReplace {
		t.Fatalf("classification = %s, want replace with lowered floor", an.Classification)
	}
}

func TestUnifiedTruncation(t *testing.T) {
	original := numberedLines("old", 1000)
	proposed := numberedLines("new", 1000)

	out, err := Unified(original, proposed, "big.go", RenderOptions{MaxLines: 50})
	if err != nil {
		t.Fatalf("Unified: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 51 {
		t.Fatalf("rendered %d lines, want 50 + 1 marker", len(lines))
	}
	marker := 0
	for _, l := range lines {
		if strings.Contains(l, "more lines omitted") {
			marker++
		}
	}
	if marker != 1 {
		t.Fatalf("found %d truncation markers, want exactly 1", marker)
	}
	if !strings.Contains(lines[len(lines)-1], "more lines omitted") {
		t.Fatalf("marker must be the final line, got %q", lines[len(lines)-1])
	}
}

func TestUnifiedShortDiffNotTruncated(t *testing.T) {
	out, err := Unified("a\nb\n", "a\nc\n", "f.txt", RenderOptions{MaxLines: 50})
	if err != nil {
		t.Fatalf("Unified: %v", err)
	}
	if strings.Contains(out, "omitted") {
		t.Fatalf("short diff must not be truncated:\n%s", out)
	}
	if !strings.Contains(out, "-b") || !strings.Contains(out, "+c") {
		t.Fatalf("diff missing expected hunks:\n%s", out)
	}
}

func TestDeletedPreviewIndependentOfTruncation(t *testing.T) {
	original := numberedLines("gone", 200)
	an := Analyze(original, "", Thresholds{})
	preview := DeletedPreview(an.DeletedPreview, false)
	if got := strings.Count(preview, "\n"); got != 200 {
		t.Fatalf("preview has %d lines, want all 200 regardless of diff cap", got)
	}
	if !strings.HasPrefix(preview, "- gone-0") {
		t.Fatalf("unexpected preview head: %q", preview[:20])
	}
}
