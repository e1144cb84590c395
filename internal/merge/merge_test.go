package merge

import (
	"strings"
	"testing"

	"github.com/writegate/writegate/pkg/types"
)

func TestApplyReplace(t *testing.T) {
	res, err := Apply("old\n", "new\n", types.StrategyReplace, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Content != "new\n" {
		t.Fatalf("content = %q, want proposed verbatim", res.Content)
	}
	if res.Fallback != "" {
		t.Fatalf("unexpected fallback %q", res.Fallback)
	}
}

func TestApplyAppend(t *testing.T) {
	res, err := Apply("a\nb\n", "c\n", types.StrategyAppend, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Content != "a\nb\n\nc\n" {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestApplyAppendToEmpty(t *testing.T) {
	res, err := Apply("", "c\n", types.StrategyAppend, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Content != "c\n" {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestApplyInsertAtOffset(t *testing.T) {
	res, err := Apply("a\nb\nc\n", "x\n", types.StrategyInsert, Options{InsertOffset: 1})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Content != "a\nx\nb\nc\n" {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestApplyInsertClampsOutOfRange(t *testing.T) {
	for _, offset := range []int{100, -5} {
		res, err := Apply("a\nb\n", "x\n", types.StrategyInsert, Options{InsertOffset: offset})
		if err != nil {
			t.Fatalf("Apply(offset=%d): %v", offset, err)
		}
		want := "a\nb\nx\n"
		if offset < 0 {
			want = "x\na\nb\n"
		}
		if res.Content != want {
			t.Fatalf("offset %d: content = %q, want %q", offset, res.Content, want)
		}
	}
}

func TestApplyExtendGo(t *testing.T) {
	original := strings.Join([]string{
		"package demo",
		"",
		"type Store struct {",
		"\tpath string",
		"}",
		"",
	}, "\n")
	res, err := Apply(original, "\tcount int\n", types.StrategyExtend, Options{Path: "store.go"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Strategy != types.StrategyExtend {
		t.Fatalf("strategy = %s, want extend", res.Strategy)
	}
	want := strings.Join([]string{
		"package demo",
		"",
		"type Store struct {",
		"\tpath string",
		"\tcount int",
		"}",
		"",
	}, "\n")
	if res.Content != want {
		t.Fatalf("content:\n%q\nwant:\n%q", res.Content, want)
	}
}

func TestApplyExtendPython(t *testing.T) {
	original := strings.Join([]string{
		"import os",
		"",
		"class Gate:",
		"    def evaluate(self):",
		"        pass",
		"",
	}, "\n")
	res, err := Apply(original, "    def close(self):\n        pass\n", types.StrategyExtend, Options{Path: "gate.py"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Strategy != types.StrategyExtend {
		t.Fatalf("strategy = %s, want extend (got fallback %q)", res.Strategy, res.Fallback)
	}
	if !strings.Contains(res.Content, "        pass\n    def close(self):") {
		t.Fatalf("members not inserted inside class:\n%s", res.Content)
	}
}

func TestApplyExtendFallsBackWithoutBoundary(t *testing.T) {
	res, err := Apply("just text\nno structure\n", "more\n", types.StrategyExtend, Options{Path: "notes.go"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Strategy != types.StrategyAppend {
		t.Fatalf("strategy = %s, want append fallback", res.Strategy)
	}
	if res.Fallback == "" {
		t.Fatalf("fallback reason must be recorded")
	}
	if !strings.HasSuffix(res.Content, "more\n") {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestApplyExtendUnknownLanguageFallsBack(t *testing.T) {
	res, err := Apply("a\n", "b\n", types.StrategyExtend, Options{Path: "data.csv"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Strategy != types.StrategyAppend || res.Fallback == "" {
		t.Fatalf("expected recorded append fallback, got %+v", res)
	}
}

func TestApplyUnknownStrategy(t *testing.T) {
	if _, err := Apply("a\n", "b\n", "merge3", Options{}); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
