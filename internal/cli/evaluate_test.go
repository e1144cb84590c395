package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runEvaluate(t *testing.T, cfgPath string, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRoot("test")
	root.SetArgs(append([]string{"--config", cfgPath, "evaluate"}, args...))
	root.SetIn(strings.NewReader(stdin))
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), err
}

func TestEvaluateCmd_WritesNewFile(t *testing.T) {
	cfgPath, workspace := writeTestConfig(t)

	out, err := runEvaluate(t, cfgPath, "package notes\n", "notes.go", "--actor", "test")
	if err != nil {
		t.Fatalf("evaluate error = %v", err)
	}
	if !strings.Contains(out, "written") {
		t.Errorf("output = %q, want it to mention written", out)
	}
	if !strings.Contains(out, "classification: new") {
		t.Errorf("output = %q, want new classification", out)
	}

	data, err := os.ReadFile(filepath.Join(workspace, "notes.go"))
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(data) != "package notes\n" {
		t.Errorf("file content = %q", data)
	}
}

func TestEvaluateCmd_ReplaceRejectedWithoutChannel(t *testing.T) {
	cfgPath, workspace := writeTestConfig(t)

	original := strings.Repeat("keep this line\n", 150)
	target := filepath.Join(workspace, "big.txt")
	if err := os.WriteFile(target, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runEvaluate(t, cfgPath, "entirely new content\n", "big.txt", "--unattended")
	if err == nil {
		t.Fatal("expected rejection error")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %T, want *ExitError", err)
	}
	if exitErr.Code() != 2 {
		t.Errorf("exit code = %d, want 2", exitErr.Code())
	}
	if !strings.Contains(out, "rejected") {
		t.Errorf("output = %q, want rejection notice", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != original {
		t.Error("rejected replace must leave the file untouched")
	}
}

func TestEvaluateCmd_EscapingPathFails(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	_, err := runEvaluate(t, cfgPath, "x\n", "../outside.txt")
	if err == nil {
		t.Fatal("expected error for path escaping the workspace")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Fatalf("security failures are errors, not exit-coded rejections: %v", err)
	}
}
