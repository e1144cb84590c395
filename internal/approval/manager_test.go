package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/writegate/writegate/pkg/types"
)

func TestManagerResolveUnblocksDecide(t *testing.T) {
	m := NewManager()
	done := make(chan Response, 1)
	go func() {
		resp, err := m.Decide(context.Background(), Prompt{ID: "ap-1", TargetPath: "/ws/a.go"})
		if err != nil {
			t.Errorf("Decide: %v", err)
		}
		done <- resp
	}()

	// Wait for the prompt to register.
	deadline := time.Now().Add(2 * time.Second)
	for len(m.ListPending()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("prompt never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if ok := m.Resolve("ap-1", "approve", "reviewer"); !ok {
		t.Fatalf("Resolve returned false for pending prompt")
	}
	resp := <-done
	if resp.Token != "approve" || resp.By != "reviewer" {
		t.Fatalf("resp = %+v", resp)
	}
	if len(m.ListPending()) != 0 {
		t.Fatalf("prompt still pending after resolve")
	}
}

func TestManagerResolveUnknownID(t *testing.T) {
	m := NewManager()
	if m.Resolve("nope", "approve", "x") {
		t.Fatalf("Resolve must report false for unknown id")
	}
}

func TestManagerResolveExpiredPrompt(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := m.Decide(ctx, Prompt{ID: "ap-exp", ExpiresAt: time.Now().UTC().Add(-time.Second)})
		done <- err
	}()

	// ListPending hides expired prompts, so watch the map itself.
	deadline := time.Now().Add(2 * time.Second)
	for {
		m.mu.Lock()
		_, registered := m.pending["ap-exp"]
		m.mu.Unlock()
		if registered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("prompt never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if m.Resolve("ap-exp", "approve", "late-reviewer") {
		t.Fatalf("Resolve must report false for an expired prompt")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Decide err = %v, want context.Canceled", err)
	}
}

func TestManagerDecideCancelled(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := m.Decide(ctx, Prompt{ID: "ap-2"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(m.ListPending()) != 0 {
		t.Fatalf("cancelled prompt must be removed from pending")
	}
}

func TestManagerWithControllerEndToEnd(t *testing.T) {
	m := NewManager()
	c := New(m, time.Minute, discardLogger())

	decided := make(chan types.ApprovalDecision, 1)
	go func() {
		decided <- c.Decide(context.Background(), replacePrompt())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		pending := m.ListPending()
		if len(pending) == 1 {
			m.Resolve(pending[0].ID, "approve insert", "ci-bot")
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("prompt never surfaced")
		}
		time.Sleep(5 * time.Millisecond)
	}

	d := <-decided
	if !d.Approved || d.Strategy != types.StrategyInsert || d.DecidedBy != "ci-bot" {
		t.Fatalf("decision = %+v", d)
	}
}
