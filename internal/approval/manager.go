package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager is a programmatic decision channel: pending prompts are listed and
// resolved by ID from another goroutine, typically the HTTP API or the
// `approvals resolve` command.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*pendingPrompt
}

type pendingPrompt struct {
	prompt Prompt
	ch     chan Response
}

func NewManager() *Manager {
	return &Manager{pending: make(map[string]*pendingPrompt)}
}

func (m *Manager) Name() string { return "api" }

// ListPending returns the prompts still waiting for a decision.
func (m *Manager) ListPending() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Prompt, 0, len(m.pending))
	now := time.Now().UTC()
	for _, p := range m.pending {
		if !p.prompt.ExpiresAt.IsZero() && p.prompt.ExpiresAt.Before(now) {
			continue
		}
		out = append(out, p.prompt)
	}
	return out
}

// Resolve delivers a decision token for a pending prompt. It reports false
// when no such prompt is waiting or the prompt's deadline has passed; an
// expired prompt was already rejected by the controller even if its cleanup
// has not run yet.
func (m *Manager) Resolve(id, token, by string) bool {
	now := time.Now().UTC()
	m.mu.Lock()
	p, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	if !p.prompt.ExpiresAt.IsZero() && p.prompt.ExpiresAt.Before(now) {
		return false
	}
	select {
	case p.ch <- Response{Token: token, By: by}:
	default:
	}
	return true
}

// Decide registers the prompt and blocks until Resolve, cancellation, or the
// controller's deadline.
func (m *Manager) Decide(ctx context.Context, p Prompt) (Response, error) {
	if p.ID == "" {
		p.ID = "approval-" + uuid.NewString()
	}
	pp := &pendingPrompt{prompt: p, ch: make(chan Response, 1)}

	m.mu.Lock()
	m.pending[p.ID] = pp
	m.mu.Unlock()

	select {
	case resp := <-pp.ch:
		return resp, nil
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.pending, p.ID)
		m.mu.Unlock()
		return Response{}, ctx.Err()
	}
}
