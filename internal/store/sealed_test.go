package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/writegate/writegate/internal/audit"
	"github.com/writegate/writegate/pkg/types"
)

type memStore struct {
	recs []types.AuditRecord
	last audit.ChainState
}

func (m *memStore) Append(_ context.Context, rec types.AuditRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) Query(_ context.Context, _ types.AuditQuery) ([]types.AuditRecord, error) {
	return m.recs, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) LastChainState(_ context.Context) (audit.ChainState, error) {
	return m.last, nil
}

func TestSealedStoreSealsBeforeAppend(t *testing.T) {
	key := []byte(strings.Repeat("k", audit.MinKeyLength))
	chain, err := audit.NewChain(key)
	if err != nil {
		t.Fatal(err)
	}
	mem := &memStore{}
	s, err := NewSealed(context.Background(), mem, chain)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		rec := types.AuditRecord{ID: "r", Timestamp: time.Now().UTC(), TargetPath: "/ws/x.go", Outcome: types.OutcomeWritten}
		if err := s.Append(context.Background(), rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if len(mem.recs) != 3 {
		t.Fatalf("got %d records, want 3", len(mem.recs))
	}
	for i, rec := range mem.recs {
		if rec.Integrity == nil || rec.Integrity.Sequence != int64(i+1) {
			t.Fatalf("record %d not sealed: %+v", i, rec.Integrity)
		}
	}
	if res := audit.Verify(mem.recs, key, ""); !res.OK {
		t.Fatalf("sealed records must verify: %s", res.Reason)
	}
}

func TestNewSealedRestoresChainPosition(t *testing.T) {
	key := []byte(strings.Repeat("k", audit.MinKeyLength))
	chain, _ := audit.NewChain(key)
	mem := &memStore{last: audit.ChainState{Sequence: 9, PrevHash: "deadbeef"}}

	s, err := NewSealed(context.Background(), mem, chain)
	if err != nil {
		t.Fatal(err)
	}
	rec := types.AuditRecord{ID: "r", Timestamp: time.Now().UTC(), TargetPath: "/ws/x.go", Outcome: types.OutcomeRejected}
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	got := mem.recs[0].Integrity
	if got.Sequence != 10 || got.PrevHash != "deadbeef" {
		t.Fatalf("chain did not continue: %+v", got)
	}
}
