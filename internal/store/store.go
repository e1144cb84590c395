// Package store persists audit records append-only.
package store

import (
	"context"
	"fmt"

	"github.com/writegate/writegate/internal/audit"
	"github.com/writegate/writegate/pkg/types"
)

// AuditStore is an append-only sink of audit records.
type AuditStore interface {
	Append(ctx context.Context, rec types.AuditRecord) error
	Query(ctx context.Context, q types.AuditQuery) ([]types.AuditRecord, error)
	Close() error
}

// ChainStater is implemented by stores that can report the chain position of
// their newest record, so a restarted gate continues the chain.
type ChainStater interface {
	LastChainState(ctx context.Context) (audit.ChainState, error)
}

// SealedStore wraps an AuditStore and seals every record into an HMAC
// integrity chain before it is written.
type SealedStore struct {
	inner AuditStore
	chain *audit.Chain
}

// NewSealed wraps inner with chain. If inner knows its last chain position,
// the chain is restored to continue the existing log.
func NewSealed(ctx context.Context, inner AuditStore, chain *audit.Chain) (*SealedStore, error) {
	if cs, ok := inner.(ChainStater); ok {
		st, err := cs.LastChainState(ctx)
		if err != nil {
			return nil, fmt.Errorf("restore chain state: %w", err)
		}
		chain.Restore(st.Sequence, st.PrevHash)
	}
	return &SealedStore{inner: inner, chain: chain}, nil
}

func (s *SealedStore) Append(ctx context.Context, rec types.AuditRecord) error {
	if err := s.chain.Seal(&rec); err != nil {
		return fmt.Errorf("seal audit record: %w", err)
	}
	return s.inner.Append(ctx, rec)
}

func (s *SealedStore) Query(ctx context.Context, q types.AuditQuery) ([]types.AuditRecord, error) {
	return s.inner.Query(ctx, q)
}

func (s *SealedStore) Close() error { return s.inner.Close() }
