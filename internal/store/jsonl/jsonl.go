// Package jsonl stores audit records as one JSON object per line with
// size-based rotation.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/writegate/writegate/internal/audit"
	"github.com/writegate/writegate/pkg/types"
)

type Store struct {
	path       string
	maxBytes   int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
}

func New(path string, maxSizeMB int, maxBackups int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonl path is empty")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open jsonl: %w", err)
	}

	return &Store{
		path:       path,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		file:       f,
	}, nil
}

func (s *Store) Append(_ context.Context, rec types.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotateIfNeededLocked(); err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := s.file.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write jsonl: %w", err)
	}
	return nil
}

// Query scans the current log file (not rotated backups) oldest-first and
// applies the filters in q.
func (s *Store) Query(_ context.Context, q types.AuditQuery) ([]types.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readAllLocked()
	if err != nil {
		return nil, err
	}
	return filter(recs, q), nil
}

// LastChainState reads the newest record's integrity position so a sealed
// store can continue the chain across restarts.
func (s *Store) LastChainState(_ context.Context) (audit.ChainState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readAllLocked()
	if err != nil {
		return audit.ChainState{}, err
	}
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Integrity != nil {
			return audit.ChainState{
				Sequence: recs[i].Integrity.Sequence,
				PrevHash: recs[i].Integrity.EntryHash,
			}, nil
		}
	}
	return audit.ChainState{}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Store) readAllLocked() ([]types.AuditRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open jsonl for read: %w", err)
	}
	defer f.Close()

	var recs []types.AuditRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec types.AuditRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode jsonl line: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	return recs, nil
}

func filter(recs []types.AuditRecord, q types.AuditQuery) []types.AuditRecord {
	var out []types.AuditRecord
	for _, rec := range recs {
		if q.PathLike != "" && !strings.Contains(rec.TargetPath, q.PathLike) {
			continue
		}
		if len(q.Outcomes) > 0 && !outcomeIn(rec.Outcome, q.Outcomes) {
			continue
		}
		if q.Since != nil && rec.Timestamp.Before(*q.Since) {
			continue
		}
		if q.Until != nil && rec.Timestamp.After(*q.Until) {
			continue
		}
		out = append(out, rec)
	}
	if !q.Asc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func outcomeIn(o types.AuditOutcome, set []types.AuditOutcome) bool {
	for _, s := range set {
		if o == s {
			return true
		}
	}
	return false
}

func (s *Store) rotateIfNeededLocked() error {
	if s.file == nil {
		return fmt.Errorf("jsonl file not open")
	}
	st, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat jsonl: %w", err)
	}
	if st.Size() < s.maxBytes {
		return nil
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close for rotate: %w", err)
	}

	for i := s.maxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", s.path, i)
		to := fmt.Sprintf("%s.%d", s.path, i+1)
		if _, err := os.Stat(from); err == nil {
			_ = os.Rename(from, to)
		}
	}
	_ = os.Rename(s.path, fmt.Sprintf("%s.1", s.path))

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reopen jsonl: %w", err)
	}
	s.file = f
	return nil
}
