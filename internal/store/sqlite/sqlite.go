// Package sqlite stores audit records in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/writegate/writegate/internal/audit"
	"github.com/writegate/writegate/pkg/types"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			ts_unix_ns INTEGER NOT NULL,
			target_path TEXT NOT NULL,
			classification TEXT,
			state TEXT,
			outcome TEXT NOT NULL,
			actor TEXT,
			strategy TEXT,
			fallback TEXT,
			reason TEXT,
			seq INTEGER,
			prev_hash TEXT,
			entry_hash TEXT,
			payload_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_records(ts_unix_ns);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_path ON audit_records(target_path);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_outcome ON audit_records(outcome, ts_unix_ns);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_audit_seq ON audit_records(seq);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, rec types.AuditRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	var seq sql.NullInt64
	var prevHash, entryHash sql.NullString
	if rec.Integrity != nil {
		seq = sql.NullInt64{Int64: rec.Integrity.Sequence, Valid: true}
		prevHash = sql.NullString{String: rec.Integrity.PrevHash, Valid: true}
		entryHash = sql.NullString{String: rec.Integrity.EntryHash, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO audit_records
		(id, ts_unix_ns, target_path, classification, state, outcome, actor, strategy, fallback, reason, seq, prev_hash, entry_hash, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), rec.TargetPath, string(rec.Classification),
		string(rec.State), string(rec.Outcome), rec.Actor, string(rec.Strategy),
		rec.Fallback, rec.Reason, seq, prevHash, entryHash, string(payload))
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q types.AuditQuery) ([]types.AuditRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.PathLike != "" {
		where = append(where, "target_path LIKE ?")
		args = append(args, "%"+q.PathLike+"%")
	}
	if len(q.Outcomes) > 0 {
		ph := make([]string, len(q.Outcomes))
		for i, o := range q.Outcomes {
			ph[i] = "?"
			args = append(args, string(o))
		}
		where = append(where, "outcome IN ("+strings.Join(ph, ",")+")")
	}
	if q.Since != nil {
		where = append(where, "ts_unix_ns >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Until != nil {
		where = append(where, "ts_unix_ns <= ?")
		args = append(args, q.Until.UnixNano())
	}

	sqlq := "SELECT payload_json FROM audit_records"
	if len(where) > 0 {
		sqlq += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Asc {
		sqlq += " ORDER BY ts_unix_ns ASC, seq ASC"
	} else {
		sqlq += " ORDER BY ts_unix_ns DESC, seq DESC"
	}
	if q.Limit > 0 {
		sqlq += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			sqlq += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []types.AuditRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		var rec types.AuditRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode audit record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastChainState returns the integrity position of the newest sealed record.
func (s *Store) LastChainState(ctx context.Context) (audit.ChainState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, entry_hash FROM audit_records WHERE seq IS NOT NULL ORDER BY seq DESC LIMIT 1`)
	var seq int64
	var hash string
	switch err := row.Scan(&seq, &hash); err {
	case nil:
		return audit.ChainState{Sequence: seq, PrevHash: hash}, nil
	case sql.ErrNoRows:
		return audit.ChainState{}, nil
	default:
		return audit.ChainState{}, fmt.Errorf("last chain state: %w", err)
	}
}
