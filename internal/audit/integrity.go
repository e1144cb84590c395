// Package audit provides tamper-evident audit records with HMAC-based
// integrity chains. Each record's hash depends on the previous record, so
// deleting, reordering, or editing any entry breaks verification.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/writegate/writegate/pkg/types"
)

// MinKeyLength is the minimum recommended key length for HMAC-SHA256.
const MinKeyLength = 32

// Chain maintains HMAC chain state across sealed audit records.
type Chain struct {
	mu        sync.Mutex
	key       []byte
	algorithm string
	sequence  int64
	prevHash  string
}

// ChainState is the persistable position of a chain, restored after restart
// so the chain continues rather than forking.
type ChainState struct {
	Sequence int64  `json:"sequence"`
	PrevHash string `json:"prev_hash"`
}

// NewChain creates a chain using hmac-sha256.
func NewChain(key []byte) (*Chain, error) {
	return NewChainWithAlgorithm(key, "hmac-sha256")
}

// NewChainWithAlgorithm creates a chain with a specific algorithm.
// Supported: "hmac-sha256", "hmac-sha512".
func NewChainWithAlgorithm(key []byte, algorithm string) (*Chain, error) {
	if len(key) < MinKeyLength {
		return nil, fmt.Errorf("key too short: got %d bytes, need at least %d", len(key), MinKeyLength)
	}
	if algorithm == "" {
		algorithm = "hmac-sha256"
	}
	switch algorithm {
	case "hmac-sha256", "hmac-sha512":
	default:
		return nil, fmt.Errorf("unsupported algorithm %q: use hmac-sha256 or hmac-sha512", algorithm)
	}
	return &Chain{key: key, algorithm: algorithm}, nil
}

// LoadKey loads an HMAC key from a file path or an environment variable.
func LoadKey(keyFile, keyEnv string) ([]byte, error) {
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file %q: %w", keyFile, err)
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return nil, fmt.Errorf("key file %q is empty", keyFile)
		}
		return []byte(key), nil
	}
	if keyEnv != "" {
		key := os.Getenv(keyEnv)
		if key == "" {
			return nil, fmt.Errorf("environment variable %q is empty or not set", keyEnv)
		}
		return []byte(key), nil
	}
	return nil, errors.New("no key source specified: provide key_file or key_env")
}

// Seal assigns the next chain position to rec and fills rec.Integrity.
// The HMAC covers the canonical JSON of the record without its integrity
// field, so any later edit to the record is detectable.
func (c *Chain) Seal(rec *types.AuditRecord) error {
	payload, err := canonicalPayload(*rec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sequence++
	entryHash := computeHash(c.algorithm, c.key, c.sequence, c.prevHash, payload)
	rec.Integrity = &types.IntegrityMetadata{
		Sequence:  c.sequence,
		PrevHash:  c.prevHash,
		EntryHash: entryHash,
	}
	c.prevHash = entryHash
	return nil
}

// State returns the current chain position for persistence.
func (c *Chain) State() ChainState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChainState{Sequence: c.sequence, PrevHash: c.prevHash}
}

// Restore repositions the chain after a restart. Call before sealing new
// records to continue an existing log.
func (c *Chain) Restore(sequence int64, prevHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence = sequence
	c.prevHash = prevHash
}

// VerifyResult reports the first chain violation found, if any.
type VerifyResult struct {
	OK    bool
	Count int
	// BadIndex is the zero-based index of the first violating record when
	// OK is false.
	BadIndex int
	Reason   string
}

// Verify recomputes the chain over records in order and reports the first
// tampered, reordered, or missing entry.
func Verify(records []types.AuditRecord, key []byte, algorithm string) VerifyResult {
	if algorithm == "" {
		algorithm = "hmac-sha256"
	}
	prevHash := ""
	var seq int64
	for i, rec := range records {
		if rec.Integrity == nil {
			return VerifyResult{BadIndex: i, Count: len(records), Reason: "missing integrity metadata"}
		}
		seq++
		if rec.Integrity.Sequence != seq {
			return VerifyResult{BadIndex: i, Count: len(records),
				Reason: fmt.Sprintf("sequence gap: got %d, want %d", rec.Integrity.Sequence, seq)}
		}
		if rec.Integrity.PrevHash != prevHash {
			return VerifyResult{BadIndex: i, Count: len(records), Reason: "previous hash mismatch"}
		}
		payload, err := canonicalPayload(rec)
		if err != nil {
			return VerifyResult{BadIndex: i, Count: len(records), Reason: err.Error()}
		}
		want := computeHash(algorithm, key, seq, prevHash, payload)
		if !hmac.Equal([]byte(want), []byte(rec.Integrity.EntryHash)) {
			return VerifyResult{BadIndex: i, Count: len(records), Reason: "entry hash mismatch (record modified)"}
		}
		prevHash = rec.Integrity.EntryHash
	}
	return VerifyResult{OK: true, Count: len(records)}
}

// canonicalPayload marshals rec without its integrity field. Go's
// json.Marshal emits struct fields in declaration order, so the output is
// deterministic and verifiable later.
func canonicalPayload(rec types.AuditRecord) ([]byte, error) {
	rec.Integrity = nil
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	return b, nil
}

// computeHash computes the HMAC of: sequence || prev_hash || payload.
func computeHash(algorithm string, key []byte, sequence int64, prevHash string, payload []byte) string {
	var h hash.Hash
	switch algorithm {
	case "hmac-sha512":
		h = hmac.New(sha512.New, key)
	default:
		h = hmac.New(sha256.New, key)
	}
	h.Write([]byte(strconv.FormatInt(sequence, 10)))
	h.Write([]byte("|"))
	h.Write([]byte(prevHash))
	h.Write([]byte("|"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
