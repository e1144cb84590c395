package types

import "time"

// AuditOutcome summarizes how an evaluation ended.
type AuditOutcome string

const (
	OutcomeWritten        AuditOutcome = "written"
	OutcomeApproved       AuditOutcome = "approved"
	OutcomeRejected       AuditOutcome = "rejected"
	OutcomeSecurityBlock  AuditOutcome = "security_block"
	OutcomePolicyBlock    AuditOutcome = "policy_block"
	OutcomeAnalyzeFailure AuditOutcome = "analyze_failure"
)

// IntegrityMetadata carries the tamper-evident chain fields for a record.
// Each record's hash depends on the previous record, forming a verifiable
// chain.
type IntegrityMetadata struct {
	Sequence  int64  `json:"sequence"`
	PrevHash  string `json:"prev_hash"`
	EntryHash string `json:"entry_hash"`
}

// AuditRecord is one immutable log entry capturing one gate decision.
// Exactly one is appended per completed evaluation, regardless of outcome.
type AuditRecord struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	TargetPath     string         `json:"target_path"`
	Classification Classification `json:"classification,omitempty"`
	State          ApprovalState  `json:"state,omitempty"`
	Outcome        AuditOutcome   `json:"outcome"`
	Actor          string         `json:"actor,omitempty"`
	Strategy       MergeStrategy  `json:"strategy,omitempty"`
	// Fallback notes a strategy substitution, e.g. extend falling back to
	// append when no structural boundary was found.
	Fallback string `json:"fallback,omitempty"`
	Reason   string `json:"reason,omitempty"`

	Integrity *IntegrityMetadata `json:"integrity,omitempty"`
}

// AuditQuery filters audit records when listing from a store.
type AuditQuery struct {
	PathLike string
	Outcomes []AuditOutcome
	Since    *time.Time
	Until    *time.Time

	Limit  int
	Offset int
	Asc    bool
}
