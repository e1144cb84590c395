package types

import "time"

// ApprovalState is a node in the approval state machine.
type ApprovalState string

const (
	StatePending               ApprovalState = "pending"
	StateAutoApproved          ApprovalState = "auto_approved"
	StateAwaitingDecision      ApprovalState = "awaiting_decision"
	StateNonInteractiveBlocked ApprovalState = "non_interactive_blocked"
	StateApproved              ApprovalState = "approved"
	StateRejected              ApprovalState = "rejected"
)

// Terminal reports whether the state machine stops at s.
func (s ApprovalState) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// ApprovalDecision is the terminal state of one request's lifecycle.
type ApprovalDecision struct {
	Classification Classification `json:"classification"`
	Approved       bool           `json:"approved"`
	State          ApprovalState  `json:"state"`
	// Via is the intermediate state the machine passed through on the way
	// to the terminal state.
	Via       ApprovalState `json:"via,omitempty"`
	Strategy  MergeStrategy `json:"strategy,omitempty"`
	DecidedBy string        `json:"decided_by,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	DecidedAt time.Time     `json:"decided_at"`
}
