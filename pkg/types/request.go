package types

// MergeStrategy selects how approved content is combined with the existing file.
type MergeStrategy string

const (
	// StrategyReplace writes the proposed content verbatim.
	StrategyReplace MergeStrategy = "replace"
	// StrategyAppend appends the proposed content after the existing content.
	StrategyAppend MergeStrategy = "append"
	// StrategyInsert splices the proposed content at a caller-given line offset.
	StrategyInsert MergeStrategy = "insert"
	// StrategyExtend inserts new members before the closing boundary of the
	// last top-level structural block, falling back to append when no
	// unambiguous boundary exists.
	StrategyExtend MergeStrategy = "extend"
)

// ValidStrategy reports whether s names a known merge strategy.
func ValidStrategy(s MergeStrategy) bool {
	switch s {
	case StrategyReplace, StrategyAppend, StrategyInsert, StrategyExtend:
		return true
	}
	return false
}

// WriteRequest is one proposed file write submitted to the gate.
// It is immutable and consumed by exactly one evaluation.
type WriteRequest struct {
	TargetPath      string        `json:"target_path"`
	ProposedContent string        `json:"proposed_content"`
	Strategy        MergeStrategy `json:"strategy,omitempty"`
	// InsertOffset is the zero-based line offset for StrategyInsert.
	// Out-of-range offsets clamp to end of file.
	InsertOffset int `json:"insert_offset,omitempty"`
	// Actor identifies the generator submitting the request, recorded in
	// the audit trail.
	Actor string `json:"actor,omitempty"`
}

// ResolvedTarget is the canonical absolute target path after resolving all
// symbolic links, proven to live under the workspace root.
type ResolvedTarget struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// GateResult is the outcome of one gate evaluation.
type GateResult struct {
	Written      bool             `json:"written"`
	FinalContent string           `json:"final_content,omitempty"`
	Target       ResolvedTarget   `json:"target"`
	Analysis     *ChangeAnalysis  `json:"analysis,omitempty"`
	Decision     ApprovalDecision `json:"decision"`
	Diff         string           `json:"diff,omitempty"`
	// Fallback notes a strategy substitution made while merging.
	Fallback string      `json:"fallback,omitempty"`
	Audit    AuditRecord `json:"audit"`
}
