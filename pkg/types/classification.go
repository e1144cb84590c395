package types

// Classification is the gate's verdict on how drastic a proposed write is
// relative to the existing file content.
type Classification string

const (
	// ClassNew targets a file that does not exist yet.
	ClassNew Classification = "new"
	// ClassModify is an ordinary change to an existing file.
	ClassModify Classification = "modify"
	// ClassReplace rewrites a large share of a large file and always
	// requires an explicit approval decision.
	ClassReplace Classification = "replace"
)

// RequiresApproval reports whether this classification blocks on a decision.
func (c Classification) RequiresApproval() bool {
	return c == ClassReplace
}

// ChangeAnalysis is the immutable result of comparing existing content
// against proposed content.
type ChangeAnalysis struct {
	OriginalLines  int            `json:"original_lines"`
	AddedLines     int            `json:"added_lines"`
	DeletedLines   int            `json:"deleted_lines"`
	ChangeRatio    float64        `json:"change_ratio"`
	Classification Classification `json:"classification"`
	DeletedPreview []string       `json:"deleted_preview,omitempty"`
}
