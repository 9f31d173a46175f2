package domain

// VariableTypePassFail marks a variable whose values are normalized to
// "pass", "fail" or "".
const VariableTypePassFail = "pass-fail"

// Normalized pass-fail values.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// QCVariable is one annotation column tracked by the ledger.
// Type is free-form; only "pass-fail" changes how values are stored.
type QCVariable struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// IsPassFail reports whether values of v are normalized.
func (v QCVariable) IsPassFail() bool {
	return v.Type == VariableTypePassFail
}

// Active reports whether v takes part in entry computation.
// Variables with an empty name or type are kept in the list but ignored.
func (v QCVariable) Active() bool {
	return v.Name != "" && v.Type != ""
}

// QCRow is one parsed CSV record keyed by header.
// Cells missing from a short line are stored as "".
type QCRow map[string]string

// Get returns the cell for header, or "" when the line had no such cell.
func (r QCRow) Get(header string) string {
	return r[header]
}

// GroupKey returns the row's key and whether both Subject and Session are set.
func (r QCRow) GroupKey() (GroupKey, bool) {
	subject, session := r["Subject"], r["Session"]
	return NewGroupKey(subject, session), subject != "" && session != ""
}
