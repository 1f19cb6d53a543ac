package audit

// Entry types.
const (
	TypeSessionOpen  = "session_open"
	TypeSwitch       = "switch"
	TypeReset        = "reset"
	TypeBlock        = "block"
	TypeStatement    = "statement"
	TypeSessionClose = "session_close"
)

// Severities. Switch events record at info; blocks record at error.
const (
	SeverityInfo  = "info"
	SeverityError = "error"
)

// SeverityRank orders severities for trail summaries.
var SeverityRank = map[string]int{
	SeverityInfo:  0,
	SeverityError: 1,
}

// AuditIdentity is the flattened principal recorded in an audit entry.
type AuditIdentity struct {
	Name      string `json:"name"`
	Superuser bool   `json:"superuser"`
}

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are structs (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing. Source is the acting
// identity; Target is only meaningful for switch and reset entries.
type AuditEntry struct {
	Timestamp string        `json:"ts"`
	Type      string        `json:"type"`
	Severity  string        `json:"severity"`
	Session   string        `json:"session"`
	Source    AuditIdentity `json:"source"`
	Target    AuditIdentity `json:"target"`
	Class     string        `json:"class,omitempty"`
	Text      string        `json:"text,omitempty"`
	Message   string        `json:"message"`
	PrevHash  string        `json:"prev_hash"`
}
