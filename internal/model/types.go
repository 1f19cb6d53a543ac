package model

// CommandClass tags a statement submitted to the execution pipeline.
// The set is closed: interception logic switches on it with an explicit
// catch-all, never on raw statement text.
type CommandClass string

const (
	// ClassAlterSystem covers statements that edit server-wide
	// configuration in place (the ALTER SYSTEM family).
	ClassAlterSystem CommandClass = "alter-system-class"
	// ClassCopyProgram covers COPY statements that shell out to a
	// program for their source or destination.
	ClassCopyProgram CommandClass = "copy-with-program-invocation"
	// ClassOther is the catch-all for everything not subject to
	// impersonation-window blocking.
	ClassOther CommandClass = "other"
)

// ClassRank maps command classes to a comparable integer. Higher rank
// means the class is covered by more verbosity levels.
var ClassRank = map[CommandClass]int{
	ClassOther:       0,
	ClassCopyProgram: 1,
	ClassAlterSystem: 2,
}

// Statement is one command travelling through the pipeline, already
// classified. Classification happens at the submission edge; nothing
// downstream re-derives the class from text.
type Statement struct {
	Class CommandClass `json:"class"`
	Text  string       `json:"text"`
}

// Result is what the pipeline's executor returns for a completed statement.
type Result struct {
	Tag string `json:"tag"`
}

// SessionState is the wire form of one session's current standing, shared
// by the control API and its clients.
type SessionState struct {
	Session      string `json:"session"`
	User         string `json:"user"`
	Superuser    bool   `json:"superuser"`
	Switched     bool   `json:"switched"`
	LogStatement string `json:"log_statement"`
}

// LogLevel is an audit verbosity setting: the value of the log_statement
// configuration key.
type LogLevel string

const (
	LogNone LogLevel = "none"
	LogDDL  LogLevel = "ddl"
	LogMod  LogLevel = "mod"
	LogAll  LogLevel = "all"
)

// LevelRank maps verbosity levels to a comparable integer so coverage can
// be compared against ClassRank.
var LevelRank = map[LogLevel]int{
	LogNone: 0,
	LogDDL:  1,
	LogMod:  2,
	LogAll:  3,
}

// ParseLogLevel coerces a raw configuration string to a LogLevel.
// Unknown values degrade to LogNone rather than guessing upward.
func ParseLogLevel(s string) LogLevel {
	switch LogLevel(s) {
	case LogNone, LogDDL, LogMod, LogAll:
		return LogLevel(s)
	default:
		return LogNone
	}
}

// Covers reports whether statements of the given class are captured at
// this verbosity. LogAll captures everything, LogDDL captures the
// alter-system class, LogMod additionally captures program-invoking COPY,
// LogNone captures nothing.
func (l LogLevel) Covers(c CommandClass) bool {
	switch l {
	case LogAll:
		return true
	case LogMod:
		return ClassRank[c] >= ClassRank[ClassCopyProgram]
	case LogDDL:
		return ClassRank[c] >= ClassRank[ClassAlterSystem]
	default:
		return false
	}
}
