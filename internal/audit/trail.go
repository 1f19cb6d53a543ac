package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TrailFilter holds filtering criteria for reconstructing a session trail.
type TrailFilter struct {
	Session string
	From    time.Time // zero value = no lower bound
	To      time.Time // zero value = no upper bound
}

// TrailSummary holds event counts and metadata for one session's trail.
type TrailSummary struct {
	Total          int    `json:"total"`
	Switches       int    `json:"switches"`
	Resets         int    `json:"resets"`
	Blocks         int    `json:"blocks"`
	Statements     int    `json:"statements"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
	MaxSeverity    string `json:"max_severity"`
}

// TrailResult holds filtered entries and summary for a session trail.
type TrailResult struct {
	Session string       `json:"session"`
	Entries []AuditEntry `json:"entries"`
	Summary TrailSummary `json:"summary"`
}

// Trail reads the audit log and returns entries matching the filter,
// reconstructing what happened in one session: who became whom, what ran,
// what was blocked.
func Trail(path string, filter TrailFilter) (*TrailResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &TrailResult{
		Session: filter.Session,
		Summary: TrailSummary{MaxSeverity: SeverityInfo},
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}

		if entry.Session != filter.Session {
			continue
		}

		// Time range filtering
		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue // skip unparseable timestamps
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

func updateSummary(s *TrailSummary, entry AuditEntry) {
	s.Total++

	switch entry.Type {
	case TypeSwitch:
		s.Switches++
	case TypeReset:
		s.Resets++
	case TypeBlock:
		s.Blocks++
	case TypeStatement:
		s.Statements++
	}

	if SeverityRank[entry.Severity] > SeverityRank[s.MaxSeverity] {
		s.MaxSeverity = entry.Severity
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
