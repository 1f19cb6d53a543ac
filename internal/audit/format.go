package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTrail renders a TrailResult as a human-readable text timeline.
func FormatTrail(result *TrailResult) string {
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Session: %s | No entries found.\n", result.Session)
	}

	var b strings.Builder

	// Header
	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("Session: %s | %s-%s UTC\n", result.Session, first, last))
	b.WriteString(separator + "\n")

	// Entries
	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		sev := strings.ToUpper(e.Severity)
		detail := entryDetail(e)

		b.WriteString(fmt.Sprintf("%-10s %-6s %-14s %s\n", ts, sev, e.Type, detail))
	}

	// Footer
	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a TrailResult as indented JSON.
func FormatJSON(result *TrailResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal trail result: %w", err)
	}
	return string(data), nil
}

func entryDetail(e AuditEntry) string {
	switch e.Type {
	case TypeSwitch, TypeReset:
		return e.Message
	case TypeBlock:
		return fmt.Sprintf("%s (%s)", e.Message, e.Class)
	case TypeStatement:
		return truncate(e.Text, 48)
	default:
		if e.Message != "" {
			return e.Message
		}
		return e.Source.Name
	}
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s TrailSummary) string {
	parts := []string{}
	if s.Switches > 0 {
		parts = append(parts, fmt.Sprintf("%d switch", s.Switches))
	}
	if s.Resets > 0 {
		parts = append(parts, fmt.Sprintf("%d reset", s.Resets))
	}
	if s.Statements > 0 {
		parts = append(parts, fmt.Sprintf("%d statement", s.Statements))
	}
	if s.Blocks > 0 {
		parts = append(parts, fmt.Sprintf("%d block", s.Blocks))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d event", s.Total))
	}

	return fmt.Sprintf("Summary: %s | Max severity: %s\n",
		strings.Join(parts, ", "), s.MaxSeverity)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
