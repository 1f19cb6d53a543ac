package audit

import (
	"os"
	"strings"
	"testing"
)

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func writeScenarioLog(t *testing.T) string {
	t.Helper()
	l, path := newTestLog(t)
	defer l.Close()

	entries := []AuditEntry{
		{
			Type:     TypeSessionOpen,
			Severity: SeverityInfo,
			Session:  "sess-aaaa",
			Source:   AuditIdentity{Name: "admin", Superuser: true},
			Message:  "session opened",
		},
		{
			Type:     TypeSwitch,
			Severity: SeverityInfo,
			Session:  "sess-aaaa",
			Source:   AuditIdentity{Name: "admin", Superuser: true},
			Target:   AuditIdentity{Name: "alice"},
			Message:  "Superuser Role admin transitioning to Role alice",
		},
		{
			Type:     TypeStatement,
			Severity: SeverityInfo,
			Session:  "sess-aaaa",
			Source:   AuditIdentity{Name: "alice"},
			Class:    "other",
			Text:     "SELECT 1",
		},
		{
			Type:     TypeBlock,
			Severity: SeverityError,
			Session:  "sess-aaaa",
			Source:   AuditIdentity{Name: "alice"},
			Class:    "copy-with-program-invocation",
			Text:     "COPY t TO PROGRAM 'gzip'",
			Message:  "COPY PROGRAM blocked by set_user config",
		},
		{
			Type:     TypeSwitch,
			Severity: SeverityInfo,
			Session:  "sess-bbbb",
			Source:   AuditIdentity{Name: "admin", Superuser: true},
			Target:   AuditIdentity{Name: "bob"},
			Message:  "Superuser Role admin transitioning to Role bob",
		},
		{
			Type:     TypeReset,
			Severity: SeverityInfo,
			Session:  "sess-aaaa",
			Source:   AuditIdentity{Name: "alice"},
			Target:   AuditIdentity{Name: "admin", Superuser: true},
			Message:  "Role alice transitioning to Superuser Role admin",
		},
	}
	for i, e := range entries {
		if err := l.Record(e); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	return path
}

func TestTrailFiltersBySession(t *testing.T) {
	path := writeScenarioLog(t)

	result, err := Trail(path, TrailFilter{Session: "sess-aaaa"})
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(result.Entries) != 5 {
		t.Fatalf("expected 5 entries for sess-aaaa, got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.Session != "sess-aaaa" {
			t.Errorf("foreign session leaked into trail: %q", e.Session)
		}
	}
}

func TestTrailSummaryCounts(t *testing.T) {
	path := writeScenarioLog(t)

	result, err := Trail(path, TrailFilter{Session: "sess-aaaa"})
	if err != nil {
		t.Fatalf("trail: %v", err)
	}

	s := result.Summary
	if s.Total != 5 {
		t.Errorf("total = %d, want 5", s.Total)
	}
	if s.Switches != 1 || s.Resets != 1 || s.Blocks != 1 || s.Statements != 1 {
		t.Errorf("unexpected counts: switches=%d resets=%d blocks=%d statements=%d",
			s.Switches, s.Resets, s.Blocks, s.Statements)
	}
	if s.MaxSeverity != SeverityError {
		t.Errorf("max severity = %q, want %q", s.MaxSeverity, SeverityError)
	}
	if s.FirstTimestamp == "" || s.LastTimestamp == "" {
		t.Error("expected timestamps to be recorded")
	}
}

func TestTrailUnknownSessionEmpty(t *testing.T) {
	path := writeScenarioLog(t)

	result, err := Trail(path, TrailFilter{Session: "sess-none"})
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected empty trail, got %d entries", len(result.Entries))
	}
}

func TestTrailSkipsMalformedLines(t *testing.T) {
	path := writeScenarioLog(t)

	// Append garbage; trail should skip it, not fail
	appendLine(t, path, "not json at all")

	result, err := Trail(path, TrailFilter{Session: "sess-aaaa"})
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(result.Entries) != 5 {
		t.Errorf("expected 5 entries, got %d", len(result.Entries))
	}
}

func TestFormatTrailTimeline(t *testing.T) {
	path := writeScenarioLog(t)
	result, err := Trail(path, TrailFilter{Session: "sess-aaaa"})
	if err != nil {
		t.Fatalf("trail: %v", err)
	}

	out := FormatTrail(result)
	if !strings.Contains(out, "Session: sess-aaaa") {
		t.Error("missing session header")
	}
	if !strings.Contains(out, "Superuser Role admin transitioning to Role alice") {
		t.Error("missing transition line")
	}
	if !strings.Contains(out, "COPY PROGRAM blocked by set_user config") {
		t.Error("missing block line")
	}
	if !strings.Contains(out, "1 switch, 1 reset, 1 statement, 1 block") {
		t.Errorf("unexpected summary line in:\n%s", out)
	}
}

func TestFormatTrailEmpty(t *testing.T) {
	out := FormatTrail(&TrailResult{Session: "sess-x"})
	if !strings.Contains(out, "No entries found") {
		t.Errorf("unexpected output for empty trail: %q", out)
	}
}

func TestFormatJSONRoundTrips(t *testing.T) {
	path := writeScenarioLog(t)
	result, err := Trail(path, TrailFilter{Session: "sess-aaaa"})
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	out, err := FormatJSON(result)
	if err != nil {
		t.Fatalf("format json: %v", err)
	}
	if !strings.Contains(out, `"session": "sess-aaaa"`) {
		t.Error("missing session field in JSON output")
	}
}
