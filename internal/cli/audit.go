package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crunchyericford/set-user/internal/audit"
)

var (
	tailLines    int
	trailSession string
	trailJSON    bool
	trailFrom    string
	trailTo      string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTrailCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTrailCmd.Flags().StringVar(&trailSession, "session", "", "Session ID to reconstruct (required)")
	auditTrailCmd.Flags().BoolVar(&trailJSON, "json", false, "Emit the trail as JSON")
	auditTrailCmd.Flags().StringVar(&trailFrom, "from", "", "Only include entries at or after this RFC3339 timestamp")
	auditTrailCmd.Flags().StringVar(&trailTo, "to", "", "Only include entries at or before this RFC3339 timestamp")
	_ = auditTrailCmd.MarkFlagRequired("session")
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditTrailCmd = &cobra.Command{
	Use:   "trail <path>",
	Short: "Reconstruct one session's trail from the audit log",
	Long:  "Filters the audit log to a single session and prints what happened:\nwho became whom, what ran under the assumed identity, what was blocked.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTrail,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent audit log entries",
	Long:  "Reads the last N entries from the JSONL audit log and pretty-prints them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditTrail(cmd *cobra.Command, args []string) error {
	filter := audit.TrailFilter{Session: trailSession}

	if trailFrom != "" {
		from, err := time.Parse(time.RFC3339, trailFrom)
		if err != nil {
			return fmt.Errorf("invalid --from timestamp: %w", err)
		}
		filter.From = from
	}
	if trailTo != "" {
		to, err := time.Parse(time.RFC3339, trailTo)
		if err != nil {
			return fmt.Errorf("invalid --to timestamp: %w", err)
		}
		filter.To = to
	}

	result, err := audit.Trail(args[0], filter)
	if err != nil {
		return fmt.Errorf("reconstruct trail: %w", err)
	}

	if trailJSON {
		out, err := audit.FormatJSON(result)
		if err != nil {
			return fmt.Errorf("encode trail: %w", err)
		}
		fmt.Println(out)
		return nil
	}

	fmt.Print(audit.FormatTrail(result))
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	// Read all lines, keep last N
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	start := len(lines) - tailLines
	if start < 0 {
		start = 0
	}

	for _, line := range lines[start:] {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Println(line)
			continue
		}
		out, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Println(string(out))
	}

	return nil
}
