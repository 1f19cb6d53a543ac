package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crunchyericford/set-user/internal/audit"
	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/guard"
	"github.com/crunchyericford/set-user/internal/identity"
	"github.com/crunchyericford/set-user/internal/model"
	"github.com/crunchyericford/set-user/internal/pipeline"
	"github.com/crunchyericford/set-user/internal/session"
)

func init() {
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the impersonation window demo (privileged statements must be blocked)",
	RunE:  runWindowDemo,
}

func runWindowDemo(cmd *cobra.Command, args []string) error {
	fmt.Println("=== set-user enforcement demo ===")
	fmt.Println("Purpose: Prove the impersonation window is enforced, not just recorded.")
	fmt.Println()

	tmpDir, err := os.MkdirTemp("", "set-user-demo-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)
	auditPath := filepath.Join(tmpDir, "audit.jsonl")

	// Wire the full stack in-process: directory, store, audit, pipeline.
	cfg := config.DefaultConfig()
	cfg.Policy.BlockAlterSystem = true
	cfg.Policy.BlockCopyProgram = true
	store := config.NewStore(cfg)

	log, err := audit.Open(auditPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer log.Close()

	dir := identity.NewStaticDirectory(map[string]bool{
		"admin": true,
		"alice": false,
		"bob":   false,
	})
	g := guard.New(dir, log)

	pipe := pipeline.New(nil)
	pipe.Install(pipeline.NewGuardInterceptor(store, log))
	pipe.Install(pipeline.NewStatementLogInterceptor(log))

	ctx := context.Background()
	sess := session.New(identity.Identity{Name: "admin", Superuser: true}, config.NewView(store))
	g.OpenSession(sess)

	run := func(text string) (string, bool) {
		stmt := model.Statement{
			Class: pipeline.Classify(text),
			Text:  text,
		}
		res, err := pipe.Submit(ctx, sess, stmt)
		if err != nil {
			var blocked *pipeline.PolicyBlockedError
			if errors.As(err, &blocked) {
				return blocked.Error(), true
			}
			return err.Error(), false
		}
		return res.Tag, false
	}

	step := func(ok bool, format string, a ...any) {
		icon := "✓"
		if !ok {
			icon = "✗"
		}
		fmt.Printf("  %s %s\n", icon, fmt.Sprintf(format, a...))
	}

	// Outside the window everything delegates, even privileged classes.
	tag, blockedOutside := run("ALTER SYSTEM SET shared_buffers = '1GB'")
	step(!blockedOutside, "admin (not switched): ALTER SYSTEM → %s", tag)

	// Open the window.
	status, err := g.SwitchTo(ctx, sess, "alice")
	switchOK := err == nil && status == guard.OK
	step(switchOK, "set_user('alice') → %s, log_statement forced to %q", status, sess.Settings().Get(config.KeyLogStatement))

	// Ordinary work passes through and is attributed to alice.
	tag, _ = run("SELECT count(*) FROM orders")
	step(tag == "SELECT", "alice: SELECT → %s", tag)

	// Privileged classes must be blocked inside the window.
	reason, alterBlocked := run("ALTER SYSTEM SET log_statement = 'none'")
	step(alterBlocked, "alice: ALTER SYSTEM → BLOCKED (%s)", reason)

	reason, copyBlocked := run("COPY audit_rows TO PROGRAM 'gzip > /tmp/out.gz'")
	step(copyBlocked, "alice: COPY PROGRAM → BLOCKED (%s)", reason)

	// A second switch without reset must be refused.
	_, err = g.SwitchTo(ctx, sess, "bob")
	step(err != nil, "set_user('bob') while switched → %v", err)

	// Close the window and confirm the log level came back.
	status, err = g.Reset(ctx, sess)
	restored := err == nil && status == guard.OK &&
		sess.Active().Name == "admin" &&
		sess.Settings().Get(config.KeyLogStatement) == cfg.LogStatement
	step(restored, "reset_user() → %s, log_statement restored to %q", status, sess.Settings().Get(config.KeyLogStatement))

	g.CloseSession(ctx, sess)
	fmt.Println()

	// Output trail summary
	trail, err := audit.Trail(auditPath, audit.TrailFilter{Session: sess.ID})
	if err != nil {
		return fmt.Errorf("failed to reconstruct trail: %w", err)
	}
	fmt.Println("Trail summary:")
	fmt.Print(audit.FormatTrail(trail))
	fmt.Println()

	verify := audit.Verify(auditPath)
	step(verify.Valid, "audit chain: %d entries verified", verify.Lines)
	fmt.Println()

	// CI gate: the window MUST block both classes, restore state, and
	// leave an intact chain.
	if !alterBlocked || !copyBlocked {
		fmt.Println("FAIL: A privileged statement ran inside the window. This is an enforcement failure.")
		os.Exit(1)
	}
	if !restored {
		fmt.Println("FAIL: Session state was not restored on reset.")
		os.Exit(1)
	}
	if !verify.Valid {
		fmt.Println("FAIL: Audit chain did not verify.")
		os.Exit(1)
	}

	fmt.Println("PASS: Window enforced, state restored, audit chain intact.")
	return nil
}
