package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	setmcp "github.com/crunchyericford/set-user/internal/mcp"
)

var (
	mcpConfig   string
	mcpAuditLog string
	mcpUser     string
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpConfig, "config", "", "Path to config YAML (default ~/.set-user/config.yaml)")
	mcpCmd.Flags().StringVar(&mcpAuditLog, "audit-log", "", "Path to audit log JSONL file (overrides config file)")
	mcpCmd.Flags().StringVar(&mcpUser, "user", "admin", "Principal the session starts as")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs set-user as an MCP (Model Context Protocol) server over stdio.\nExposes one impersonation session as tools: set_user, reset_user,\nrun_statement, session_status, verify_audit.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := setmcp.Config{
		ConfigPath:   mcpConfig,
		AuditLogPath: mcpAuditLog,
		User:         mcpUser,
	}

	srv, err := setmcp.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "set-user MCP server running on stdio")
	fmt.Fprintf(os.Stderr, "Session principal: %s\n", mcpUser)
	fmt.Fprintln(os.Stderr)

	return srv.Run(ctx)
}
