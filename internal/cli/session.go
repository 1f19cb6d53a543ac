package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crunchyericford/set-user/internal/client"
	"github.com/crunchyericford/set-user/internal/model"
)

var sessionServer string

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.PersistentFlags().StringVar(&sessionServer, "server", "127.0.0.1:8093", "Address of the session server")
	sessionCmd.AddCommand(sessionOpenCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionCallCmd)
	sessionCmd.AddCommand(sessionExecCmd)
	sessionCmd.AddCommand(sessionCloseCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Operate impersonation sessions on a running server",
}

var sessionOpenCmd = &cobra.Command{
	Use:   "open <user>",
	Short: "Open a session as the given principal",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionOpen,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status <session>",
	Short: "Show a session's identity and log level",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStatus,
}

var sessionCallCmd = &cobra.Command{
	Use:   "call <session> [user]",
	Short: "Invoke the switch entry point with raw arguments",
	Long:  "Forwards arguments to the switch entry point unmodified.\nOne user switches, no user (or the literal null) resets, anything\nelse is rejected by the server as an invalid invocation.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSessionCall,
}

var sessionExecCmd = &cobra.Command{
	Use:   "exec <session> <statement...>",
	Short: "Run a statement through the session's enforcement pipeline",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSessionExec,
}

var sessionCloseCmd = &cobra.Command{
	Use:   "close <session>",
	Short: "Close a session, resetting any active switch first",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionClose,
}

func runSessionOpen(cmd *cobra.Command, args []string) error {
	state, err := client.New(sessionServer).OpenSession(args[0])
	if err != nil {
		return err
	}
	printState(state)
	return nil
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
	state, err := client.New(sessionServer).Status(args[0])
	if err != nil {
		return err
	}
	printState(state)
	return nil
}

func runSessionCall(cmd *cobra.Command, args []string) error {
	callArgs := make([]*string, 0, len(args)-1)
	for _, arg := range args[1:] {
		if strings.EqualFold(arg, "null") {
			callArgs = append(callArgs, nil)
			continue
		}
		callArgs = append(callArgs, &arg)
	}

	status, err := client.New(sessionServer).Call(args[0], callArgs)
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}

func runSessionExec(cmd *cobra.Command, args []string) error {
	text := strings.Join(args[1:], " ")

	result, err := client.New(sessionServer).Exec(args[0], text)
	if err != nil {
		var blocked *client.BlockedError
		if errors.As(err, &blocked) {
			resp := map[string]any{
				"blocked": true,
				"class":   blocked.Class,
				"reason":  blocked.Reason,
			}
			out, _ := json.MarshalIndent(resp, "", "  ")
			fmt.Fprintln(os.Stderr, string(out))
			os.Exit(77)
		}
		return err
	}

	fmt.Println(result.Tag)
	return nil
}

func runSessionClose(cmd *cobra.Command, args []string) error {
	state, err := client.New(sessionServer).CloseSession(args[0])
	if err != nil {
		return err
	}
	printState(state)
	return nil
}

func printState(state model.SessionState) {
	out, _ := json.MarshalIndent(state, "", "  ")
	fmt.Println(string(out))
}
