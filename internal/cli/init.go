package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/systemd"
)

var (
	initPath           string
	initMode           string
	initInstallSystemd bool
	initForce          bool
)

func init() {
	initCmd.Flags().StringVar(&initPath, "path", "", "Config file location (overrides --mode)")
	initCmd.Flags().StringVar(&initMode, "mode", "user", "Config location: user (~/.set-user) or system (/etc/set-user)")
	initCmd.Flags().BoolVar(&initInstallSystemd, "install-systemd", false, "Install setuser-serve.service unit (requires root)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap set-user configuration",
	Long: `Writes a commented default config file.

User mode (default):  writes to ~/.set-user/config.yaml
System mode:          writes to /etc/set-user/config.yaml (requires root)

The config declares the listen address, the audit log path, the
principal directory, and the two policy flags that block ALTER SYSTEM
and COPY PROGRAM during impersonation windows.

With --install-systemd: installs a setuser-serve.service unit so the
session server runs under systemd against the system config.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, err := initConfigPath()
	if err != nil {
		return err
	}

	var created []string

	if wrote, err := writeIfMissing(configPath, config.DefaultConfigYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, configPath)
	}

	// Install systemd unit if requested.
	if initInstallSystemd {
		if runtime.GOOS != "linux" {
			return fmt.Errorf("--install-systemd is only supported on Linux")
		}
		if os.Geteuid() != 0 {
			return fmt.Errorf("--install-systemd requires root; run with sudo")
		}

		unitPath := "/etc/systemd/system/setuser-serve.service"
		if err := os.WriteFile(unitPath, []byte(systemd.ServeTemplate()), 0o644); err != nil {
			return fmt.Errorf("write systemd unit: %w", err)
		}
		created = append(created, unitPath)

		// Reload systemd.
		if err := exec.Command("systemctl", "daemon-reload").Run(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: systemctl daemon-reload failed: %v\n", err)
		}
	}

	// Print summary.
	fmt.Println("set-user init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	// Print next steps.
	fmt.Println("Run the session server:")
	fmt.Printf("  setuser serve --config %s\n", configPath)
	fmt.Println()
	fmt.Println("Or walk through the enforcement scenario:")
	fmt.Println("  setuser demo")

	if initInstallSystemd {
		fmt.Println()
		fmt.Println("Enable the systemd service:")
		fmt.Println("  sudo systemctl enable --now setuser-serve")
	}

	return nil
}

// initConfigPath returns the config file location based on --path and --mode.
func initConfigPath() (string, error) {
	if initPath != "" {
		return initPath, nil
	}
	switch initMode {
	case "system":
		return "/etc/set-user/config.yaml", nil
	case "user", "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".set-user", "config.yaml"), nil
	default:
		return "", fmt.Errorf("unknown mode %q: use 'user' or 'system'", initMode)
	}
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
