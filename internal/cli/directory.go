package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/identity"
)

var (
	directoryDB        string
	directoryConfig    string
	directorySuperuser bool
)

func init() {
	rootCmd.AddCommand(directoryCmd)
	directoryCmd.PersistentFlags().StringVar(&directoryDB, "db", "", "Path to the SQLite principal directory (overrides config file)")
	directoryCmd.PersistentFlags().StringVar(&directoryConfig, "config", "", "Path to config YAML (default ~/.set-user/config.yaml)")
	directoryCmd.AddCommand(directoryAddCmd)
	directoryCmd.AddCommand(directoryListCmd)
	directoryAddCmd.Flags().BoolVar(&directorySuperuser, "superuser", false, "Register the principal as a superuser")
}

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Manage the SQLite principal directory",
	Long:  "Registers and lists the principals a session may switch to.\nThe server resolves switch targets against this directory.",
}

var directoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a principal",
	Args:  cobra.ExactArgs(1),
	RunE:  runDirectoryAdd,
}

var directoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered principals",
	RunE:  runDirectoryList,
}

func runDirectoryAdd(cmd *cobra.Command, args []string) error {
	dir, err := openDirectoryDB()
	if err != nil {
		return err
	}
	defer dir.Close()

	id := identity.Identity{
		Name:      args[0],
		Superuser: directorySuperuser,
	}
	if err := dir.Put(context.Background(), id); err != nil {
		return fmt.Errorf("register principal: %w", err)
	}

	if id.Superuser {
		fmt.Printf("Added %s (superuser)\n", id.Name)
	} else {
		fmt.Printf("Added %s\n", id.Name)
	}
	return nil
}

func runDirectoryList(cmd *cobra.Command, args []string) error {
	dir, err := openDirectoryDB()
	if err != nil {
		return err
	}
	defer dir.Close()

	principals, err := dir.List(context.Background())
	if err != nil {
		return err
	}

	if len(principals) == 0 {
		fmt.Println("No principals registered.")
		return nil
	}

	fmt.Printf("%-30s %s\n", "NAME", "SUPERUSER")
	for _, p := range principals {
		su := "no"
		if p.Superuser {
			su = "yes"
		}
		fmt.Printf("%-30s %s\n", p.Name, su)
	}

	return nil
}

// openDirectoryDB resolves the SQLite path from --db or the config file.
func openDirectoryDB() (*identity.SQLiteDirectory, error) {
	path := directoryDB
	if path == "" {
		cfg, err := config.LoadConfig(directoryConfig)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Directory.SQLitePath
	}
	if path == "" {
		return nil, fmt.Errorf("no sqlite directory configured: set directory.sqlite_path or pass --db")
	}

	dir, err := identity.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open principal directory: %w", err)
	}
	return dir, nil
}
