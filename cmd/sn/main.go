package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"sn-go/internal/app"
	"sn-go/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	// A .env file next to the binary's working directory may point SN_HOME
	// or SN_CONFIG_PATH somewhere else.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an SNApp. The caller must call Close.
// operation identifies the CLI command being run (e.g. "Follow", "CreatePost").
func newApp(cmd *cobra.Command, operation string) (*app.SNApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewSNApp(cmd.Context(), cfg, operation, verbose)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn against a fresh SNApp and records its outcome in the
// operation log.
func withApp(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app.SNApp) error) error {
	a, err := newApp(cmd, operation)
	if err != nil {
		return err
	}
	err = fn(cmd.Context(), a)
	if cerr := a.Close(err); cerr != nil && err == nil {
		err = fmt.Errorf("closing: %w", cerr)
	}
	return err
}

// actor returns the --as user, which the caller has already authenticated.
func actor(cmd *cobra.Command) (string, error) {
	id, _ := cmd.Flags().GetString("as")
	if id == "" {
		return "", errors.New("--as is required for this command")
	}
	return id, nil
}

// stringFlag returns a pointer to the flag's value if it was set, so that
// an explicit empty value can clear a field.
func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

// readPassword prompts on stderr and reads without echo when stdin is a
// terminal, or reads one line otherwise.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var rootCmd = &cobra.Command{
	Use:          "sn",
	Short:        "Social network core",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		fmt.Printf("Media:     %s\n", cfg.Media.Type)
		fmt.Printf("Cache:     %s\n", orDefault(cfg.Cache.Type, "none"))
		fmt.Printf("Events:    %s\n", orDefault(cfg.Events.Type, "log"))
		fmt.Printf("Schedule:  %s\n", cfg.Maintenance.Schedule)
		return nil
	},
}

// store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the document store",
}

var storeBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a copy of the SQLite store to DEST",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Backup", func(ctx context.Context, a *app.SNApp) error {
			if err := a.Backup(ctx, args[0]); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			fmt.Printf("Backed up to %s\n", args[0])
			return nil
		})
	},
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func init() {
	rootCmd.PersistentFlags().String("as", "", "ID of the acting user")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	// store subcommands
	storeCmd.AddCommand(storeBackupCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(storeCmd)
}
