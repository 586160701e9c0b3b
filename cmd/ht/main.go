package main

import (
	"fmt"
	"os"

	"ht-go/internal/app"
	"ht-go/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an HTApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "focus start").
func newApp(cmd *cobra.Command) (*app.HTApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewHTApp(cfg, cmd.CommandPath(), verbose)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "ht",
	Short:        "Habit tracker with focus sessions",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := outputFormat(cmd)
		return err
	},
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

		clientID := uuid.New().String()
		cfg := config.NewConfig(clientID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration initialized at %s\n", defaults["config_path"])
		fmt.Fprintf(out, "Client ID: %s\n", clientID)
		fmt.Fprintf(out, "Base Dir:  %s\n", defaults["base_dir"])
		fmt.Fprintf(out, "API:       %s\n", cfg.API.BaseURL)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
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
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration from %s:\n\n", defaults["config_path"])
		fmt.Fprintf(out, "Client ID:       %s\n", cfg.ClientID)
		fmt.Fprintf(out, "Base Dir:        %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Log Dir:         %s\n", cfg.LogDir)
		fmt.Fprintf(out, "API:             %s (timeout %s)\n", cfg.API.BaseURL, cfg.API.Timeout())
		fmt.Fprintf(out, "API Token:       %s\n", tokenState(app.APIToken(cfg.API.Token)))
		fmt.Fprintf(out, "Default Minutes: %d\n", cfg.Focus.DefaultPlannedMinutes)
		fmt.Fprintf(out, "Celebration:     %s\n", cfg.Focus.CelebrationDuration())
		fmt.Fprintf(out, "Poll Interval:   %s\n", cfg.Focus.PollInterval())
		fmt.Fprintf(out, "Listen Addr:     %s\n", cfg.Server.ListenAddr)
		fmt.Fprintf(out, "Database:        %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Fprintf(out, "Vault:           %s\n", vaultLocation(cfg.Vault))
		fmt.Fprintf(out, "Backup Keys:     %s\n", cfg.Encryption.PublicKeyPath)
		return nil
	},
}

func vaultLocation(v config.VaultConfig) string {
	switch v.Type {
	case "filesystem":
		return "filesystem " + v.FSRoot
	case "s3":
		loc := "s3://" + v.S3Bucket + "/" + v.S3Prefix
		if v.S3Endpoint != "" {
			loc += " via " + v.S3Endpoint
		}
		return loc
	default:
		return v.Type
	}
}

func tokenState(tok string) string {
	if tok == "" {
		return "(none)"
	}
	return "(set)"
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format (text, json, yaml)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(habitCmd)
	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backupCmd)
}
