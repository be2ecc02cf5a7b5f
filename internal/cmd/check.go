package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oarkflow/mailrise"
	"github.com/oarkflow/mailrise/internal/config"
)

func newCheckCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check configuration file",
		Long: `Check if the configuration file is valid.

This validates:
  - YAML syntax and !env_var references
  - Recipient keys
  - Body formats
  - Template placeholders (unknown ones are reported as warnings)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := global.configPath()

			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				return fmt.Errorf("config file not found: %s", configPath)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}

			warnings, err := cfg.Warnings()
			if err != nil {
				return err
			}
			for _, w := range warnings {
				log.Warn(w)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration file %s is valid\n", configPath)
			return nil
		},
	}
}

func newInitCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file",
		Long: `Initialize a new mailrise.conf configuration file.

This creates a basic configuration file that you can customize
with your own notification targets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := "mailrise.conf"
			if global.cfgFile != "" {
				configPath = global.cfgFile
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			if err := os.WriteFile(configPath, []byte(config.DefaultTemplate()), 0600); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", configPath)
			fmt.Fprintln(cmd.OutOrStdout(), "\nEdit this file to add your notification targets.")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit, and build date of Mailrise.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Mailrise %s\n", mailrise.Version)
			if mailrise.GitCommit != "" {
				fmt.Fprintf(out, "  Commit: %s\n", mailrise.GitCommit)
			}
			if mailrise.BuildDate != "" {
				fmt.Fprintf(out, "  Built:  %s\n", mailrise.BuildDate)
			}
		},
	}
}
