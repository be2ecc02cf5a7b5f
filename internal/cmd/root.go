/*
Package cmd provides the CLI commands for Mailrise.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oarkflow/mailrise/internal/config"
	"github.com/oarkflow/mailrise/internal/router"
)

// globalOptions are the flags shared by every command
type globalOptions struct {
	cfgFile string
	verbose bool
	debug   bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "mailrise",
		Short: "An SMTP to notification relay",
		Long: `Mailrise turns email into notifications.

Every recipient of a message names a target in the configuration file.
The message subject and body are rendered through the target's templates
and delivered to the target's URLs (JSON webhooks, Discord, Slack,
Telegram or email).

Example:
  mailrise check                                   # Validate /etc/mailrise.conf
  mailrise send -t jobs@mailrise.xyz -s "Build OK" # Body is read from stdin
  mailrise send -t alerts.failure@mailrise.xyz --dry-run`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.initLogging()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug output")

	rootCmd.AddCommand(newSendCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *globalOptions) initLogging() {
	if o.debug {
		log.SetLevel(log.DebugLevel)
	} else if o.verbose {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

func (o *globalOptions) configPath() string {
	if o.cfgFile != "" {
		return o.cfgFile
	}
	return config.DefaultPath
}

// loadRegistry loads the configuration and builds the sender registry.
// A configuration without targets is fatal: every message would be
// dropped without a per-message error.
func (o *globalOptions) loadRegistry() (*router.Registry, error) {
	cfg, err := config.Load(o.configPath())
	if err != nil {
		return nil, err
	}

	reg, err := cfg.Registry()
	if errors.Is(err, router.ErrNoSenders) {
		log.Fatal("No notification targets are configured", "config", o.configPath())
	}
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("Loaded configuration", "recipients", reg.Len())
	return reg, nil
}
