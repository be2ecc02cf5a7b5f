package cmd

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/mailrise/internal/metrics"
	"github.com/oarkflow/mailrise/internal/notify"
	"github.com/oarkflow/mailrise/internal/router"
)

type sendOptions struct {
	to          []string
	from        string
	subject     string
	body        string
	format      string
	attachments []string
	dryRun      bool
	metricsFile string
	workers     int
	timeout     time.Duration
}

func newSendCmd(global *globalOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Relay a message to its recipients",
		Long: `Route a message to the targets named by its recipients and deliver
the resulting notifications.

The body is read from standard input unless --body is given. Recipients
that are not valid Mailrise addresses or are not configured are logged
and skipped; the remaining recipients are still delivered.

Use --dry-run to print the rendered notifications instead of sending them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.to) == 0 {
				return fmt.Errorf("at least one --to recipient is required")
			}
			if !cmd.Flags().Changed("body") {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read body: %w", err)
				}
				opts.body = string(data)
			}

			msg, err := opts.message()
			if err != nil {
				return err
			}

			reg, err := global.loadRegistry()
			if err != nil {
				return err
			}

			return opts.run(cmd, router.New(reg, router.NewAsset(), log.Default()), msg)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.to, "to", "t", nil, "recipient address (repeatable)")
	cmd.Flags().StringVarP(&opts.from, "from", "f", "", "sender address")
	cmd.Flags().StringVarP(&opts.subject, "subject", "s", "", "message subject")
	cmd.Flags().StringVarP(&opts.body, "body", "b", "", "message body (default is standard input)")
	cmd.Flags().StringVar(&opts.format, "format", string(router.FormatText), "body format: text, html or markdown")
	cmd.Flags().StringSliceVarP(&opts.attachments, "attach", "a", nil, "file to attach (repeatable)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print notifications instead of delivering them")
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "URLs of one notification sent at the same time")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP timeout for each delivery")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")

	return cmd
}

func (o *sendOptions) message() (router.Message, error) {
	format := router.BodyFormat(o.format)
	if !format.Valid() {
		return router.Message{}, fmt.Errorf("invalid body format %q", o.format)
	}

	msg := router.Message{
		To:         o.to,
		From:       o.from,
		Subject:    o.subject,
		Body:       o.body,
		BodyFormat: format,
	}
	for _, path := range o.attachments {
		data, err := os.ReadFile(path)
		if err != nil {
			return router.Message{}, fmt.Errorf("failed to read attachment: %w", err)
		}
		msg.Attachments = append(msg.Attachments, router.Attachment{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
		})
	}
	return msg, nil
}

// run delivers each notification before the next one is rendered.
func (o *sendOptions) run(cmd *cobra.Command, r *router.Router, msg router.Message) error {
	dispatcher := notify.NewDispatcher(log.Default(), notify.WithWorkers(o.workers), notify.WithTimeout(o.timeout))
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()

	var sent, failed int
	for n := range r.Route(msg, nil) {
		if o.dryRun {
			if err := enc.Encode(n); err != nil {
				return err
			}
			continue
		}
		if err := dispatcher.Deliver(cmd.Context(), n); err != nil {
			log.Error("Delivery failed", "title", n.Title, "err", err)
			failed++
			continue
		}
		sent++
	}

	if o.metricsFile != "" {
		if err := metrics.WriteTextfile(o.metricsFile); err != nil {
			log.Warn("Failed to write metrics", "path", o.metricsFile, "err", err)
		}
	}

	if !o.dryRun {
		log.Info("Message relayed", "sent", sent, "failed", failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d notification(s) failed", failed, sent+failed)
	}
	return nil
}
