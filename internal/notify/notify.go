// Package notify delivers routed notifications to their backends.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/mailrise/internal/metrics"
	"github.com/oarkflow/mailrise/internal/parallel"
	"github.com/oarkflow/mailrise/internal/router"
)

// Default API endpoints of the hosted backends.
const (
	DiscordBaseURL  = "https://discord.com/api/webhooks"
	SlackBaseURL    = "https://hooks.slack.com/services"
	TelegramBaseURL = "https://api.telegram.org"
)

// Dispatcher sends notifications to every URL of their backend
// configuration.
type Dispatcher struct {
	client    *http.Client
	newMailer func(host string, port int, username, password string) Mailer
	logger    *log.Logger
	workers   int

	discordBase  string
	slackBase    string
	telegramBase string
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithWorkers sets how many URLs of one notification are sent at the
// same time. The default of 1 sends them in configuration order.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.client.Timeout = timeout
		}
	}
}

// NewDispatcher creates a dispatcher. A nil logger uses the default
// charmbracelet logger.
func NewDispatcher(logger *log.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	d := &Dispatcher{
		client:       &http.Client{Timeout: 30 * time.Second},
		newMailer:    newGomailMailer,
		logger:       logger,
		workers:      1,
		discordBase:  DiscordBaseURL,
		slackBase:    SlackBaseURL,
		telegramBase: TelegramBaseURL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// backendConfig is the part of a target's configuration understood by the
// dispatcher.
type backendConfig struct {
	URLs []urlEntry `yaml:"urls"`
}

// urlEntry is either a plain URL or a single-key mapping from URL to
// per-URL options, which are ignored.
type urlEntry string

func (u *urlEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*u = urlEntry(value.Value)
		return nil
	case yaml.MappingNode:
		if len(value.Content) == 2 {
			*u = urlEntry(value.Content[0].Value)
			return nil
		}
	}
	return fmt.Errorf("line %d: url entry must be a string or a single-key mapping", value.Line)
}

// URLs returns the backend URLs of a notification configuration.
func URLs(config, format string) ([]string, error) {
	if format != router.ConfigFormat {
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	var cfg backendConfig
	if err := yaml.Unmarshal([]byte(config), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse backend config: %w", err)
	}

	urls := make([]string, 0, len(cfg.URLs))
	for _, u := range cfg.URLs {
		if s := strings.TrimSpace(string(u)); s != "" {
			urls = append(urls, s)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no urls configured")
	}
	return urls, nil
}

// Deliver sends n to every configured URL. Every URL is attempted; the
// returned error lists the ones that failed. Delivery is not retried.
func (d *Dispatcher) Deliver(ctx context.Context, n router.Notification) error {
	urls, err := URLs(n.Config, n.ConfigFormat)
	if err != nil {
		return err
	}
	if n.Asset == nil {
		n.Asset = router.NewAsset()
	}

	id := uuid.NewString()
	results := parallel.Each(ctx, urls, d.workers, func(ctx context.Context, raw string) error {
		scheme := schemeOf(raw)
		if err := d.send(ctx, id, scheme, raw, n); err != nil {
			metrics.Deliveries.WithLabelValues(scheme, metrics.OutcomeFailed).Inc()
			d.logger.Error("Notification failed", "id", id, "scheme", scheme, "err", err)
			return err
		}
		metrics.Deliveries.WithLabelValues(scheme, metrics.OutcomeSent).Inc()
		d.logger.Info("Notification sent", "id", id, "scheme", scheme, "title", n.Title)
		return nil
	})

	var errs []string
	for i, err := range results {
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", schemeOf(urls[i]), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("some deliveries failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, id, scheme, raw string, n router.Notification) error {
	switch scheme {
	case "json", "jsons":
		return d.sendJSON(ctx, id, raw, n)
	case "discord":
		return d.sendDiscord(ctx, raw, n)
	case "slack":
		return d.sendSlack(ctx, raw, n)
	case "tgram":
		return d.sendTelegram(ctx, raw, n)
	case "mailto", "mailtos":
		return d.sendMail(raw, n)
	default:
		return fmt.Errorf("unsupported url scheme %q", scheme)
	}
}

// schemeOf returns the lowercased scheme of raw, or "" when there is none.
func schemeOf(raw string) string {
	scheme, _, ok := strings.Cut(raw, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}

// pathTokens splits the part of raw after the scheme on slashes, dropping
// the query and empty segments. Used for backends whose tokens do not form
// a valid URL host (Telegram bot tokens contain a colon).
func pathTokens(raw string) []string {
	_, rest, _ := strings.Cut(raw, "://")
	rest, _, _ = strings.Cut(rest, "?")

	var tokens []string
	for _, t := range strings.Split(rest, "/") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// postJSON sends a JSON POST request.
func (d *Dispatcher) postJSON(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return nil
}
