/*
Package router turns inbound email into notification requests.

Each recipient address of a message names a configured target. The router
parses the address into a Key, looks the Key up in the Registry and renders
the target's title and body templates against the message. Recipients that
cannot be parsed or are not configured are logged and skipped; they never
stop the remaining recipients from being routed.
*/
package router

import (
	"iter"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/mailrise/internal/metrics"
)

// subjectArtifact is removed from subjects before they reach the title.
const subjectArtifact = "/&nbsp;/"

// Placeholders is the vocabulary available to title and body templates.
var Placeholders = []string{"subject", "from", "body", "to", "config", "type"}

// Attachment is a file attached to a message. The router passes
// attachments through untouched.
type Attachment struct {
	Name        string `yaml:"name"`
	ContentType string `yaml:"content_type,omitempty"`
	Data        []byte `yaml:"-"`
}

// Message is an inbound email, already parsed by the SMTP side.
type Message struct {
	To          []string
	From        string
	Subject     string
	Body        string
	BodyFormat  BodyFormat
	Attachments []Attachment
}

// Notification is a rendered request for the delivery side.
type Notification struct {
	Config       string       `yaml:"config"`
	ConfigFormat string       `yaml:"config_format"`
	Title        string       `yaml:"title"`
	Body         string       `yaml:"body"`
	BodyFormat   BodyFormat   `yaml:"body_format,omitempty"`
	Type         NotifyType   `yaml:"type"`
	Attachments  []Attachment `yaml:"attachments,omitempty"`
	Asset        *Asset       `yaml:"-"`
}

// Asset describes the application to notification backends.
type Asset struct {
	name        string
	description string
	url         string
	colors      map[NotifyType]string
}

// NewAsset returns the Mailrise application asset.
func NewAsset() *Asset {
	return &Asset{
		name:        "Mailrise",
		description: "Mailrise SMTP Notification Relay",
		url:         "https://mailrise.xyz",
		colors: map[NotifyType]string{
			NotifyInfo:    "#2e6e99",
			NotifySuccess: "#2e992e",
			NotifyWarning: "#99972e",
			NotifyFailure: "#993a2e",
		},
	}
}

func (a *Asset) Name() string        { return a.name }
func (a *Asset) Description() string { return a.description }
func (a *Asset) URL() string         { return a.url }

// Color returns the hex color for t, falling back to the info color.
func (a *Asset) Color(t NotifyType) string {
	if c, ok := a.colors[t]; ok {
		return c
	}
	return a.colors[NotifyInfo]
}

// Router resolves message recipients against a Registry.
type Router struct {
	registry *Registry
	asset    *Asset
	logger   *log.Logger
}

// New creates a router. A nil logger uses the default charmbracelet logger.
func New(registry *Registry, asset *Asset, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		registry: registry,
		asset:    asset,
		logger:   logger,
	}
}

// Route yields one notification per routable recipient of msg, in the
// order of msg.To. Nothing is rendered ahead of the consumer: recipient
// i+1 is resolved only after the notification for recipient i has been
// consumed. Stopping the iteration abandons the remaining recipients.
//
// auth is the SMTP authentication context; it is accepted for callers
// that have one and is not inspected.
func (r *Router) Route(msg Message, auth any) iter.Seq[Notification] {
	return func(yield func(Notification) bool) {
		for _, addr := range msg.To {
			rcpt, err := ParseRecipient(addr)
			if err != nil {
				r.logger.Error("Not a valid Mailrise address", "address", addr)
				metrics.RecipientsSkipped.WithLabelValues(metrics.ReasonInvalidAddress).Inc()
				continue
			}

			sender, ok := r.registry.Get(rcpt.Key)
			if !ok {
				r.logger.Error("Recipient is not configured", "address", addr)
				metrics.RecipientsSkipped.WithLabelValues(metrics.ReasonUnconfigured).Inc()
				continue
			}

			metrics.RecipientsRouted.WithLabelValues(rcpt.Key.AsConfigured()).Inc()
			if !yield(r.render(msg, rcpt, sender)) {
				return
			}
		}
	}
}

func (r *Router) render(msg Message, rcpt Recipient, sender *Sender) Notification {
	mapping := map[string]string{
		"subject": strings.ReplaceAll(msg.Subject, subjectArtifact, ""),
		"from":    msg.From,
		"body":    msg.Body,
		"to":      rcpt.Key.String(),
		"config":  rcpt.Key.AsConfigured(),
		"type":    string(rcpt.Type),
	}
	title := sender.TitleTemplate().SafeSubstitute(mapping)
	body := sender.BodyTemplate().SafeSubstitute(mapping)

	bodyFormat := msg.BodyFormat
	if sender.BodyFormat() != "" {
		bodyFormat = sender.BodyFormat()
	}

	return Notification{
		Config:       sender.ConfigYAML(),
		ConfigFormat: sender.ConfigFormat(),
		Title:        title,
		Body:         body,
		BodyFormat:   bodyFormat,
		Type:         rcpt.Type,
		Attachments:  msg.Attachments,
		Asset:        r.asset,
	}
}
