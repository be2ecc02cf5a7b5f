package router

import (
	"errors"
	"fmt"

	"github.com/oarkflow/mailrise/internal/tmpl"
)

var (
	// ErrNoSenders is returned when a registry would have no targets.
	ErrNoSenders = errors.New("no notification targets are configured")

	// ErrDuplicateKey is returned when two configuration keys resolve to
	// the same target.
	ErrDuplicateKey = errors.New("duplicate config key")
)

// ConfigFormat is the format of every Sender's backend configuration.
const ConfigFormat = "yaml"

// BodyFormat is the markup of a notification body.
type BodyFormat string

const (
	FormatText     BodyFormat = "text"
	FormatHTML     BodyFormat = "html"
	FormatMarkdown BodyFormat = "markdown"
)

// Valid reports whether f is empty or one of the known formats.
func (f BodyFormat) Valid() bool {
	switch f {
	case "", FormatText, FormatHTML, FormatMarkdown:
		return true
	}
	return false
}

// Sender is the configuration of one notification target.
type Sender struct {
	configYAML string
	title      *tmpl.Template
	body       *tmpl.Template
	bodyFormat BodyFormat
}

// NewSender creates a sender. configYAML is the backend configuration and
// is not interpreted by the router. An empty bodyFormat keeps the format
// of each message.
func NewSender(configYAML, titleTemplate, bodyTemplate string, bodyFormat BodyFormat) (*Sender, error) {
	if !bodyFormat.Valid() {
		return nil, fmt.Errorf("invalid body format %q", bodyFormat)
	}
	return &Sender{
		configYAML: configYAML,
		title:      tmpl.Parse(titleTemplate),
		body:       tmpl.Parse(bodyTemplate),
		bodyFormat: bodyFormat,
	}, nil
}

// ConfigYAML returns the backend configuration.
func (s *Sender) ConfigYAML() string { return s.configYAML }

// ConfigFormat returns the format of ConfigYAML.
func (s *Sender) ConfigFormat() string { return ConfigFormat }

// TitleTemplate returns the title template.
func (s *Sender) TitleTemplate() *tmpl.Template { return s.title }

// BodyTemplate returns the body template.
func (s *Sender) BodyTemplate() *tmpl.Template { return s.body }

// BodyFormat returns the body format override, or "" when unset.
func (s *Sender) BodyFormat() BodyFormat { return s.bodyFormat }

// Entry pairs a key with its sender.
type Entry struct {
	Key    Key
	Sender *Sender
}

// Registry maps keys to senders. It is read-only once built.
type Registry struct {
	senders map[Key]*Sender
	order   []Key
}

// NewRegistry builds a registry from entries in configuration order.
func NewRegistry(entries []Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, ErrNoSenders
	}

	r := &Registry{
		senders: make(map[Key]*Sender, len(entries)),
		order:   make([]Key, 0, len(entries)),
	}
	for _, e := range entries {
		if e.Sender == nil {
			return nil, fmt.Errorf("config key %s has no sender", e.Key.AsConfigured())
		}
		if _, ok := r.senders[e.Key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, e.Key.AsConfigured())
		}
		r.senders[e.Key] = e.Sender
		r.order = append(r.order, e.Key)
	}
	return r, nil
}

// Get returns the sender configured for key.
func (r *Registry) Get(key Key) (*Sender, bool) {
	s, ok := r.senders[key]
	return s, ok
}

// Len returns the number of configured targets.
func (r *Registry) Len() int {
	return len(r.order)
}

// Keys returns the configured keys in configuration order.
func (r *Registry) Keys() []Key {
	keys := make([]Key, len(r.order))
	copy(keys, r.order)
	return keys
}
