/*
Package config provides configuration loading and validation for Mailrise.
*/
package config

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/mailrise/internal/router"
	"github.com/oarkflow/mailrise/internal/tmpl"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "/etc/mailrise.conf"

// envTag marks scalars that are read from the environment:
//
//	password: !env_var SMTP_PASSWORD
//	port: !env_var SMTP_PORT 587
const envTag = "!env_var"

// mailriseKey is the per-target node holding Mailrise's own options. Every
// other key of a target belongs to the notification backend.
const mailriseKey = "mailrise"

// Config represents the complete Mailrise configuration
type Config struct {
	// Defaults are applied to every target that leaves an option out
	Defaults OptionSet `yaml:"defaults,omitempty"`

	// Configs maps recipient keys to targets, in file order
	Configs yaml.Node `yaml:"configs"`
}

// Options are the Mailrise options of one target
type Options struct {
	TitleTemplate string `yaml:"title_template,omitempty"`
	BodyTemplate  string `yaml:"body_template,omitempty"`
	BodyFormat    string `yaml:"body_format,omitempty"`
}

// OptionSet holds options as written in the file. A nil field was left
// out; a pointer to "" was written as an empty value and is kept.
type OptionSet struct {
	TitleTemplate *string `yaml:"title_template,omitempty"`
	BodyTemplate  *string `yaml:"body_template,omitempty"`
	BodyFormat    *string `yaml:"body_format,omitempty"`
}

func (o OptionSet) resolve() Options {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return Options{
		TitleTemplate: deref(o.TitleTemplate),
		BodyTemplate:  deref(o.BodyTemplate),
		BodyFormat:    deref(o.BodyFormat),
	}
}

func stringPtr(s string) *string { return &s }

var builtinOptions = OptionSet{
	TitleTemplate: stringPtr("$subject ($from)"),
	BodyTemplate:  stringPtr("$body"),
}

// Target is one entry of the configs mapping.
type Target struct {
	// Key is the recipient key exactly as written in the file
	Key string

	// Options with defaults applied
	Options Options

	// Backend is the target's backend configuration re-encoded as YAML,
	// without the mailrise node
	Backend string
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses a configuration document.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("YAML root node is not a mapping")
	}
	root := doc.Content[0]

	if err := resolveEnv(root); err != nil {
		return nil, err
	}

	var cfg Config
	if err := root.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.Configs.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("the configs node is not a YAML mapping")
	}

	return &cfg, nil
}

// resolveEnv replaces every !env_var scalar below n with the value of the
// named environment variable, or with the default that follows the name.
func resolveEnv(n *yaml.Node) error {
	if n.Tag == envTag {
		if n.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: %s must be applied to a scalar", n.Line, envTag)
		}
		fields := strings.Fields(n.Value)
		if len(fields) == 0 {
			return fmt.Errorf("line %d: %s needs a variable name", n.Line, envTag)
		}

		value, ok := os.LookupEnv(fields[0])
		if !ok {
			if len(fields) == 1 {
				return fmt.Errorf("line %d: environment variable %s is not set", n.Line, fields[0])
			}
			value = strings.Join(fields[1:], " ")
		}

		n.Tag = "!!str"
		n.Value = value
		n.Style = 0
		return nil
	}

	for _, c := range n.Content {
		if err := resolveEnv(c); err != nil {
			return err
		}
	}
	return nil
}

// Targets returns the configured targets in file order.
func (c *Config) Targets() ([]Target, error) {
	content := c.Configs.Content
	targets := make([]Target, 0, len(content)/2)

	for i := 0; i+1 < len(content); i += 2 {
		key := content[i].Value
		node := content[i+1]
		if node.Kind == yaml.AliasNode {
			node = node.Alias
		}
		if node.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("config %q is not a YAML mapping", key)
		}

		target, err := c.target(key, node)
		if err != nil {
			return nil, fmt.Errorf("config %q: %w", key, err)
		}
		targets = append(targets, target)
	}

	return targets, nil
}

func (c *Config) target(key string, node *yaml.Node) (Target, error) {
	backend := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	var set OptionSet

	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Value != mailriseKey {
			backend.Content = append(backend.Content, k, v)
			continue
		}
		if err := v.Decode(&set); err != nil {
			return Target{}, fmt.Errorf("invalid mailrise node: %w", err)
		}
	}

	// Only options left out are filled in; explicit empty values stay.
	if err := mergo.Merge(&set, c.Defaults, mergo.WithoutDereference); err != nil {
		return Target{}, fmt.Errorf("failed to merge defaults: %w", err)
	}
	if err := mergo.Merge(&set, builtinOptions, mergo.WithoutDereference); err != nil {
		return Target{}, fmt.Errorf("failed to merge defaults: %w", err)
	}
	opts := set.resolve()

	if !router.BodyFormat(opts.BodyFormat).Valid() {
		return Target{}, fmt.Errorf("invalid body format %q", opts.BodyFormat)
	}

	out, err := yaml.Marshal(backend)
	if err != nil {
		return Target{}, fmt.Errorf("failed to encode backend config: %w", err)
	}

	return Target{
		Key:     key,
		Options: opts,
		Backend: string(out),
	}, nil
}

// Registry builds the sender registry. An empty configs mapping yields
// router.ErrNoSenders.
func (c *Config) Registry() (*router.Registry, error) {
	targets, err := c.Targets()
	if err != nil {
		return nil, err
	}

	entries := make([]router.Entry, 0, len(targets))
	for _, t := range targets {
		key, err := router.ParseKey(t.Key)
		if err != nil {
			return nil, err
		}
		sender, err := router.NewSender(t.Backend, t.Options.TitleTemplate, t.Options.BodyTemplate, router.BodyFormat(t.Options.BodyFormat))
		if err != nil {
			return nil, fmt.Errorf("config %q: %w", t.Key, err)
		}
		entries = append(entries, router.Entry{Key: key, Sender: sender})
	}

	return router.NewRegistry(entries)
}

// Validate checks that every target can be turned into a sender.
func (c *Config) Validate() error {
	_, err := c.Registry()
	return err
}

// Warnings reports template placeholders that the router never fills in.
// They are rendered verbatim, which is rarely what was intended.
func (c *Config) Warnings() ([]string, error) {
	targets, err := c.Targets()
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(router.Placeholders))
	for _, p := range router.Placeholders {
		known[p] = true
	}

	var warnings []string
	for _, t := range targets {
		templates := []struct{ name, text string }{
			{"title_template", t.Options.TitleTemplate},
			{"body_template", t.Options.BodyTemplate},
		}
		for _, tpl := range templates {
			for _, name := range tmpl.Parse(tpl.text).Placeholders() {
				if !known[name] {
					warnings = append(warnings, fmt.Sprintf("config %q: %s uses unknown placeholder $%s", t.Key, tpl.name, name))
				}
			}
		}
	}
	return warnings, nil
}

// DefaultTemplate returns a starter configuration file
func DefaultTemplate() string {
	return `# Mailrise configuration file
#
# Each key under "configs" is a recipient. Mail sent to <key>@mailrise.xyz
# (or to the full address when the key has a domain) is relayed to the
# URLs of that entry. Append .info, .success, .warning or .failure to the
# recipient to set the notification type.

# Options applied to every config that does not set them
defaults:
  title_template: "$subject ($from)"

configs:
  jobs:
    urls:
      - json://localhost:8080/notify
    mailrise:
      title_template: "[$type] $subject"
      body_template: "$body"

  alerts@example.com:
    urls:
      - !env_var ALERTS_URL tgram://bottoken/123456789
    mailrise:
      body_format: html
`
}
