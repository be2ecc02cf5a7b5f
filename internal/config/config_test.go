package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/mailrise/internal/router"
)

const sample = `
defaults:
  body_template: "default: $body"

configs:
  jobs:
    urls:
      - json://localhost:8080/hook
    mailrise:
      title_template: "Job $subject"
  alerts@Example.com:
    urls:
      - discord://id/token
    mailrise:
      body_format: html
  plain:
    urls:
      - slack://a/b/c
`

func TestParseTargets(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	targets, err := cfg.Targets()
	require.NoError(t, err)
	require.Len(t, targets, 3)

	assert.Equal(t, "jobs", targets[0].Key)
	assert.Equal(t, "alerts@Example.com", targets[1].Key)
	assert.Equal(t, "plain", targets[2].Key)

	assert.Equal(t, Options{
		TitleTemplate: "Job $subject",
		BodyTemplate:  "default: $body",
	}, targets[0].Options)
	assert.Equal(t, Options{
		TitleTemplate: "$subject ($from)",
		BodyTemplate:  "default: $body",
		BodyFormat:    "html",
	}, targets[1].Options)
	assert.Equal(t, "$subject ($from)", targets[2].Options.TitleTemplate)
}

func TestTargetBackendExcludesMailriseNode(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	targets, err := cfg.Targets()
	require.NoError(t, err)

	var backend map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(targets[0].Backend), &backend))
	assert.Equal(t, map[string]any{"urls": []any{"json://localhost:8080/hook"}}, backend)
	assert.NotContains(t, targets[0].Backend, "mailrise")
}

func TestBuiltinDefaults(t *testing.T) {
	cfg, err := Parse([]byte("configs:\n  jobs:\n    urls: [json://localhost]\n"))
	require.NoError(t, err)

	targets, err := cfg.Targets()
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, Options{TitleTemplate: "$subject ($from)", BodyTemplate: "$body"}, targets[0].Options)
}

func TestExplicitEmptyOptionsAreKept(t *testing.T) {
	cfg, err := Parse([]byte(`
defaults:
  body_template: "[$type] $body"
configs:
  silent:
    urls: [json://localhost]
    mailrise:
      title_template: ""
      body_template: ""
  plain:
    urls: [json://localhost]
    mailrise:
      title_template: "$subject"
`))
	require.NoError(t, err)

	targets, err := cfg.Targets()
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, Options{}, targets[0].Options)
	assert.Equal(t, Options{TitleTemplate: "$subject", BodyTemplate: "[$type] $body"}, targets[1].Options)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	sender, ok := reg.Get(router.Key{User: "silent", Domain: router.DefaultDomain})
	require.True(t, ok)
	assert.Equal(t, "", sender.TitleTemplate().String())
	assert.Equal(t, "", sender.BodyTemplate().String())
}

func TestRegistry(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())

	sender, ok := reg.Get(router.Key{User: "alerts", Domain: "example.com"})
	require.True(t, ok)
	assert.Equal(t, router.FormatHTML, sender.BodyFormat())
	assert.Equal(t, "yaml", sender.ConfigFormat())

	sender, ok = reg.Get(router.Key{User: "jobs", Domain: router.DefaultDomain})
	require.True(t, ok)
	assert.Equal(t, "Job $subject", sender.TitleTemplate().String())
}

func TestRegistryEmpty(t *testing.T) {
	cfg, err := Parse([]byte("configs: {}\n"))
	require.NoError(t, err)

	_, err = cfg.Registry()
	assert.ErrorIs(t, err, router.ErrNoSenders)
	assert.ErrorIs(t, cfg.Validate(), router.ErrNoSenders)
}

func TestRegistryDuplicateAfterNormalization(t *testing.T) {
	cfg, err := Parse([]byte(`
configs:
  ops@example.com:
    urls: [json://a]
  ops@EXAMPLE.com:
    urls: [json://b]
`))
	require.NoError(t, err)

	_, err = cfg.Registry()
	assert.ErrorIs(t, err, router.ErrDuplicateKey)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", "YAML root node is not a mapping"},
		{"root list", "- a\n- b\n", "YAML root node is not a mapping"},
		{"no configs", "defaults: {}\n", "the configs node is not a YAML mapping"},
		{"configs list", "configs:\n  - jobs\n", "the configs node is not a YAML mapping"},
		{"bad yaml", "configs: [\n", "yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTargetErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"target not mapping", "configs:\n  jobs: json://a\n", "is not a YAML mapping"},
		{"bad body format", "configs:\n  jobs:\n    mailrise:\n      body_format: rtf\n", "invalid body format"},
		{"bad mailrise node", "configs:\n  jobs:\n    mailrise: [a]\n", "invalid mailrise node"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.doc))
			require.NoError(t, err)

			_, err = cfg.Targets()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistryInvalidKey(t *testing.T) {
	cfg, err := Parse([]byte("configs:\n  \"bad key@\":\n    urls: [json://a]\n"))
	require.NoError(t, err)

	_, err = cfg.Registry()
	assert.ErrorIs(t, err, router.ErrInvalidAddress)
}

func TestEnvVarTag(t *testing.T) {
	t.Setenv("MAILRISE_TEST_TOKEN", "s3cret")

	cfg, err := Parse([]byte(`
configs:
  jobs:
    urls:
      - !env_var MAILRISE_TEST_TOKEN
      - !env_var MAILRISE_TEST_UNSET json://fallback host
`))
	require.NoError(t, err)

	targets, err := cfg.Targets()
	require.NoError(t, err)

	var backend struct {
		URLs []string `yaml:"urls"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(targets[0].Backend), &backend))
	assert.Equal(t, []string{"s3cret", "json://fallback host"}, backend.URLs)
}

func TestEnvVarTagMissing(t *testing.T) {
	_, err := Parse([]byte("configs:\n  jobs:\n    token: !env_var MAILRISE_TEST_DEFINITELY_UNSET\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAILRISE_TEST_DEFINITELY_UNSET is not set")
}

func TestEnvVarTagOnMapping(t *testing.T) {
	_, err := Parse([]byte("configs: !env_var\n  jobs: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be applied to a scalar")
}

func TestWarnings(t *testing.T) {
	cfg, err := Parse([]byte(`
configs:
  jobs:
    mailrise:
      title_template: "$subject $hostname"
      body_template: "${body} $$literal ${sender}"
`))
	require.NoError(t, err)

	warnings, err := cfg.Warnings()
	require.NoError(t, err)
	assert.Equal(t, []string{
		`config "jobs": title_template uses unknown placeholder $hostname`,
		`config "jobs": body_template uses unknown placeholder $sender`,
	}, warnings)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailrise.conf")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	_, err = Load(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}

func TestDefaultTemplateIsValid(t *testing.T) {
	cfg, err := Parse([]byte(DefaultTemplate()))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	warnings, err := cfg.Warnings()
	require.NoError(t, err)
	assert.Empty(t, warnings)
}
