package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	stateDir        = ".agility"
	captureFileName = "capture.yml"
	webhooksFile    = "webhooks.yml"

	DefaultGatewayURL = "http://127.0.0.1:8090/v0/snapshots"
	// DefaultTimeoutSeconds outlasts the gateway's default analysis and
	// forward timeouts combined.
	DefaultTimeoutSeconds = 120
)

// Capture models .agility/capture.yml, the capture agent's settings.
type Capture struct {
	GatewayURL     string   `yaml:"gateway_url"`
	Token          string   `yaml:"token,omitempty"`
	DefaultTaskID  string   `yaml:"default_task_id,omitempty"`
	DeveloperID    string   `yaml:"developer_id,omitempty"`
	AutoTrack      *bool    `yaml:"auto_track,omitempty"`
	Languages      []string `yaml:"languages"`
	WorkspaceRoots []string `yaml:"workspace_roots,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	// Extensions overrides or extends the built-in extension to language map
	// used by the file watcher.
	Extensions map[string][]string `yaml:"extensions,omitempty"`
}

// Default returns the capture settings used when no file exists.
func Default() *Capture {
	on := true
	return &Capture{
		GatewayURL:     DefaultGatewayURL,
		AutoTrack:      &on,
		Languages:      []string{"go", "python", "typescript", "javascript"},
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// AutoTrackDefault is the initial auto-track value for a new workspace.
func (c *Capture) AutoTrackDefault() bool {
	return c.AutoTrack == nil || *c.AutoTrack
}

// LanguageAllowed reports whether languageID is in the allow-list. The
// comparison ignores case.
func (c *Capture) LanguageAllowed(languageID string) bool {
	for _, l := range c.Languages {
		if strings.EqualFold(strings.TrimSpace(l), languageID) {
			return true
		}
	}
	return false
}

// Validate ensures the config can drive the capture agent.
func (c *Capture) Validate() error {
	if strings.TrimSpace(c.GatewayURL) == "" {
		return errors.New("capture.gateway_url is required")
	}
	u, err := url.Parse(c.GatewayURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("capture.gateway_url %q is not an absolute URL", c.GatewayURL)
	}
	if c.TimeoutSeconds < 0 {
		return errors.New("capture.timeout_seconds must be >= 0")
	}
	for _, l := range c.Languages {
		if strings.TrimSpace(l) == "" {
			return errors.New("capture.languages contains an empty entry")
		}
	}
	return nil
}

// CapturePath returns the capture config path for a workspace.
func CapturePath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir, captureFileName)
}

// LoadCapture reads the capture config, falling back to defaults when the
// file does not exist. Missing fields take default values.
func LoadCapture(workspace string) (*Capture, error) {
	data, err := os.ReadFile(CapturePath(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return CaptureFromYAML(data)
}

// CaptureFromYAML decodes and validates capture settings.
func CaptureFromYAML(data []byte) (*Capture, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse capture config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveCapture writes the capture config for a workspace.
func SaveCapture(workspace string, c *Capture) error {
	if err := c.Validate(); err != nil {
		return err
	}
	path := CapturePath(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// WebhookConfig is one board endpoint notified of new reviews.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

type webhooksDoc struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// LoadWebhooks reads .agility/webhooks.yml. A missing file means no hooks.
func LoadWebhooks(workspace string) ([]WebhookConfig, error) {
	if workspace == "" {
		workspace = "."
	}
	data, err := os.ReadFile(filepath.Join(workspace, stateDir, webhooksFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc webhooksDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse webhooks: %w", err)
	}
	for i, h := range doc.Webhooks {
		if strings.TrimSpace(h.URL) == "" {
			return nil, fmt.Errorf("webhooks[%d].url is required", i)
		}
	}
	return doc.Webhooks, nil
}
