package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/gemterm/gemterm/internal/provider"
)

// PlaceholderKey is the api_key value written by `gemterm init`.
const PlaceholderKey = "your gemini api key here"

var (
	ErrNotFound       = errors.New("config file not found")
	ErrPlaceholderKey = errors.New("api_key is still the placeholder value")
)

// ParseError reports a config file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldError reports a required key absent from the config file.
type MissingFieldError struct {
	Path  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing key %q in %s", e.Field, e.Path)
}

// Required lists the keys every config file must define.
var Required = []string{"api_key", "model", "safety_settings", "generation_config"}

type Config struct {
	APIKey           string                    `yaml:"api_key" toml:"api_key"`
	Model            string                    `yaml:"model" toml:"model"`
	SafetySettings   provider.SafetySettings   `yaml:"safety_settings" toml:"safety_settings"`
	GenerationConfig provider.GenerationConfig `yaml:"generation_config" toml:"generation_config"`

	Provider string     `yaml:"provider" toml:"provider"` // "gemini" (default) or "openai"
	BaseURL  string     `yaml:"base_url" toml:"base_url"`
	Timeout  int        `yaml:"timeout" toml:"timeout"` // HTTP timeout in seconds, default 120
	Retries  int        `yaml:"retries" toml:"retries"` // retry count on 429/5xx, default 1
	Render   RenderConf `yaml:"render" toml:"render"`
}

type RenderConf struct {
	Engine       string   `yaml:"engine" toml:"engine"`             // "markup" (default) or "glamour"
	Rules        string   `yaml:"rules" toml:"rules"`               // "quote" (default) or "plain"
	Substitution string   `yaml:"substitution" toml:"substitution"` // "span" (default) or "literal"
	Body         []string `yaml:"body" toml:"body"`
	Color        string   `yaml:"color" toml:"color"` // "auto" (default), "always" or "never"
	Width        int      `yaml:"width" toml:"width"` // glamour word wrap, 0 = terminal width
	GlamourStyle string   `yaml:"glamour_style" toml:"glamour_style"`
}

const (
	DefaultGeminiURL = "https://generativelanguage.googleapis.com"
	DefaultOpenAIURL = "https://api.openai.com/v1"
	DefaultTimeout   = 120
	DefaultRetries   = 1
)

// Dir is the per-user directory holding config, history and sessions.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gemterm")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads, decodes and validates the config at path (DefaultPath when
// empty). TOML is used for .toml files; everything else goes through the
// YAML decoder, which also accepts JSON.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	var (
		cfg     Config
		defined func(key string) bool
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		defined = func(key string) bool { return md.IsDefined(key) }
	} else {
		var (
			doc yaml.Node
			raw map[string]any
		)
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		if doc.Kind != 0 {
			renameLegacyKeys(&doc)
			if err := doc.Decode(&raw); err != nil {
				return nil, &ParseError{Path: path, Err: err}
			}
			if err := doc.Decode(&cfg); err != nil {
				return nil, &ParseError{Path: path, Err: err}
			}
		}
		defined = func(key string) bool { _, ok := raw[key]; return ok }
	}

	for _, key := range Required {
		if !defined(key) {
			return nil, &MissingFieldError{Path: path, Field: key}
		}
	}
	if cfg.APIKey == PlaceholderKey {
		return nil, ErrPlaceholderKey
	}
	if !defined("retries") {
		cfg.Retries = DefaultRetries
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// legacyKeys maps the upper-case keys of a keys.json file to the names Load
// reads. A key already present under its own name wins.
var legacyKeys = map[string]string{
	"GEMINI_API_KEY":    "api_key",
	"GEMINI_MODEL":      "model",
	"SAFETY_SETTINGS":   "safety_settings",
	"GENERATION_CONFIG": "generation_config",
}

func renameLegacyKeys(doc *yaml.Node) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return
	}
	seen := make(map[string]bool, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		seen[m.Content[i].Value] = true
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		key := m.Content[i]
		if name, ok := legacyKeys[key.Value]; ok && !seen[name] {
			key.Value = name
			seen[name] = true
		}
	}
}

// Default returns a config usable for offline rendering when no file exists.
func Default() *Config {
	cfg := &Config{Retries: DefaultRetries}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "gemini"
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case "openai":
			c.BaseURL = DefaultOpenAIURL
		default:
			c.BaseURL = DefaultGeminiURL
		}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Render.Engine == "" {
		c.Render.Engine = "markup"
	}
	if c.Render.Color == "" {
		c.Render.Color = "auto"
	}
	if c.Render.GlamourStyle == "" {
		c.Render.GlamourStyle = "auto"
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown provider %q (want gemini or openai)", c.Provider)
	}
	switch c.Render.Engine {
	case "markup", "glamour":
	default:
		return fmt.Errorf("unknown render engine %q (want markup or glamour)", c.Render.Engine)
	}
	switch c.Render.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("unknown color mode %q (want auto, always or never)", c.Render.Color)
	}
	return nil
}
