package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `api_key: abc123
model: gemini-1.5-flash
safety_settings:
  - category: HARM_CATEGORY_HARASSMENT
    threshold: BLOCK_NONE
generation_config:
  temperature: 0.7
  max_output_tokens: 2048
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(write(t, "config.yaml", validYAML))
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.APIKey)
	assert.Equal(t, "gemini-1.5-flash", cfg.Model)
	require.Len(t, cfg.SafetySettings, 1)
	assert.Equal(t, "BLOCK_NONE", cfg.SafetySettings[0].Threshold)
	require.NotNil(t, cfg.GenerationConfig.Temperature)
	assert.Equal(t, 0.7, *cfg.GenerationConfig.Temperature)
	assert.Equal(t, 2048, *cfg.GenerationConfig.MaxOutputTokens)

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, DefaultGeminiURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, "markup", cfg.Render.Engine)
	assert.Equal(t, "auto", cfg.Render.Color)
}

func TestLoadJSON(t *testing.T) {
	body := `{
  "api_key": "k",
  "model": "gemini-pro",
  "safety_settings": {"HARM_CATEGORY_HATE_SPEECH": "BLOCK_ONLY_HIGH", "HARM_CATEGORY_DANGEROUS_CONTENT": "BLOCK_NONE"},
  "generation_config": {},
  "retries": 0
}`
	cfg, err := Load(write(t, "config.json", body))
	require.NoError(t, err)
	assert.Equal(t, "gemini-pro", cfg.Model)
	assert.Equal(t, 0, cfg.Retries)
	require.Len(t, cfg.SafetySettings, 2)
	assert.Equal(t, "HARM_CATEGORY_DANGEROUS_CONTENT", cfg.SafetySettings[0].Category)
	assert.Nil(t, cfg.GenerationConfig.Temperature)
}

func TestLoadKeysJSON(t *testing.T) {
	body := `{
    "GEMINI_API_KEY": "k",
    "GEMINI_MODEL": "gemini-1.5-flash",
    "SAFETY_SETTINGS": [
        {"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"},
        {"category": "HARM_CATEGORY_HATE_SPEECH", "threshold": "BLOCK_NONE"}
    ],
    "GENERATION_CONFIG": {
        "temperature": 1,
        "top_p": 0.95,
        "top_k": 64,
        "max_output_tokens": 8192
    }
}`
	cfg, err := Load(write(t, "keys.json", body))
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, "gemini-1.5-flash", cfg.Model)
	assert.Len(t, cfg.SafetySettings, 2)
	require.NotNil(t, cfg.GenerationConfig.TopK)
	assert.Equal(t, 64, *cfg.GenerationConfig.TopK)
	assert.Equal(t, 8192, *cfg.GenerationConfig.MaxOutputTokens)

	placeholder := strings.Replace(body, `"k"`, `"`+PlaceholderKey+`"`, 1)
	_, err = Load(write(t, "keys.json", placeholder))
	assert.True(t, errors.Is(err, ErrPlaceholderKey))

	both := strings.Replace(body, `"GEMINI_MODEL": "gemini-1.5-flash",`, `"GEMINI_MODEL": "gemini-1.5-flash", "model": "gemini-2.0-flash",`, 1)
	cfg, err = Load(write(t, "keys.json", both))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
}

func TestLoadTOML(t *testing.T) {
	body := `api_key = "k"
model = "gemini-1.5-pro"
provider = "openai"

[[safety_settings]]
category = "HARM_CATEGORY_HARASSMENT"
threshold = "BLOCK_NONE"

[generation_config]
top_p = 0.9

[render]
engine = "glamour"
rules = "plain"
`
	cfg, err := Load(write(t, "config.toml", body))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, DefaultOpenAIURL, cfg.BaseURL)
	require.Len(t, cfg.SafetySettings, 1)
	assert.Equal(t, "HARM_CATEGORY_HARASSMENT", cfg.SafetySettings[0].Category)
	assert.Equal(t, 0.9, *cfg.GenerationConfig.TopP)
	assert.Equal(t, "glamour", cfg.Render.Engine)
	assert.Equal(t, "plain", cfg.Render.Rules)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("GEMTERM_TEST_KEY", "from-env")
	cfg, err := Load(write(t, "config.yaml", strings.Replace(validYAML, "abc123", "${GEMTERM_TEST_KEY}", 1)))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".gemterm", "config.yaml"), DefaultPath())

	_, err := Load("")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"bad.yaml": "api_key: [unterminated\n",
		"bad.toml": "api_key = \n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, name, body))
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Contains(t, pe.Path, name)
		})
	}
}

func TestLoadMissingField(t *testing.T) {
	sections := map[string]string{
		"api_key":           "api_key: abc123\n",
		"model":             "model: gemini-1.5-flash\n",
		"safety_settings":   "safety_settings: []\n",
		"generation_config": "generation_config:\n  temperature: 0.1\n",
	}
	for _, field := range Required {
		t.Run(field, func(t *testing.T) {
			var b strings.Builder
			for _, key := range Required {
				if key != field {
					b.WriteString(sections[key])
				}
			}
			_, err := Load(write(t, "config.yaml", b.String()))
			var mf *MissingFieldError
			require.True(t, errors.As(err, &mf), "got %v", err)
			assert.Equal(t, field, mf.Field)
		})
	}
}

func TestLoadPlaceholderKey(t *testing.T) {
	_, err := Load(write(t, "config.yaml", strings.Replace(validYAML, "abc123", PlaceholderKey, 1)))
	assert.True(t, errors.Is(err, ErrPlaceholderKey))
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	for name, extra := range map[string]string{
		"provider": "provider: claude\n",
		"engine":   "render:\n  engine: html\n",
		"color":    "render:\n  color: sometimes\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, "config.yaml", validYAML+extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unknown")
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, "markup", cfg.Render.Engine)
	assert.Empty(t, cfg.APIKey)
}
