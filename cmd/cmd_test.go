package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemterm/gemterm/internal/config"
	"github.com/gemterm/gemterm/internal/engine"
	"github.com/gemterm/gemterm/internal/markup"
	"github.com/gemterm/gemterm/internal/provider"
	"github.com/gemterm/gemterm/internal/session"
)

func testModel(t *testing.T) *model {
	t.Helper()
	eng := engine.New(nil, "gemini-1.5-flash", nil, provider.GenerationConfig{})
	return &model{
		eng:    eng,
		sess:   session.New("abcd1234", eng.Model),
		render: markupRenderer{markup.New()},
		color:  true,
		input:  textinput.New(),
		width:  40,
	}
}

func TestRootRejectsArguments(t *testing.T) {
	err := rootCmd.Args(rootCmd, []string{"--imagee"})
	require.Error(t, err)
	assert.Equal(t, "unknown argument: --imagee", err.Error())
	assert.NoError(t, rootCmd.Args(rootCmd, nil))
}

func TestBuildRenderer(t *testing.T) {
	r, err := buildRenderer(config.RenderConf{Engine: "markup"}, 80)
	require.NoError(t, err)
	out, err := r.Render("**hi**")
	require.NoError(t, err)
	assert.Equal(t, "hi", xansi.Strip(out))
	assert.NotEqual(t, "hi", out)

	r, err = buildRenderer(config.RenderConf{Engine: "glamour", GlamourStyle: "notty"}, 80)
	require.NoError(t, err)
	out, err = r.Render("# Title")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")

	_, err = buildRenderer(config.RenderConf{Rules: "fancy"}, 80)
	assert.Error(t, err)
	_, err = buildRenderer(config.RenderConf{Substitution: "regex"}, 80)
	assert.Error(t, err)
	_, err = buildRenderer(config.RenderConf{Engine: "html"}, 80)
	assert.Error(t, err)
}

func TestPaintAndColorMode(t *testing.T) {
	styled := markup.New().Render("Visit https://example.com now")
	assert.Equal(t, styled, paint(styled, true))
	assert.Equal(t, "Visit https://example.com now", paint(styled, false))

	var buf bytes.Buffer
	assert.True(t, colorEnabled("always", &buf))
	assert.False(t, colorEnabled("never", &buf))
	assert.False(t, colorEnabled("auto", &buf), "a buffer is not a terminal")
}

func TestSeparatorWidth(t *testing.T) {
	assert.Equal(t, 10, xansi.StringWidth(separator(10)))
	assert.Equal(t, 120, xansi.StringWidth(separator(500)))
	assert.Equal(t, 1, xansi.StringWidth(separator(0)))
}

func TestResolveImagePath(t *testing.T) {
	orig := readClipboard
	t.Cleanup(func() { readClipboard = orig })
	readClipboard = func() (string, error) { return "  /tmp/cat.png\n", nil }

	assert.Equal(t, "/tmp/cat.png", resolveImagePath(""))
	assert.Equal(t, "/tmp/cat.png", resolveImagePath("clip"))
	assert.Equal(t, "/tmp/dog.jpg", resolveImagePath(`"/tmp/dog.jpg"`))

	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, "a.png"), resolveImagePath("~/a.png"))

	readClipboard = func() (string, error) { return "", errors.New("no clipboard") }
	assert.Equal(t, "", resolveImagePath("clip"))
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "x.png")
	require.NoError(t, os.WriteFile(png, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...), 0o644))
	img, err := loadImage(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	txt := filepath.Join(dir, "x.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	_, err = loadImage(txt)
	assert.ErrorContains(t, err, "not an image")

	_, err = loadImage(filepath.Join(dir, "missing.png"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = loadImage("")
	assert.Error(t, err)
}

func TestDispatch(t *testing.T) {
	m := testModel(t)

	out, err := m.dispatch(provider.OK("**bold** reply\n"))
	require.NoError(t, err)
	lines := strings.Split(xansi.Strip(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "bold reply", lines[0])
	assert.Equal(t, strings.Repeat("─", 40), lines[1])

	out, err = m.dispatch(provider.Refusal(provider.Feedback{
		FinishReason:  "SAFETY",
		SafetyRatings: []provider.SafetyRating{{Category: "HARM_CATEGORY_HARASSMENT", Probability: "HIGH", Blocked: true}},
	}))
	require.NoError(t, err)
	plain := xansi.Strip(out)
	assert.Contains(t, plain, "withheld")
	assert.Contains(t, plain, "finish reason: SAFETY")
	assert.Contains(t, plain, "HARM_CATEGORY_HARASSMENT: HIGH (blocked)")

	out, err = m.dispatch(provider.Failure(504, errors.New("slow")))
	require.NoError(t, err)
	assert.Contains(t, xansi.Strip(out), "timed out")

	_, err = m.dispatch(provider.Failure(429, errors.New("RESOURCE_EXHAUSTED: quota")))
	var re remoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, provider.QuotaExceeded, re.res.Kind)
	assert.False(t, strings.HasPrefix(err.Error(), "Error:"))
}

func TestHandleCommand(t *testing.T) {
	m := testModel(t)
	m.eng.Messages = []provider.Message{provider.TextMessage(provider.RoleUser, "x")}

	out, quit := m.handleCommand("/clear")
	assert.False(t, quit)
	assert.Contains(t, out, "cleared")
	assert.Empty(t, m.eng.Messages)

	out, _ = m.handleCommand("/model gemini-1.5-pro")
	assert.Contains(t, out, "gemini-1.5-pro")
	assert.Equal(t, "gemini-1.5-pro", m.eng.Model)

	out, _ = m.handleCommand("/model list")
	assert.Contains(t, xansi.Strip(out), "▶ gemini-1.5-pro")

	out, _ = m.handleCommand("/nope")
	assert.Contains(t, out, "Unknown command")

	_, quit = m.handleCommand("/exit")
	assert.True(t, quit)

	m.sess = nil
	out, _ = m.handleCommand("/save")
	assert.Contains(t, out, "not saved")
}

func TestSaveCommandWritesSession(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	m := testModel(t)
	m.eng.Messages = []provider.Message{
		provider.TextMessage(provider.RoleUser, "q"),
		provider.TextMessage(provider.RoleModel, "a"),
	}
	_, _ = m.handleCommand("/save")

	s, err := session.Load("abcd1234")
	require.NoError(t, err)
	assert.Len(t, s.Messages, 2)
}

func TestCompletions(t *testing.T) {
	m := testModel(t)
	m.input.SetValue("/mo")
	assert.Equal(t, []string{"/model"}, m.completions())

	m.input.SetValue("/model ")
	comps := m.completions()
	require.NotEmpty(t, comps)
	assert.Equal(t, "list", comps[0])

	m.input.SetValue("hello")
	assert.Nil(t, m.completions())

	assert.Equal(t, []string{"/help"}, matchCandidates("/hlp", slashCommands))
}

func TestIsCommandInImageStage(t *testing.T) {
	m := testModel(t)
	assert.True(t, m.isCommand("/whatever"))

	m.stage = stageImagePath
	assert.False(t, m.isCommand("/home/me/cat.png"))
	assert.True(t, m.isCommand("/quit"))
	assert.False(t, m.isCommand("cat.png"))
}

func TestConfigTemplateLoads(t *testing.T) {
	dir := t.TempDir()

	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(configTemplate("real-key", "gemini-2.0-flash")), 0o600))
	cfg, err := config.Load(p)
	require.NoError(t, err)
	assert.Equal(t, "real-key", cfg.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Len(t, cfg.SafetySettings, 4)
	assert.Equal(t, 64, *cfg.GenerationConfig.TopK)

	require.NoError(t, os.WriteFile(p, []byte(configTemplate("", "")), 0o600))
	_, err = config.Load(p)
	assert.True(t, errors.Is(err, config.ErrPlaceholderKey))
}

func TestRenderToAndFallbackConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	configPath = ""
	cfg, err := renderConfig()
	require.NoError(t, err)
	assert.Equal(t, "markup", cfg.Render.Engine)

	var out bytes.Buffer
	require.NoError(t, renderTo(&out, strings.NewReader("# Title\n* item"), cfg.Render, false))
	assert.Equal(t, "Title\n• item", out.String())
}

func TestInitThemeUsesAccentBorder(t *testing.T) {
	theme := initTheme()
	assert.Equal(t, accent, theme.Focused.Base.GetBorderLeftForeground())
	assert.Equal(t, accent, theme.Focused.Title.GetForeground())
}
