package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/gemterm/gemterm/internal/config"
	"github.com/gemterm/gemterm/internal/markup"
	"github.com/gemterm/gemterm/internal/provider"
	"github.com/gemterm/gemterm/internal/system"
)

// renderer turns a markdown-flavored reply into terminal text.
type renderer interface {
	Render(text string) (string, error)
}

type markupRenderer struct {
	t *markup.Transformer
}

func (r markupRenderer) Render(text string) (string, error) {
	return r.t.Render(text), nil
}

func buildRenderer(rc config.RenderConf, width int) (renderer, error) {
	switch rc.Engine {
	case "glamour":
		wrap := rc.Width
		if wrap <= 0 {
			wrap = width
		}
		style := glamour.WithAutoStyle()
		if rc.GlamourStyle != "" && rc.GlamourStyle != "auto" {
			style = glamour.WithStandardStyle(rc.GlamourStyle)
		}
		r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
		if err != nil {
			return nil, fmt.Errorf("glamour: %w", err)
		}
		return r, nil
	case "", "markup":
		set, err := markup.ParseRuleSet(rc.Rules)
		if err != nil {
			return nil, err
		}
		subst, err := markup.ParseSubstitution(rc.Substitution)
		if err != nil {
			return nil, err
		}
		if subst == markup.Literal {
			system.Logger.Debug("literal substitution enabled; repeated phrases are rewritten everywhere")
		}
		return markupRenderer{markup.New(
			markup.WithRuleSet(set),
			markup.WithSubstitution(subst),
			markup.WithBody(rc.Body...),
		)}, nil
	}
	return nil, fmt.Errorf("unknown render engine %q", rc.Engine)
}

// colorEnabled decides whether escapes reach w. "auto" defers to termenv,
// which reports Ascii for pipes and when NO_COLOR is set.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	return termenv.NewOutput(w).EnvColorProfile() != termenv.Ascii
}

// paint passes s through unchanged when color is on and strips every
// escape sequence otherwise.
func paint(s string, color bool) string {
	if color {
		return s
	}
	return xansi.Strip(s)
}

func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func stdinIsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// separator is the rule printed after every reply.
func separator(width int) string {
	if width > 120 {
		width = 120
	}
	if width < 1 {
		width = 1
	}
	return sDim.Render(strings.Repeat("─", width))
}

var readClipboard = clipboard.ReadAll

// resolveImagePath maps an answer to the image prompt to a file path.
// "clip" and an empty answer take the path from the clipboard.
func resolveImagePath(answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "clip" || answer == "" {
		clip, err := readClipboard()
		if err != nil {
			system.Logger.Debug("clipboard read failed", "err", err)
			return ""
		}
		answer = strings.TrimSpace(clip)
	}
	answer = strings.Trim(answer, `"'`)
	if rest, ok := strings.CutPrefix(answer, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			answer = filepath.Join(home, rest)
		}
	}
	return answer
}

func loadImage(path string) (*provider.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("no image path given")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	return &provider.Image{MIMEType: mime, Data: data}, nil
}
