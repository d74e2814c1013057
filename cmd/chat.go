package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/gemterm/gemterm/internal/config"
	"github.com/gemterm/gemterm/internal/engine"
	"github.com/gemterm/gemterm/internal/provider"
	"github.com/gemterm/gemterm/internal/session"
	"github.com/gemterm/gemterm/internal/system"
)

var (
	sInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	sErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	sOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	sWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	sPrompt  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	sFaint   = lipgloss.NewStyle().Faint(true)
	sHint    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sHintSel = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	sBar     = lipgloss.NewStyle().Faint(true)
	sLogo    = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	sDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func banner(modelName string, sess *session.Session) string {
	logo := sLogo.Render(`
  ┏━╸┏━╸┏┳┓╺┳╸┏━╸┏━┓┏┳┓
  ┃╺┓┣╸ ┃┃┃ ┃ ┣╸ ┣┳┛┃┃┃
  ┗━┛┗━╸╹ ╹ ╹ ┗━╸╹┗╸╹ ╹`)

	line := "  Model: " + modelName
	if sess != nil {
		line += " │ Session: " + sess.ID
	} else {
		line += " │ Image mode"
	}
	info := sInfo.Render(line)
	hints := sDim.Render("  /help commands │ /quit exit │ ↑↓ history │ Tab complete")

	return logo + "\n\n" + info + "\n" + hints
}

// stage is what the next line of input answers.
type stage int

const (
	stageText stage = iota
	stageImagePath
	stageImageQuery
)

func (s stage) prompt() string {
	switch s {
	case stageImagePath:
		return "image> "
	case stageImageQuery:
		return "query> "
	}
	return "> "
}

type replyMsg struct {
	res   provider.Result
	image bool
}

// remoteError ends the chat loop with a non-zero exit status.
type remoteError struct {
	res provider.Result
}

func (e remoteError) Error() string {
	return strings.TrimPrefix(e.res.Message(), "Error: ")
}

// --- input history persistence ---

const maxHistory = 500

func historyPath() string {
	return filepath.Join(config.Dir(), "history")
}

func loadHistory() []string {
	f, err := os.Open(historyPath())
	if err != nil {
		return nil
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > maxHistory {
		lines = lines[len(lines)-maxHistory:]
	}
	return lines
}

func saveHistory(hist []string) {
	if len(hist) > maxHistory {
		hist = hist[len(hist)-maxHistory:]
	}
	if err := os.MkdirAll(config.Dir(), 0o755); err != nil {
		return
	}
	f, err := os.Create(historyPath())
	if err != nil {
		return
	}
	defer f.Close()
	for _, line := range hist {
		fmt.Fprintln(f, line)
	}
}

// --- completions ---

var slashCommands = []string{"/help", "/clear", "/model", "/save", "/quit", "/exit"}

var knownModels = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
}

// matchCandidates ranks cands against pattern, best match first. An exact
// match is left out since there is nothing to complete.
func matchCandidates(pattern string, cands []string) []string {
	if pattern == "" {
		return cands
	}
	var out []string
	for _, match := range fuzzy.Find(pattern, cands) {
		if match.Str != pattern {
			out = append(out, match.Str)
		}
	}
	return out
}

func (m *model) modelCandidates() []string {
	out := []string{"list", m.eng.Model}
	for _, name := range knownModels {
		if name != m.eng.Model {
			out = append(out, name)
		}
	}
	return out
}

func (m *model) completions() []string {
	val := m.input.Value()
	if !strings.HasPrefix(val, "/") {
		return nil
	}
	parts := strings.Fields(val)
	if len(parts) == 1 && !strings.HasSuffix(val, " ") {
		return matchCandidates(parts[0], slashCommands)
	}
	if len(parts) >= 1 && parts[0] == "/model" {
		arg := ""
		if len(parts) >= 2 {
			arg = parts[1]
		}
		return matchCandidates(arg, m.modelCandidates())
	}
	return nil
}

// isCommand reports whether input is a slash command. While asking for an
// image path only the known commands count, so absolute paths get through.
func (m *model) isCommand(input string) bool {
	if !strings.HasPrefix(input, "/") {
		return false
	}
	if m.stage != stageImagePath {
		return true
	}
	name := strings.Fields(input)[0]
	for _, c := range slashCommands {
		if c == name {
			return true
		}
	}
	return false
}

func (m *model) applyCompletion() {
	comps := m.completions()
	if len(comps) == 0 {
		return
	}
	sel := comps[m.compIdx%len(comps)]
	val := m.input.Value()
	parts := strings.Fields(val)
	if len(parts) == 1 && !strings.HasSuffix(val, " ") {
		m.input.SetValue(sel + " ")
	} else {
		m.input.SetValue(parts[0] + " " + sel)
	}
	m.input.CursorEnd()
	m.compIdx = 0
}

// --- model ---

type model struct {
	eng     *engine.Engine
	sess    *session.Session
	render  renderer
	color   bool
	input   textinput.Model
	spinner spinner.Model
	width   int
	waiting bool
	compIdx int
	stage   stage
	image   *provider.Image
	fatal   error
	// input history
	inputHist []string
	histIdx   int
	histBuf   string
}

func initialModel(eng *engine.Engine, r renderer, sess *session.Session, imageMode bool) model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	ti.Cursor.TextStyle = lipgloss.NewStyle()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		eng: eng, sess: sess, render: r, color: true,
		input: ti, spinner: sp, width: termWidth(),
		histIdx: -1, inputHist: loadHistory(),
	}
	if imageMode {
		m.stage = stageImagePath
	}
	return m
}

// println prints s above the managed view, stripped of escapes when
// color is off.
func (m *model) println(s string) tea.Cmd {
	return tea.Println(paint(s, m.color))
}

func (m *model) statusBar() string {
	if comps := m.completions(); len(comps) > 0 {
		var hints []string
		for i, c := range comps {
			if i == m.compIdx%len(comps) {
				hints = append(hints, sHintSel.Render(c))
			} else {
				hints = append(hints, sHint.Render(c))
			}
		}
		return sHint.Render("Tab: ") + strings.Join(hints, sHint.Render("  "))
	}
	switch m.stage {
	case stageImagePath:
		return sBar.Render("path to the image ('clip' or Enter reads the clipboard)")
	case stageImageQuery:
		return sBar.Render("what do you want to know about the image?")
	}
	bar := m.eng.Model
	if m.sess != nil {
		bar += " │ " + m.sess.ID
	}
	return sBar.Render(bar)
}

func setIBeamCursor() tea.Msg {
	// \033[6 q = steady I-beam terminal cursor
	fmt.Print("\033[6 q")
	return nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.input.Cursor.SetMode(cursor.CursorStatic),
		m.spinner.Tick,
		setIBeamCursor,
		m.println(banner(m.eng.Model, m.sess)),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			saveHistory(m.inputHist)
			return m, tea.Quit
		}
		if m.waiting {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyUp:
			if len(m.inputHist) > 0 {
				if m.histIdx == -1 {
					m.histBuf = m.input.Value()
					m.histIdx = len(m.inputHist) - 1
				} else if m.histIdx > 0 {
					m.histIdx--
				}
				m.input.SetValue(m.inputHist[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil
		case tea.KeyDown:
			if m.histIdx != -1 {
				if m.histIdx < len(m.inputHist)-1 {
					m.histIdx++
					m.input.SetValue(m.inputHist[m.histIdx])
				} else {
					m.histIdx = -1
					m.input.SetValue(m.histBuf)
				}
				m.input.CursorEnd()
			}
			return m, nil
		case tea.KeyTab:
			comps := m.completions()
			if len(comps) > 0 {
				m.compIdx = (m.compIdx + 1) % len(comps)
				m.applyCompletion()
			}
			return m, nil
		case tea.KeyShiftTab:
			comps := m.completions()
			if len(comps) > 0 {
				m.compIdx = (m.compIdx - 1 + len(comps)) % len(comps)
				m.applyCompletion()
			}
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			m.compIdx = 0
			m.histIdx = -1
			m.histBuf = ""
			if input != "" {
				m.inputHist = append(m.inputHist, input)
			}
			if m.isCommand(input) {
				result, quit := m.handleCommand(input)
				if quit {
					saveHistory(m.inputHist)
					return m, tea.Quit
				}
				if result != "" {
					return m, m.println(result)
				}
				return m, nil
			}
			return m.submit(input)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case replyMsg:
		m.waiting = false
		if msg.image {
			m.stage = stageImagePath
			m.image = nil
		}
		out, err := m.dispatch(msg.res)
		if err != nil {
			m.fatal = err
			saveHistory(m.inputHist)
			return m, tea.Quit
		}
		if msg.res.Kind == provider.Ok && !msg.image {
			m.autosave()
		}
		return m, m.println(out)
	}

	prev := m.input.Value()
	if !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.input.Value() != prev {
		m.compIdx = 0
	}

	return m, tea.Batch(cmds...)
}

// submit handles a non-command line according to the current stage.
func (m model) submit(input string) (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageImagePath:
		path := resolveImagePath(input)
		img, err := loadImage(path)
		if err != nil {
			system.Logger.Debug("image rejected", "path", path, "err", err)
			if path == "" || errors.Is(err, fs.ErrNotExist) {
				return m, m.println(sErr.Render(fmt.Sprintf("Error: Couldn't find the image '%s'.", path)) + "\nTry again.\n")
			}
			return m, m.println(sErr.Render(fmt.Sprintf("Error: Couldn't read the image '%s': %v", path, err)) + "\nTry again.\n")
		}
		m.image = img
		m.stage = stageImageQuery
		return m, m.println(sInfo.Render(fmt.Sprintf("🖼  %s (%s, %d bytes)", path, img.MIMEType, len(img.Data))))
	case stageImageQuery:
		if input == "" {
			return m, nil
		}
	default:
		if input == "" {
			return m, nil
		}
	}
	m.waiting = true
	return m, tea.Batch(m.println(sPrompt.Render("▶ ")+input), m.sendCmd(input))
}

// dispatch turns a reply into the text printed above the input. A fatal
// result comes back as an error instead.
func (m *model) dispatch(res provider.Result) (string, error) {
	sep := separator(m.width)
	switch {
	case res.Kind == provider.Ok:
		out, err := m.render.Render(res.Text)
		if err != nil {
			system.Logger.Warn("render failed, printing raw reply", "err", err)
			out = res.Text
		}
		return strings.TrimRight(out, "\n") + "\n" + sep, nil
	case res.Kind == provider.Refused:
		out := sWarn.Render(res.Message())
		if fb := res.Feedback.String(); fb != "" {
			out += "\n" + sFaint.Render(fb)
		}
		return out + "\n" + sep, nil
	case res.Kind.Fatal():
		return "", remoteError{res}
	}
	return sErr.Render("✘ " + res.Message()), nil
}

func (m *model) autosave() {
	if m.sess == nil {
		return
	}
	m.sess.Model = m.eng.Model
	m.sess.Messages = m.eng.Messages
	if err := m.sess.Save(); err != nil {
		system.Logger.Warn("session not saved", "id", m.sess.ID, "err", err)
	}
}

// wrapInput renders the textinput value with soft-wrap and a cursor.
func (m *model) wrapInput() string {
	label := m.stage.prompt()
	prompt := sPrompt.Render(label)
	promptW := runewidth.StringWidth(label)
	contentW := m.width - promptW
	if contentW < 1 {
		contentW = 1
	}

	val := m.input.Value()
	pos := m.input.Position()
	runes := []rune(val)

	// Insert a cursor marker
	const cur = "\x00"
	var buf strings.Builder
	for i, r := range runes {
		if i == pos {
			buf.WriteString(cur)
		}
		buf.WriteRune(r)
	}
	if pos >= len(runes) {
		buf.WriteString(cur)
	}

	// Split into visual lines by display width
	textRunes := []rune(buf.String())
	var lines []string
	for len(textRunes) > 0 {
		w := 0
		end := 0
		for end < len(textRunes) {
			r := textRunes[end]
			rw := 0
			if r != '\x00' {
				rw = runewidth.RuneWidth(r)
			}
			if w+rw > contentW && w > 0 {
				break
			}
			w += rw
			end++
		}
		if end == 0 {
			end = 1
		}
		lines = append(lines, string(textRunes[:end]))
		textRunes = textRunes[end:]
	}
	if len(lines) == 0 {
		lines = []string{cur}
	}

	curStyle := lipgloss.NewStyle().Reverse(true)
	indent := strings.Repeat(" ", promptW)
	var out strings.Builder
	for i, line := range lines {
		pfx := indent
		if i == 0 {
			pfx = prompt
		}
		if strings.Contains(line, cur) {
			parts := strings.SplitN(line, cur, 2)
			ch := " "
			rest := parts[1]
			if len(rest) > 0 {
				r := []rune(rest)
				ch = string(r[0])
				rest = string(r[1:])
			}
			line = parts[0] + curStyle.Render(ch) + rest
		}
		out.WriteString(pfx + line)
		if i < len(lines)-1 {
			out.WriteString("\n")
		}
	}
	return out.String()
}

func (m model) View() string {
	if m.waiting {
		return m.spinner.View() + sFaint.Render(" thinking...")
	}
	return m.wrapInput() + "\n" + m.statusBar()
}

// --- send to the model ---

func (m *model) sendCmd(input string) tea.Cmd {
	eng, img := m.eng, m.image
	return func() tea.Msg {
		ctx := context.Background()
		if img != nil {
			return replyMsg{res: eng.SendImage(ctx, input, img), image: true}
		}
		return replyMsg{res: eng.Send(ctx, input)}
	}
}

// --- slash commands ---

func (m *model) handleCommand(input string) (string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case "/quit", "/exit":
		return "", true
	case "/clear":
		m.eng.Clear()
		if m.sess != nil {
			m.sess.Messages = nil
		}
		return sOK.Render("✔ Conversation cleared"), false
	case "/help":
		return sFaint.Render(`Commands:
  /model list          List models
  /model <name>        Switch model
  /save                Save the conversation now
  /clear               Clear conversation
  /quit                Exit

Keys:
  ↑/↓                  Input history
  Tab/Shift+Tab        Autocomplete
  Ctrl+C               Exit`), false
	case "/save":
		if m.sess == nil {
			return sErr.Render("✘ Image questions are not saved"), false
		}
		m.autosave()
		return sOK.Render("✔ Saved session " + m.sess.ID), false
	case "/model":
		if len(parts) < 2 {
			return sInfo.Render("Model: " + m.eng.Model), false
		}
		if parts[1] == "list" {
			var out []string
			for _, mod := range m.modelCandidates()[1:] {
				if mod == m.eng.Model {
					out = append(out, sOK.Render("▶ ")+mod)
				} else {
					out = append(out, "  "+mod)
				}
			}
			return strings.Join(out, "\n"), false
		}
		m.eng.SwitchModel(parts[1])
		return sOK.Render("✔ Model: " + m.eng.Model), false
	default:
		return sErr.Render("Unknown command: " + cmd + " (type /help)"), false
	}
}

// --- entry ---

func runChat(imageMode bool, resume string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	r, err := buildRenderer(cfg.Render, termWidth())
	if err != nil {
		return err
	}
	eng := engine.New(buildProvider(cfg), cfg.Model, cfg.SafetySettings, cfg.GenerationConfig)

	var sess *session.Session
	switch {
	case imageMode:
		if resume != "" {
			system.Logger.Warn("--session is ignored in image mode")
		}
	case resume != "":
		sess, err = session.Load(resume)
		if err != nil {
			return err
		}
		eng.Messages = sess.Messages
		if sess.Model != "" {
			eng.SwitchModel(sess.Model)
		}
	default:
		if n := session.Cleanup(); n > 0 {
			system.Logger.Debug("removed stale sessions", "count", n)
		}
		sess = session.New(session.NewID(), cfg.Model)
	}

	m := initialModel(eng, r, sess, imageMode)
	m.color = colorEnabled(cfg.Render.Color, os.Stdout)
	p := tea.NewProgram(m)
	final, err := p.Run()
	fmt.Print("\033[0 q") // restore default cursor
	if err != nil {
		return err
	}
	if fm, ok := final.(model); ok && fm.fatal != nil {
		return fm.fatal
	}
	return nil
}

func buildProvider(cfg *config.Config) provider.Provider {
	client := &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}
	dbg := provider.DebugFunc(system.Logger.Debugf)
	switch cfg.Provider {
	case "openai":
		return &provider.OpenAI{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Client: client, Retries: cfg.Retries, Debug: dbg}
	default:
		return &provider.Gemini{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Client: client, Retries: cfg.Retries, Debug: dbg}
	}
}
