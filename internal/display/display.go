// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] renders the current page, the voice status line and the
// consent and language prompts above an input prompt. Spoken feedback and
// echoed input are printed into the scrollback via Program.Println, so
// concurrent writes never garble the display. UI implements
// domain.Presenter: the theme changes the palette of everything it draws.
package display

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/engine"
	"github.com/hammamikhairi/voicepay/internal/site"
)

// ── Palette ──────────────────────────────────────────────────────

// Palette is the presentation of a theme. Light sets the "light" marker
// and explicit colours; dark clears the overrides and uses the terminal's
// own colours.
type Palette struct {
	Class      string
	Background string
	Foreground string
}

// PaletteFor returns the palette for t.
func PaletteFor(t domain.Theme) Palette {
	if t == domain.ThemeLight {
		return Palette{Class: "light", Background: "#ffffff", Foreground: "#000000"}
	}
	return Palette{}
}

func (p Palette) base() lipgloss.Style {
	s := lipgloss.NewStyle()
	if p.Background != "" {
		s = s.Background(lipgloss.Color(p.Background))
	}
	if p.Foreground != "" {
		s = s.Foreground(lipgloss.Color(p.Foreground))
	}
	return s
}

func (p Palette) accent() lipgloss.Style {
	if p.Class == "light" {
		return p.base().Foreground(lipgloss.Color("#1d4ed8"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
}

func (p Palette) muted() lipgloss.Style {
	if p.Class == "light" {
		return p.base().Foreground(lipgloss.Color("#52525b"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#71717a"))
}

func (p Palette) alert() lipgloss.Style {
	if p.Class == "light" {
		return p.base().Foreground(lipgloss.Color("#b91c1c"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#fca5a5"))
}

// ── Scrollback styles ────────────────────────────────────────────

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// Spoken feedback: soft sky blue.
	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))

	userInputEchoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#a1a1aa"))
)

// ── UI ───────────────────────────────────────────────────────────

// ViewState is everything the UI draws besides the theme.
type ViewState struct {
	Session engine.Snapshot
	Route   domain.Route
	Page    domain.Page
	Reading bool
}

// LanguageOption is one entry of the language picker.
type LanguageOption struct {
	Code domain.Language
	Name string
}

var _ domain.Presenter = (*UI)(nil)

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking). Other goroutines may call
// [UI.Render], [UI.ApplyTheme], the print helpers, and read
// [UI.Commands] at any time.
type UI struct {
	program   *tea.Program
	cmdCh     chan Command
	readyCh   chan struct{}
	quitCh    chan struct{}
	done      atomic.Bool
	languages []LanguageOption

	mu    sync.Mutex
	theme domain.Theme
	state ViewState
}

// NewUI creates the display. Call Run() to start.
func NewUI(languages []LanguageOption) *UI {
	return &UI{
		cmdCh:     make(chan Command, 16),
		readyCh:   make(chan struct{}),
		quitCh:    make(chan struct{}),
		languages: languages,
		theme:     domain.ThemeDark,
		state:     ViewState{Route: domain.RouteHome, Page: site.Pages[0]},
	}
}

// Commands returns parsed user input.
func (u *UI) Commands() <-chan Command { return u.cmdCh }

// ApplyTheme switches the palette. Thread-safe.
func (u *UI) ApplyTheme(t domain.Theme) {
	u.mu.Lock()
	u.theme = t
	u.mu.Unlock()
	u.send(themeMsg(t))
}

// Render replaces the drawn state. Thread-safe.
func (u *UI) Render(s ViewState) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
	u.send(stateMsg(s))
}

func (u *UI) latest() (domain.Theme, ViewState) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.theme, u.state
}

// send delivers msg once the program is running. Earlier updates are
// picked up from latest when the program signals ready.
func (u *UI) send(msg tea.Msg) {
	select {
	case <-u.readyCh:
	default:
		return
	}
	if u.program == nil || u.done.Load() {
		return
	}
	u.program.Send(msg)
}

// Println prints a line above the prompt. Thread-safe.
func (u *UI) Println(a ...interface{}) {
	if u.program != nil && !u.done.Load() {
		u.program.Println(a...)
	} else {
		fmt.Println(a...)
	}
}

// PrintSpoken prints a line of spoken feedback.
func (u *UI) PrintSpoken(text string) {
	if text == "" {
		return
	}
	u.Println(chatStyle.Render("  " + text))
}

// PrintHint prints a secondary/dimmed line.
func (u *UI) PrintHint(text string) {
	u.Println(secondaryStyle.Render("  " + text))
}

// PrintUrgent prints an error line.
func (u *UI) PrintUrgent(text string) {
	u.Println(urgentOutputStyle.Render("  " + text))
}

// PrintUserInput echoes the user's typed line into the scrollback.
func (u *UI) PrintUserInput(text string) {
	u.Println(promptStyle.Render("voicepay") + secondaryStyle.Render("> ") + userInputEchoStyle.Render(text))
}

// WaitReady blocks until the Bubble Tea event loop is running.
func (u *UI) WaitReady() { <-u.readyCh }

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// QuitChan is closed when Run returns.
func (u *UI) QuitChan() <-chan struct{} { return u.quitCh }

// Run starts the Bubble Tea event loop. Blocks until quit.
func (u *UI) Run() error {
	theme, state := u.latest()
	m := newModel(u.languages, theme, state)
	m.cmdCh = u.cmdCh
	m.readyCh = u.readyCh
	m.pull = u.latest
	m.echoFn = u.PrintUserInput
	m.hintFn = u.PrintHint

	u.program = tea.NewProgram(m)
	_, err := u.program.Run()
	u.done.Store(true)
	close(u.quitCh)
	return err
}

// ── Bubble Tea model ─────────────────────────────────────────────

type model struct {
	input     textinput.Model
	cmdCh     chan<- Command
	readyCh   chan struct{}
	pull      func() (domain.Theme, ViewState)
	echoFn    func(string)
	hintFn    func(string)
	languages []LanguageOption

	theme domain.Theme
	state ViewState
	width int
}

// Messages.
type (
	themeMsg domain.Theme
	stateMsg ViewState
	readyMsg struct{}
)

func newModel(languages []LanguageOption, theme domain.Theme, state ViewState) model {
	ti := textinput.New()
	// Plain-text prompt keeps the textinput width math correct.
	ti.Prompt = "voicepay> "
	ti.PromptStyle = promptStyle
	ti.TextStyle = userInputEchoStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	ti.Focus()
	ti.CharLimit = domain.MaxTranscriptLen
	ti.Width = 60

	return model{
		input:     ti,
		languages: languages,
		theme:     theme,
		state:     state,
		echoFn:    func(string) {},
		hintFn:    func(string) {},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		signalReady(m.readyCh),
	)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if ch != nil {
			close(ch)
		}
		return readyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyCtrlT:
			m.emit(Command{Kind: CmdTheme})
			return m, nil
		case tea.KeyCtrlR:
			m.emit(Command{Kind: CmdRead})
			return m, nil
		case tea.KeyEnter:
			v := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(v) == "" {
				return m, nil
			}
			cmd, ok := ParseCommand(v, m.state.Session)
			echoFn, hintFn := m.echoFn, m.hintFn
			if !ok {
				return m, func() tea.Msg {
					echoFn(v)
					hintFn("unknown command. " + HelpText)
					return nil
				}
			}
			if cmd.Kind == CmdQuit {
				return m, tea.Quit
			}
			m.emit(cmd)
			// Print outside Update so it won't deadlock on msgs.
			return m, func() tea.Msg {
				echoFn(v)
				return nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if promptLen := len(m.input.Prompt); msg.Width > promptLen {
			m.input.Width = msg.Width - promptLen
		}
		return m, nil

	case readyMsg:
		if m.pull != nil {
			m.theme, m.state = m.pull()
		}
		return m, tea.SetWindowTitle(m.title())

	case themeMsg:
		m.theme = domain.Theme(msg)
		return m, nil

	case stateMsg:
		m.state = ViewState(msg)
		return m, tea.SetWindowTitle(m.title())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// emit hands cmd to the application without blocking the UI loop.
func (m model) emit(cmd Command) {
	if m.cmdCh == nil {
		return
	}
	select {
	case m.cmdCh <- cmd:
	default:
	}
}

func (m model) title() string {
	return "VoicePay — " + m.state.Page.Name
}

func (m model) View() string {
	p := PaletteFor(m.theme)
	w := m.width
	if w <= 0 {
		w = 80
	}

	var b strings.Builder
	b.WriteString(m.renderNav(p))
	b.WriteByte('\n')
	b.WriteString(m.renderStatus(p))
	b.WriteString("\n\n")
	b.WriteString(m.renderPage(p, w))

	if prompt := m.renderPrompts(p); prompt != "" {
		b.WriteString("\n\n")
		b.WriteString(prompt)
	}
	if t := m.state.Session.Transcript; t != "" {
		b.WriteString("\n\n")
		b.WriteString(p.muted().Render("heard: ") + p.base().Render(t))
	}

	body := p.base().Width(w).Render(b.String())
	return body + "\n\n" + m.input.View()
}

func (m model) renderNav(p Palette) string {
	parts := []string{p.accent().Bold(true).Render("VoicePay")}
	for _, page := range site.Pages {
		style := p.muted()
		if page.Path == m.state.Route {
			style = p.accent().Bold(true).Underline(true)
		}
		parts = append(parts, style.Render(page.Name))
	}
	return strings.Join(parts, p.muted().Render("  ·  "))
}

func (m model) renderStatus(p Palette) string {
	s := m.state.Session
	var parts []string

	switch {
	case !s.Consent:
		parts = append(parts, p.muted().Render("voice off"))
	case s.Recognition == domain.RecognitionError:
		parts = append(parts, p.alert().Render("✕ recognition error"))
	case s.Config.IsEnabled && s.Config.IsListening:
		parts = append(parts, p.accent().Render("● listening · "+m.languageName(s.Config.Language)))
	case s.Config.IsEnabled:
		parts = append(parts, p.muted().Render("○ paused · "+m.languageName(s.Config.Language)))
	default:
		parts = append(parts, p.muted().Render("voice ready"))
	}

	if m.theme == domain.ThemeLight {
		parts = append(parts, p.muted().Render("☀ light"))
	} else {
		parts = append(parts, p.muted().Render("☾ dark"))
	}
	if m.state.Reading {
		parts = append(parts, p.accent().Render("▶ reading"))
	}
	return strings.Join(parts, p.muted().Render("   "))
}

func (m model) renderPage(p Palette, width int) string {
	page := m.state.Page
	if page.Path == "" {
		page = site.NotFoundPage
	}
	textWidth := width - 4
	if textWidth > 80 {
		textWidth = 80
	}
	if textWidth < 20 {
		textWidth = 20
	}
	title := p.base().Bold(true).Render(page.Title)
	content := p.base().Width(textWidth).Render(page.Content)
	return title + "\n\n" + content
}

func (m model) renderPrompts(p Palette) string {
	s := m.state.Session
	switch {
	case s.ShowConsent:
		return p.accent().Render("Enable voice navigation?") + "\n" +
			p.muted().Render("Speech is transcribed on this machine. Only your language choice is stored, obscured. (y/n)")
	case s.ShowLanguagePick:
		var opts []string
		for i, l := range m.languages {
			opts = append(opts, fmt.Sprintf("%d %s", i+1, l.Name))
		}
		return p.accent().Render("Choose a language:") + "  " + p.base().Render(strings.Join(opts, "   "))
	}
	return ""
}

func (m model) languageName(code domain.Language) string {
	for _, l := range m.languages {
		if l.Code == code {
			return l.Name
		}
	}
	return string(code)
}
