package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vox/inject"
	"vox/log"
	"vox/session"
)

// uiSink is a session.Sink that can also prompt for sign-in.
type uiSink interface {
	session.Sink
	AuthRequired()
}

type clientInfo struct {
	device string
	server string
	chord  string
	format string
}

// TUI message types
type stateMsg struct{ State session.State }
type statusMsg struct{ Status session.Status }
type authMsg struct{}
type copiedMsg struct{ err error }
type tickMsg time.Time

type tuiModel struct {
	info     clientInfo
	copyLast func() string

	state    session.State
	since    time.Time
	now      time.Time
	status   session.Status
	quota    string
	lastText string
	count    int
	copied   bool
	copyErr  error
	authHint bool
	width    int
	height   int
}

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleBusy    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleBold    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleText    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	styleTitle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	stylePadding = lipgloss.NewStyle().PaddingLeft(1)
)

func newTUIModel(info clientInfo, copyLast func() string) tuiModel {
	return tuiModel{info: info, copyLast: copyLast}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "ctrl+l":
			text := m.lastText
			if m.copyLast != nil {
				if t := m.copyLast(); t != "" {
					text = t
				}
			}
			if text == "" {
				return m, nil
			}
			return m, func() tea.Msg { return copiedMsg{err: inject.CopyText(text)} }
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()

	case stateMsg:
		m.state = msg.State
		if msg.State == session.Recording {
			m.since = time.Now()
			m.now = m.since
			m.copied = false
			m.copyErr = nil
		}

	case statusMsg:
		m.status = msg.Status
		if msg.Status.Transcript != "" {
			m.count++
			m.lastText = msg.Status.Transcript
			m.copied = false
			m.copyErr = nil
		}
		if msg.Status.Level == session.LevelSuccess {
			m.quota = msg.Status.Text
		}
		if msg.Status.Text == "signed in" {
			m.authHint = false
		}

	case authMsg:
		m.authHint = true

	case copiedMsg:
		m.copied = msg.err == nil
		m.copyErr = msg.err
		if msg.err != nil {
			log.Errorf("copy last transcript: %v", msg.err)
		}
	}
	return m, nil
}

func (m tuiModel) stateLine() string {
	switch m.state {
	case session.Recording:
		return styleRec.Render(fmt.Sprintf("● REC %.1fs", m.now.Sub(m.since).Seconds()))
	case session.Processing:
		return styleBusy.Render("◌ TRANSCRIBING")
	case session.Typing:
		return styleBusy.Render("⌨ TYPING")
	}
	return styleIdle.Render("○ READY")
}

func levelStyle(l session.Level) lipgloss.Style {
	switch l {
	case session.LevelSuccess:
		return styleOK
	case session.LevelWarning:
		return styleWarn
	case session.LevelError:
		return styleErr
	}
	return styleInfo
}

func (m tuiModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrapWidth := max(width-4, 10)

	var lines []string
	lines = append(lines, m.stateLine())
	lines = append(lines, styleInfo.Render(fmt.Sprintf("[%s | %s]", m.info.format, m.info.server)))
	lines = append(lines, styleIdle.Render("mic: "+m.info.device))
	if m.quota != "" {
		lines = append(lines, styleIdle.Render(m.quota))
	}
	if m.status.Text != "" && m.status.Level != session.LevelSuccess {
		lines = append(lines, levelStyle(m.status.Level).Render(m.status.Text))
	}
	if m.authHint {
		lines = append(lines, styleWarn.Render("run 'vox login' in another terminal"))
	}
	lines = append(lines, "")

	if m.lastText != "" {
		lines = append(lines, styleTitle.Render(fmt.Sprintf("Last transcription (#%d)", m.count)), "")
		text := wrapText(m.lastText, wrapWidth)
		for i, line := range text {
			line = styleText.Render(line)
			if i == len(text)-1 {
				switch {
				case m.copied:
					line += " " + styleOK.Render("[✓ copied]")
				case m.copyErr != nil:
					line += " " + styleErr.Render("[copy failed]")
				}
			}
			lines = append(lines, line)
		}
	} else {
		lines = append(lines, styleIdle.Render("No transcriptions yet"))
	}
	lines = append(lines, "")

	help := styleBold.Render(m.info.chord) + styleDim.Render(" to record · ") +
		styleBold.Render("ctrl+l") + styleDim.Render(" copy last · ") +
		styleBold.Render("ctrl+c") + styleDim.Render(" quit")
	lines = append(lines, help, styleDim.Render("vox "+version))

	return stylePadding.Render(strings.Join(lines, "\n"))
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Break at the last space within width, or hard-break a long word.
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// tuiProgram forwards controller output into the bubbletea event loop.
type tuiProgram struct {
	*tea.Program
}

func newTUIProgram(info clientInfo, copyLast func() string) *tuiProgram {
	return &tuiProgram{tea.NewProgram(newTUIModel(info, copyLast), tea.WithAltScreen())}
}

func (p *tuiProgram) State(s session.State)   { p.Send(stateMsg{State: s}) }
func (p *tuiProgram) Status(s session.Status) { p.Send(statusMsg{Status: s}) }
func (p *tuiProgram) AuthRequired()           { p.Send(authMsg{}) }

// lineSink prints one line per event for -tui=false.
type lineSink struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func newLineSink(out io.Writer) *lineSink {
	return &lineSink{out: out, now: time.Now}
}

func (l *lineSink) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s\n", l.now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

func (l *lineSink) State(s session.State) {
	if s == session.Idle {
		return
	}
	l.printf("%s...", s)
}

func (l *lineSink) Status(s session.Status) {
	switch {
	case s.Transcript != "":
		l.printf("%q (%d words, %s)", s.Transcript, s.Words, s.Text)
	case s.Level == session.LevelError:
		l.printf("error: %s", s.Text)
	case s.Level == session.LevelWarning:
		l.printf("warning: %s", s.Text)
	default:
		l.printf("%s", s.Text)
	}
}

func (l *lineSink) AuthRequired() {
	l.printf("run 'vox login' in another terminal")
}
