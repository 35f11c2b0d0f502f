package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tldr-it-stepankutaj/ghostsh/internal/app"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/shell"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	statusStyle = lipgloss.NewStyle().Faint(true)
)

type (
	outputMsg string
	clearMsg  struct{}
	doneMsg   struct{}
)

// programWriter forwards handler output to the running program.
type programWriter struct {
	p *tea.Program
}

func (w *programWriter) Write(b []byte) (int, error) {
	if w.p != nil {
		w.p.Send(outputMsg(string(b)))
	}
	return len(b), nil
}

type model struct {
	ctx     context.Context
	session *shell.Session
	prompt  string
	input   textinput.Model
	view    viewport.Model
	buf     *strings.Builder
	running bool
	cancel  context.CancelFunc
	msg     string
}

func newModel(ctx context.Context, session *shell.Session, prompt string) model {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Focus()
	return model{
		ctx:     ctx,
		session: session,
		prompt:  prompt,
		input:   ti,
		view:    viewport.New(80, 20),
		buf:     &strings.Builder{},
		msg:     "Ready.",
	}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-4, 1)
		return m, nil
	case outputMsg:
		m.append(string(msg))
		return m, nil
	case clearMsg:
		m.buf.Reset()
		m.view.SetContent("")
		return m, nil
	case doneMsg:
		m.running = false
		m.cancel = nil
		m.msg = "Ready."
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.running {
				m.cancel()
				m.msg = "Cancelling..."
				return m, nil
			}
			return m, tea.Quit
		case "ctrl+d", "esc":
			if m.running {
				m.cancel()
			}
			return m, tea.Quit
		case "enter":
			if m.running {
				return m, nil
			}
			line := m.input.Value()
			m.input.Reset()
			m.append(m.prompt + line + "\n")
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			ctx, cancel := context.WithCancel(m.ctx)
			m.running, m.cancel = true, cancel
			m.msg = "Running " + strings.Fields(line)[0] + " (ctrl+c to cancel)"
			return m, m.dispatch(ctx, cancel, line)
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) dispatch(ctx context.Context, cancel context.CancelFunc, line string) tea.Cmd {
	return func() tea.Msg {
		defer cancel()
		m.session.Report(m.session.Dispatch(ctx, line))
		return doneMsg{}
	}
}

func (m *model) append(s string) {
	m.buf.WriteString(s)
	m.view.SetContent(m.buf.String())
	m.view.GotoBottom()
}

func (m model) View() string {
	header := headerStyle.Render("ghost os (ctrl+c cancel/quit, ctrl+d quit)")
	footer := statusStyle.Render("Status: " + m.msg)
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.view.View(), m.input.View(), footer)
}

// Run starts the TUI over reg. It rebinds clear to wipe the output pane.
func Run(appCtx app.Context, reg *modules.Registry, out io.Writer) error {
	w := &programWriter{}
	session := shell.New(reg, shell.WithOutput(w), shell.WithLogger(appCtx.Logger), shell.WithPrompt(appCtx.Config.Prompt))
	reg.Register("clear", func(context.Context, io.Writer, []string) error {
		if w.p != nil {
			w.p.Send(clearMsg{})
		}
		return nil
	})

	p := tea.NewProgram(newModel(appCtx.Ctx, session, appCtx.Config.Prompt), tea.WithAltScreen())
	w.p = p
	_, err := p.Run()
	fmt.Fprintln(out, shell.FarewellMessage)
	return err
}
