// Package tui is the terminal front end: a single session driven from a
// prompt line, with the transcript shown above it.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github/itish2003/pdfchat/models"
	"github/itish2003/pdfchat/services"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// uploadDoneMsg reports the end of a document upload.
type uploadDoneMsg struct {
	name string
	resp *models.UploadResponse
	err  error
}

// answerDoneMsg reports the end of a question.
type answerDoneMsg struct {
	err error
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx     context.Context
	session *services.Session
	options models.OptionsResponse

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *transcriptRenderer

	initialFile string
	running     bool
	status      string
	notice      string
	width       int
	height      int
}

func New(ctx context.Context, session *services.Session, options models.OptionsResponse) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question or type /help..."
	ta.Focus()
	ta.Prompt = "> "
	ta.CharLimit = 2000
	ta.SetWidth(30)
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	s := spinner.New()
	s.Spinner = spinner.Jump
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		ctx:      ctx,
		session:  session,
		options:  options,
		viewport: viewport.New(30, 10),
		input:    ta,
		spinner:  s,
		renderer: newTranscriptRenderer(30),
		status:   "Ready",
	}
	m.refresh()
	return m
}

// WithInitialFile opens path as soon as the program starts.
func (m Model) WithInitialFile(path string) Model {
	m.initialFile = path
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink}
	if m.initialFile != "" {
		cmds = append(cmds, func() tea.Msg { return openRequest(m.initialFile) })
	}
	return tea.Batch(cmds...)
}

// openRequest asks Update to start an upload; uploads only start from Update
// so the spinner state stays consistent.
type openRequest string

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width)
		statusHeight := lipgloss.Height(m.statusView())
		height := msg.Height - statusHeight - m.input.Height()
		if height < 1 {
			height = 1
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = height
		m.renderer = newTranscriptRenderer(msg.Width)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			return m.submit(line)
		}

	case openRequest:
		return m.open(string(msg))

	case uploadDoneMsg:
		m.running = false
		m.status = "Ready"
		switch {
		case msg.err != nil:
			m.notice = services.UserMessage(msg.err)
		case msg.resp.AlreadyProcessed:
			m.notice = msg.name + " is already loaded."
		default:
			m.notice = msg.resp.Message
		}
		m.refresh()
		return m, nil

	case answerDoneMsg:
		m.running = false
		m.status = "Ready"
		m.notice = ""
		if msg.err != nil && errors.Is(msg.err, services.ErrNoDocument) {
			m.notice = services.UserMessage(msg.err)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit runs a slash command or asks line as a question.
func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	name, arg, isCommand := parseCommand(line)
	if !isCommand {
		if m.running {
			m.notice = "Please wait for the current request to finish."
			return m, nil
		}
		return m.ask(line)
	}

	m.notice = ""
	switch name {
	case "open":
		if arg == "" {
			m.notice = "Usage: /open <path>"
			break
		}
		return m.open(arg)
	case "model":
		if arg == "" {
			m.notice = "Models: " + strings.Join(m.options.Models, ", ")
			break
		}
		if err := m.session.SetChatModel(arg); err != nil {
			m.notice = services.UserMessage(err)
			break
		}
		m.notice = "Chat model set to " + arg + "."
	case "mode":
		if arg == "" {
			var names []string
			for _, mode := range m.options.Modes {
				names = append(names, string(mode.Name))
			}
			m.notice = "Modes: " + strings.Join(names, ", ")
			break
		}
		if err := m.session.SetMode(arg); err != nil {
			m.notice = services.UserMessage(err)
			break
		}
		m.notice = "Analysis mode set to " + arg + ". It applies to the next document you open."
	case "reset":
		if err := m.session.Reset(m.ctx); err != nil {
			m.notice = services.UserMessage(err)
			break
		}
		m.notice = "Document and conversation cleared."
	case "info":
		m.notice = documentInfo(m.session.Snapshot().Document)
	case "help":
		m.notice = helpText
	case "quit", "exit":
		return m, tea.Quit
	default:
		m.notice = fmt.Sprintf("Unknown command /%s. Type /help for commands.", name)
	}
	m.refresh()
	return m, nil
}

func (m Model) open(path string) (tea.Model, tea.Cmd) {
	if m.running {
		m.notice = "Please wait for the current request to finish."
		m.refresh()
		return m, nil
	}
	m.running = true
	m.status = "Processing " + filepath.Base(path) + "..."
	m.notice = ""
	m.refresh()

	ctx, session := m.ctx, m.session
	upload := func() tea.Msg {
		name := filepath.Base(path)
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			return uploadDoneMsg{name: name, err: fmt.Errorf("%s is not a PDF file", name)}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return uploadDoneMsg{name: name, err: err}
		}
		resp, err := session.Upload(ctx, name, data)
		return uploadDoneMsg{name: name, resp: resp, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, upload)
}

func (m Model) ask(question string) (tea.Model, tea.Cmd) {
	m.running = true
	m.status = "Generating answer..."
	m.notice = ""
	m.refresh()

	ctx, session := m.ctx, m.session
	ask := func() tea.Msg {
		_, err := session.Ask(ctx, question)
		return answerDoneMsg{err: err}
	}
	return m, tea.Batch(m.spinner.Tick, ask)
}

// refresh re-renders the transcript from the session. Newest messages are on
// top, so the viewport is scrolled there.
func (m *Model) refresh() {
	content := m.renderer.render(m.session.Snapshot())
	if m.notice != "" {
		content = m.renderer.styles.notice.Render(m.notice) + "\n\n" + content
	}
	m.viewport.SetContent(content)
	m.viewport.GotoTop()
}

func (m Model) statusView() string {
	content := m.status
	if m.running {
		content = fmt.Sprintf("%s %s", m.spinner.View(), m.status)
	}
	return m.renderer.styles.status.Render(content)
}

func (m Model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		m.statusView(),
		m.input.View(),
	)
}

// parseCommand splits "/name arg" into its parts. Lines not starting with a
// slash are not commands.
func parseCommand(line string) (name, arg string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(line[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}
