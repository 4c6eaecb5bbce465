package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/kolvoice/kol-core/core"
	"github.com/kolvoice/kol-core/core/conversations"
	"github.com/kolvoice/kol-core/core/llms"
)

type stateMsg struct{ state orchestration.State }
type transcriptMsg struct{ transcript string }
type ignoredMsg struct{ transcript string }
type responseMsg struct{ partial string }
type responseEndMsg struct{ response string }
type messagesMsg struct{ messages []llms.Message }
type errorMsg struct{ err error }

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	stateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("120"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type model struct {
	orchestrator *orchestration.Orchestrator
	saver        *conversations.Saver
	conversation conversations.Conversation

	viewport  viewport.Model
	input     textinput.Model
	spinner   spinner.Model
	width     int
	height    int
	ready     bool
	state     orchestration.State
	partial   string
	lastErr   string
	recording bool
	handsFree bool
}

func newModel(orchestrator *orchestration.Orchestrator, saver *conversations.Saver) model {
	input := textinput.New()
	input.Placeholder = "Type a message, or press tab for hands-free voice chat"
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return model{
		orchestrator: orchestrator,
		saver:        saver,
		input:        input,
		spinner:      spin,
		state:        orchestration.StateIdle,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-5)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 5
		}
		m.refreshTranscriptView()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			return m.toggleHandsFree()
		case "ctrl+r":
			return m.toggleRecording()
		case "ctrl+x":
			m.orchestrator.CancelTurn()
			return m, nil
		case "enter":
			prompt := strings.TrimSpace(m.input.Value())
			if prompt != "" {
				m.input.Reset()
				m.orchestrator.SendPrompt(prompt)
			}
			return m, nil
		}

	case stateMsg:
		m.state = msg.state
		if msg.state != orchestration.StateRecording {
			m.recording = false
		}
		return m, nil

	case transcriptMsg:
		m.lastErr = ""
		return m, nil

	case ignoredMsg:
		m.lastErr = fmt.Sprintf("heard %q (no wake phrase)", msg.transcript)
		return m, nil

	case responseMsg:
		m.partial = msg.partial
		m.refreshTranscriptView()
		return m, nil

	case responseEndMsg:
		m.partial = ""
		m.refreshTranscriptView()
		return m, nil

	case messagesMsg:
		m.conversation = m.rememberMessages(msg.messages)
		m.refreshTranscriptView()
		return m, nil

	case errorMsg:
		m.lastErr = msg.err.Error()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var inputCmd, viewportCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewportCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewportCmd)
}

func (m model) toggleHandsFree() (tea.Model, tea.Cmd) {
	if m.handsFree {
		if err := m.orchestrator.DisableContinuousMode(); err != nil {
			m.lastErr = err.Error()
			return m, nil
		}
		m.handsFree = false
		return m, nil
	}
	if err := m.orchestrator.EnableContinuousMode(); err != nil {
		m.lastErr = err.Error()
		return m, nil
	}
	m.handsFree = true
	m.lastErr = ""
	return m, nil
}

func (m model) toggleRecording() (tea.Model, tea.Cmd) {
	if m.recording {
		if err := m.orchestrator.StopRecording(); err != nil {
			m.lastErr = err.Error()
		}
		m.recording = false
		return m, nil
	}
	if err := m.orchestrator.StartRecording(); err != nil {
		m.lastErr = err.Error()
		return m, nil
	}
	m.recording = true
	m.lastErr = ""
	return m, nil
}

// rememberMessages folds the updated history into the tracked conversation
// and schedules a debounced save.
func (m *model) rememberMessages(messages []llms.Message) conversations.Conversation {
	conversation := m.conversation
	if conversation.ID == "" {
		conversation = conversations.New(messages...)
	} else {
		conversation.Messages = messages
		conversation.Title = conversations.TitleFor(messages)
	}
	m.saver.Update(conversation)
	return conversation
}

func (m *model) refreshTranscriptView() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, message := range m.conversation.Messages {
		switch message.Role {
		case llms.RoleUser:
			b.WriteString(userStyle.Render("you: "))
		case llms.RoleAssistant:
			b.WriteString(assistantStyle.Render("kol: "))
		}
		b.WriteString(wordwrap.String(message.Content, m.viewport.Width-6))
		b.WriteString("\n\n")
	}
	if m.partial != "" {
		b.WriteString(assistantStyle.Render("kol: "))
		b.WriteString(wordwrap.String(m.partial, m.viewport.Width-6))
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	status := string(m.state)
	switch m.state {
	case orchestration.StateTranscribing, orchestration.StateThinking:
		status = m.spinner.View() + " " + status
	case orchestration.StateListening:
		if m.handsFree {
			status += " (hands-free)"
		}
	}

	statusLine := stateStyle.Render(status)
	if m.lastErr != "" {
		statusLine += "  " + errorStyle.Render(m.lastErr)
	}

	help := helpStyle.Render("tab: hands-free  ctrl+r: push-to-talk  ctrl+x: cancel  esc: quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("kol"),
		m.viewport.View(),
		statusLine,
		m.input.View(),
		help,
	)
}
