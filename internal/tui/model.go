// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tui is an interactive question-answering session over a
// collection. Questions are answered in the background; the transcript
// scrolls in a viewport above the input line.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/paperqa/internal/docs"
	"github.com/pdiddy/paperqa/pkg/types"
)

// Asker answers questions. *docs.Docs satisfies it.
type Asker interface {
	Query(ctx context.Context, req docs.QueryRequest) (*types.Answer, error)
}

// turn is one question with its outcome.
type turn struct {
	question string
	answer   *types.Answer
	err      error
	took     time.Duration
}

// answerMsg carries a finished query back to Update.
type answerMsg struct {
	turn turn
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	ctx      context.Context
	asker    Asker
	template docs.QueryRequest
	title    string

	input    textinput.Model
	viewport viewport.Model
	turns    []turn
	busy     bool
	status   string
	ready    bool
}

// New creates a chat model. template supplies every setting but the
// question; title is shown in the header (e.g. the collection summary).
func New(ctx context.Context, asker Asker, template docs.QueryRequest, title string) Model {
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		asker:    asker,
		template: template,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Ready. Esc or Ctrl+C quits.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles window, key and answer messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		// header, title, status and one spacer line
		reserved := 4 + ih + 1
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		m.turns = append(m.turns, msg.turn)
		if msg.turn.err != nil {
			m.status = "Error: " + msg.turn.err.Error()
		} else {
			m.status = fmt.Sprintf("Answered in %s using %d sources, %d tokens.",
				msg.turn.took.Round(100*time.Millisecond), len(msg.turn.answer.Contexts), msg.turn.answer.Tokens)
		}
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.input.Reset()
			m.status = fmt.Sprintf("Thinking about %q ...", q)
			return m, m.ask(q)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask returns a command that runs the query off the UI goroutine.
func (m Model) ask(question string) tea.Cmd {
	req := m.template
	req.Question = question
	asker, ctx := m.asker, m.ctx
	return func() tea.Msg {
		start := time.Now()
		ans, err := asker.Query(ctx, req)
		return answerMsg{turn: turn{question: question, answer: ans, err: err, took: time.Since(start)}}
	}
}

// View renders header, transcript, input and status.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("paperqa chat")
	title := dimStyle.Render(m.title)
	status := statusStyle.Render(m.status)
	if m.busy {
		status = busyStyle.Render(m.status)
	}
	return header + "\n" + title + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
}

func (m Model) transcript() string {
	if len(m.turns) == 0 {
		return dimStyle.Render("No questions yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(20, m.viewport.Width-1))
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("Q: "+t.question) + "\n")
		if t.err != nil {
			b.WriteString(errorStyle.Render("error: "+t.err.Error()) + "\n")
			continue
		}
		b.WriteString(wrap.Render(t.answer.Answer) + "\n")
		for _, e := range t.answer.Bibliography {
			b.WriteString(dimStyle.Render(wrap.Render(fmt.Sprintf("  (%s) %s", e.Key, e.Citation))) + "\n")
		}
	}
	return b.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Run starts the full-screen session and blocks until the user quits.
func Run(ctx context.Context, asker Asker, template docs.QueryRequest, title string) error {
	p := tea.NewProgram(New(ctx, asker, template, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
