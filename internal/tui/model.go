package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/domain"
)

// Asker is the TUI-facing subset of the RAG service.
type Asker interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
}

// Model is the Bubble Tea model for the question-answering screen.
type Model struct {
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	summary  string
	status   string
	ready    bool
	thinking bool
}

// answerMsg carries the result of an Ask call back into Update.
type answerMsg struct {
	question string
	answer   domain.Answer
	err      error
}

// New creates the TUI model. The summary line from ingestion is shown
// under the header so the user knows what the knowledge base covers.
func New(asker Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{asker: asker, input: ti, viewport: vp, summary: summary, status: "Ready. Ask a question."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and question boxes
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		totalHeaderLines := 2 // header + summary
		totalFooterLines := 1 // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-ah)
		return m, nil
	case answerMsg:
		m.thinking = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			if hint := domain.Hint(msg.err); hint != "" {
				m.status += " (" + hint + ")"
			}
			return m, nil
		}
		m.status = fmt.Sprintf("Answered %q", msg.question)
		m.viewport.SetContent(renderAnswer(msg.answer))
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.thinking {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.thinking = true
				m.status = "Searching knowledge base and generating answer..."
				m.input.Reset()
				return m, ask(m.asker, q)
			}
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout with the latest answer in the viewport.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("DocChat")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := questionBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answer := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + answer + "\n" + input + "\n" + status
}

func ask(asker Asker, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := asker.Ask(context.Background(), question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func renderAnswer(answer domain.Answer) string {
	var b strings.Builder
	b.WriteString(answerHeadingStyle.Render("ANSWER"))
	b.WriteString("\n\n")
	b.WriteString(answer.Text)
	if len(answer.Sources) > 0 {
		b.WriteString("\n\n")
		b.WriteString(answerHeadingStyle.Render("SOURCES"))
		for i, src := range answer.Sources {
			fmt.Fprintf(&b, "\n%d. %s\n   %s", i+1, src.Source, sourceStyle.Render(src.Preview))
		}
	}
	return b.String()
}

var (
	answerBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerHeadingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
