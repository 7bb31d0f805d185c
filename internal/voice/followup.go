package voice

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FollowUpModel is the bubbletea program behind an interactive follow-up:
// a prompt and one text input. Enter answers, Esc and Ctrl+C skip.
type FollowUpModel struct {
	prompt    string
	textInput textinput.Model

	answer   string
	answered bool
	done     bool

	promptStyle lipgloss.Style
	helpStyle   lipgloss.Style
}

// NewFollowUpModel creates the model for prompt.
func NewFollowUpModel(prompt string) *FollowUpModel {
	ti := textinput.New()
	ti.Placeholder = "Type your answer..."
	ti.CharLimit = 256
	ti.Focus()

	return &FollowUpModel{
		prompt:    prompt,
		textInput: ti,
		promptStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

// Init starts the cursor blinking.
func (m *FollowUpModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key input.
func (m *FollowUpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.answer = strings.TrimSpace(m.textInput.Value())
			m.answered = m.answer != ""
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the prompt and input.
func (m *FollowUpModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.promptStyle.Render(m.prompt))
	b.WriteString("\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n")
	b.WriteString(m.helpStyle.Render("enter: answer • esc: skip"))
	return b.String()
}

// Answer returns the typed answer; ok is false when the prompt was skipped
// or answered with nothing.
func (m *FollowUpModel) Answer() (string, bool) {
	return m.answer, m.answered
}
