package launcher

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Styles
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06B6D4")).
			Bold(true)

	defaultHintStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6B7280"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	answeredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))
)

// =============================================================================
// Model
// =============================================================================

// formModel walks the operator through the launch questionnaire one
// field at a time. Required fields re-prompt on empty input instead of
// advancing.
type formModel struct {
	fields  []Field
	input   textinput.Model
	current int
	answers Answers
	errMsg  string

	aborted bool
	done    bool
}

func newFormModel(fields []Field) formModel {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 48

	m := formModel{
		fields:  fields,
		input:   ti,
		answers: make(Answers, len(fields)),
	}
	m.configureInput()
	return m
}

// configureInput resets the text input for the current field.
func (m *formModel) configureInput() {
	if m.current >= len(m.fields) {
		return
	}
	f := m.fields[m.current]
	m.input.SetValue("")
	m.input.Placeholder = f.Default
	if f.Secret {
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '*'
	} else {
		m.input.EchoMode = textinput.EchoNormal
	}
}

// Init implements tea.Model.
func (m formModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit

		case tea.KeyEnter:
			f := m.fields[m.current]
			value, err := Resolve(f, m.input.Value())
			if err != nil {
				m.errMsg = err.Error()
				m.input.SetValue("")
				return m, nil
			}

			m.answers[f.Key] = value
			m.errMsg = ""
			m.current++
			if m.current >= len(m.fields) {
				m.done = true
				return m, tea.Quit
			}
			m.configureInput()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m formModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	var b strings.Builder

	// Answered fields so far
	for i := 0; i < m.current; i++ {
		f := m.fields[i]
		value := m.answers[f.Key]
		if f.Secret {
			value = strings.Repeat("*", len(value))
		}
		b.WriteString(answeredStyle.Render("  ✓ "))
		b.WriteString(fmt.Sprintf("%s: %s\n", f.Prompt, value))
	}

	f := m.fields[m.current]
	b.WriteString("\n")
	b.WriteString(promptStyle.Render(f.Prompt))
	if f.Default != "" {
		b.WriteString(defaultHintStyle.Render(fmt.Sprintf(" [%s]", f.Default)))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("  ! " + m.errMsg))
		b.WriteString("\n")
	}

	b.WriteString(defaultHintStyle.Render("\n(enter to confirm, esc to abort)\n"))
	return b.String()
}

// RunForm runs the interactive questionnaire and returns the answers.
func RunForm(fields []Field) (Answers, error) {
	p := tea.NewProgram(newFormModel(fields))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("prompt failed: %w", err)
	}

	m, ok := final.(formModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type %T", final)
	}
	if m.aborted {
		return nil, fmt.Errorf("aborted")
	}
	return m.answers, nil
}
