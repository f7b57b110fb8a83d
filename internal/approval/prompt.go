package approval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/foldcrew/internal/selection"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// PromptApprover asks for approval in the terminal.
type PromptApprover struct {
	in  io.Reader
	out io.Writer
}

// NewPromptApprover creates a PromptApprover. Nil in and out use the
// process's stdin and stdout.
func NewPromptApprover(in io.Reader, out io.Writer) *PromptApprover {
	return &PromptApprover{in: in, out: out}
}

// Approve runs the prompt until the user decides or ctx is done.
func (a *PromptApprover) Approve(ctx context.Context, req selection.ApprovalRequest) (models.ModelSelection, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if a.in != nil {
		opts = append(opts, tea.WithInput(a.in))
	}
	if a.out != nil {
		opts = append(opts, tea.WithOutput(a.out))
	}

	final, err := tea.NewProgram(newPromptModel(req), opts...).Run()
	if ctx.Err() != nil {
		return models.ModelSelection{}, ctx.Err()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return models.ModelSelection{}, fmt.Errorf("run approval prompt: %w", err)
	}

	m, ok := final.(promptModel)
	if !ok || m.response == nil {
		return models.ModelSelection{}, fmt.Errorf("%w: prompt closed without a decision", selection.ErrRejected)
	}
	return m.response.Apply(req.Selection)
}

type promptMode int

const (
	modeConfirm promptMode = iota
	modeEdit
)

// promptModel is the bubbletea model behind PromptApprover.
type promptModel struct {
	req      selection.ApprovalRequest
	mode     promptMode
	input    textinput.Model
	response *selection.ApprovalResponse

	titleStyle  lipgloss.Style
	labelStyle  lipgloss.Style
	modelStyle  lipgloss.Style
	mutedStyle  lipgloss.Style
	promptStyle lipgloss.Style
}

func newPromptModel(req selection.ApprovalRequest) promptModel {
	ti := textinput.New()
	ti.Placeholder = "ESMFold, Boltz"
	ti.CharLimit = 200
	ti.Width = 60

	return promptModel{
		req:   req,
		input: ti,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Background(lipgloss.Color("236")).
			Padding(0, 2),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		modelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		promptStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
	}
}

func (m promptModel) Init() tea.Cmd {
	return nil
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.mode == modeEdit {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if key.Type == tea.KeyCtrlC {
		return m.decide(selection.ApprovalResponse{RunID: m.req.RunID, Reason: "aborted"})
	}

	if m.mode == modeEdit {
		switch key.Type {
		case tea.KeyEnter:
			names := ParseModelList(m.input.Value())
			if names == nil {
				names = []string{}
			}
			return m.decide(selection.ApprovalResponse{RunID: m.req.RunID, Approved: true, Models: names})
		case tea.KeyEsc:
			m.mode = modeConfirm
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "y", "Y", "enter":
		return m.decide(selection.ApprovalResponse{RunID: m.req.RunID, Approved: true})
	case "n", "N", "q", "esc":
		return m.decide(selection.ApprovalResponse{RunID: m.req.RunID, Reason: "rejected by user"})
	case "e", "E":
		m.mode = modeEdit
		m.input.SetValue(strings.Join(m.req.Selection.Names(), ", "))
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd
	}
	return m, nil
}

func (m promptModel) decide(resp selection.ApprovalResponse) (tea.Model, tea.Cmd) {
	m.response = &resp
	return m, tea.Quit
}

func (m promptModel) View() string {
	if m.response != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.titleStyle.Render("Model selection"))
	b.WriteString("\n\n")

	pre := m.req.Preprocess
	fmt.Fprintf(&b, "%s %s\n", m.labelStyle.Render("Structure:"), pre.StructureName)
	fmt.Fprintf(&b, "%s %d declared, %d valid\n", m.labelStyle.Render("Chains:"), pre.NumChains, len(pre.CleanSequences))
	for i, seq := range pre.CleanSequences {
		fmt.Fprintf(&b, "  %s %s\n", m.mutedStyle.Render(fmt.Sprintf("%d.", i+1)), abbreviate(seq, 60))
	}
	b.WriteString("\n")

	selected := m.req.Selection.Names()
	list := m.mutedStyle.Render("(none)")
	if len(selected) > 0 {
		list = m.modelStyle.Render(strings.Join(selected, ", "))
	}
	fmt.Fprintf(&b, "%s %s\n", m.labelStyle.Render("Models:"), list)
	if m.req.Selection.Explanation != "" {
		fmt.Fprintf(&b, "%s %s\n", m.labelStyle.Render("Why:"), m.req.Selection.Explanation)
	}
	b.WriteString("\n")

	if m.mode == modeEdit {
		b.WriteString(m.promptStyle.Render("Models: "))
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(m.mutedStyle.Render("enter confirm · esc back"))
	} else {
		b.WriteString(m.promptStyle.Render("Run these models? [y]es / [n]o / [e]dit"))
	}
	b.WriteString("\n")
	return b.String()
}

func abbreviate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s... (%d aa)", s[:max], len(s))
}

var (
	_ selection.Approver = (*PromptApprover)(nil)
	_ tea.Model          = promptModel{}
)
