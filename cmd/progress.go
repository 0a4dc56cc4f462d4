package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/healthline/internal/application"
)

type refreshDoneMsg struct {
	err error
}

type refreshStepMsg application.RefreshProgress

var (
	progressSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	progressOKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	progressFailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// refreshProgressModel shows a spinner with the refresh title and one line
// per finished slot.
type refreshProgressModel struct {
	spinner  spinner.Model
	title    string
	run      tea.Cmd
	finished []application.RefreshProgress
	err      error
	done     bool
}

func newRefreshProgressModel(title string, run tea.Cmd) refreshProgressModel {
	return refreshProgressModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(progressSpinnerStyle)),
		title:   title,
		run:     run,
	}
}

func (m refreshProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m refreshProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case refreshStepMsg:
		m.finished = append(m.finished, application.RefreshProgress(msg))
		return m, nil
	case refreshDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m refreshProgressModel) View() string {
	if m.done {
		return ""
	}

	header := fmt.Sprintf("%s %s", m.spinner.View(), m.title)
	if len(m.finished) == 0 {
		return header
	}

	last := m.finished[len(m.finished)-1]
	lines := []string{fmt.Sprintf("%s %d/%d", header, last.Done, last.Total)}
	for _, step := range m.finished {
		if step.Err != "" {
			lines = append(lines, progressFailStyle.Render("  ✗ "+step.Item+": "+step.Err))
			continue
		}
		lines = append(lines, progressOKStyle.Render("  ✓ "+step.Item))
	}
	return strings.Join(lines, "\n")
}

// runWithProgress runs a refresh under a spinner on output. Steps passed to
// report are listed as they finish.
func runWithProgress(ctx context.Context, output io.Writer, title string, run func(ctx context.Context, report func(application.RefreshProgress)) error) error {
	var p *tea.Program
	report := func(step application.RefreshProgress) {
		p.Send(refreshStepMsg(step))
	}
	runCmd := func() tea.Msg {
		return refreshDoneMsg{err: run(ctx, report)}
	}

	p = tea.NewProgram(
		newRefreshProgressModel(title, runCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(refreshProgressModel)
	if !ok {
		return fmt.Errorf("unexpected final progress model type %T", finalModel)
	}

	return result.err
}
