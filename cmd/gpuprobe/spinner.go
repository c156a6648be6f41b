package main

import (
	"context"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/benaskins/gpuprobe/internal/gpu"
)

type probeDoneMsg struct {
	resp gpu.Response
	err  error
}

// probeModel shows a spinner on stderr while a probe runs.
type probeModel struct {
	spinner spinner.Model
	run     func() (gpu.Response, error)
	cancel  context.CancelFunc

	resp gpu.Response
	err  error
	done bool
}

func (m probeModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		resp, err := m.run()
		return probeDoneMsg{resp: resp, err: err}
	})
}

func (m probeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.err = context.Canceled
			m.done = true
			return m, tea.Quit
		}
	case probeDoneMsg:
		m.resp, m.err, m.done = msg.resp, msg.err, true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m probeModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " Probing GPU...\n"
}

// probeWithSpinner runs the probe behind a terminal spinner.
func probeWithSpinner(ctx context.Context, p *gpu.Probe) (gpu.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	m := probeModel{
		spinner: s,
		run:     func() (gpu.Response, error) { return p.Run(ctx) },
		cancel:  cancel,
	}
	final, err := tea.NewProgram(m, tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return p.Run(ctx)
	}
	out := final.(probeModel)
	return out.resp, out.err
}
