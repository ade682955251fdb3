package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type doneMsg struct{}

// waitModel shows a spinner until the work is done or the user quits.
type waitModel struct {
	spinner     spinner.Model
	label       string
	interrupted bool
}

func newWaitModel(label string) waitModel {
	return waitModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(stderrStyles().Spinner),
		),
		label: label,
	}
}

// Init implements tea.Model.
func (m waitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.interrupted = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m waitModel) View() string {
	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// withSpinner runs fn, showing a spinner on stderr unless quiet or stderr
// is not a terminal. Quitting the spinner cancels the context given to fn.
func withSpinner(ctx context.Context, quiet bool, label string, fn func(context.Context) error) error {
	if quiet || !isErrTTY() {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []tea.ProgramOption{tea.WithOutput(os.Stderr)}
	if !isInputTTY() {
		opts = append(opts, tea.WithInput(nil))
	}
	p := tea.NewProgram(newWaitModel(label), opts...)

	errc := make(chan error, 1)
	go func() {
		errc <- fn(ctx)
		p.Send(doneMsg{})
	}()

	m, err := p.Run()
	if err != nil {
		cancel()
		<-errc
		return cliError{err, "Could not start the spinner."}
	}
	if wm, ok := m.(waitModel); ok && wm.interrupted {
		cancel()
	}
	return <-errc
}
