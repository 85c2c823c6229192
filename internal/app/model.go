// Package app renders the interactive progress view of a preparation run.
// The pipeline sends PhaseMsg/TaskProgressMsg/RunFinishedMsg into the
// program; the model only displays them.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	phaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	barStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Model is the bubbletea model for one preparation run.
type Model struct {
	CutoutName string

	spinner spinner.Model
	bar     progress.Model

	phase      string
	done       int
	total      int
	lastSeries string
	start      time.Time

	finished bool
	err      error
	width    int
}

func NewModel(cutoutName string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{
		CutoutName: cutoutName,
		spinner:    s,
		bar:        progress.New(progress.WithDefaultGradient()),
		phase:      "starting",
		start:      time.Now(),
	}
}

// Err returns the pipeline error the run finished with, if any.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 8
		if w > 60 {
			w = 60
		}
		if w > 0 {
			m.bar.Width = w
		}
		return m, nil

	case PhaseMsg:
		m.phase = msg.Name
		return m, nil

	case TaskProgressMsg:
		m.done, m.total, m.lastSeries = msg.Done, msg.Total, msg.Series
		if m.total > 0 {
			return m, m.bar.SetPercent(float64(m.done) / float64(m.total))
		}
		return m, nil

	case RunFinishedMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Preparing cutout %s", m.CutoutName)))
	b.WriteString("\n\n")

	if m.finished {
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Failed: %v", m.err)))
		} else {
			b.WriteString(doneStyle.Render(fmt.Sprintf("Done in %s", time.Since(m.start).Round(time.Second))))
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), phaseStyle.Render(m.phase)))
	if m.total > 0 {
		b.WriteString(barStyle.Render(m.bar.View()))
		b.WriteString(fmt.Sprintf(" %d/%d", m.done, m.total))
		if m.lastSeries != "" {
			b.WriteString(infoStyle.Render(fmt.Sprintf("  last: %s", m.lastSeries)))
		}
		b.WriteString("\n")
	}
	b.WriteString(infoStyle.Render("\npress q to abort\n"))
	return b.String()
}
