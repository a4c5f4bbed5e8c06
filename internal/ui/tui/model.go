package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/edgefleet/internal/orchestration"
	"github.com/imamik/edgefleet/internal/progress"
)

// maxLogLines bounds the scrolling message log.
const maxLogLines = 8

// Step is one pipeline step as displayed.
type Step struct {
	Name   string
	Key    string
	Done   bool
	Active bool
	Failed bool
}

// Model is the Bubble Tea model for the deploy progress view.
type Model struct {
	Master string

	Steps   []Step
	Percent int
	Message string
	Log     []string
	Details any

	Summary *orchestration.Summary

	// ETA
	EstimatedRemaining time.Duration
	StartTime          time.Time

	// Animation
	SpinnerFrame int

	// UI state
	Width  int
	Height int
	Err    error
	Done   bool
}

// NewDeployModel creates a model for a deploy run against master.
func NewDeployModel(master string) Model {
	return Model{
		Master:    master,
		StartTime: time.Now(),
		Steps: []Step{
			{Name: "Master node", Key: progress.StepMaster},
			{Name: "Worker nodes", Key: progress.StepWorkers},
			{Name: "Applications", Key: progress.StepApps},
			{Name: "Final checks", Key: progress.StepComplete},
		},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case EventMsg:
		m.apply(msg.Event)

	case TickMsg:
		m.SpinnerFrame++
		m.updateETA(time.Now())
		return m, tickCmd()

	case ErrMsg:
		m.Err = msg.Err
		m.markFailed()
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		m.Summary = msg.Summary
		m.Percent = 100
		m.EstimatedRemaining = 0
		for i := range m.Steps {
			m.Steps[i].Done = true
			m.Steps[i].Active = false
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) apply(e progress.Event) {
	if e.Percent > m.Percent {
		m.Percent = e.Percent
	}
	m.Message = e.Message
	m.Log = append(m.Log, e.Message)
	if len(m.Log) > maxLogLines {
		m.Log = m.Log[len(m.Log)-maxLogLines:]
	}

	if e.Kind == progress.KindError {
		m.markFailed()
		return
	}
	if e.ActiveStep != "" {
		m.activate(e.ActiveStep)
	}
	if e.Completed {
		m.Details = e.Details
		for i := range m.Steps {
			m.Steps[i].Done = true
			m.Steps[i].Active = false
		}
	}
}

// activate marks key active and every earlier step done.
func (m *Model) activate(key string) {
	idx := -1
	for i, s := range m.Steps {
		if s.Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	for i := 0; i < idx; i++ {
		m.Steps[i].Done = true
		m.Steps[i].Active = false
	}
	m.Steps[idx].Active = true
}

func (m *Model) markFailed() {
	for i := range m.Steps {
		if m.Steps[i].Active {
			m.Steps[i].Failed = true
			m.Steps[i].Active = false
			return
		}
	}
	for i := range m.Steps {
		if !m.Steps[i].Done {
			m.Steps[i].Failed = true
			return
		}
	}
}

// updateETA extrapolates the elapsed time linearly over the percent reached.
func (m *Model) updateETA(now time.Time) {
	if m.Percent <= 0 || m.Percent >= 100 {
		m.EstimatedRemaining = 0
		return
	}
	elapsed := now.Sub(m.StartTime)
	total := time.Duration(float64(elapsed) * 100 / float64(m.Percent))
	m.EstimatedRemaining = (total - elapsed).Round(time.Second)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
