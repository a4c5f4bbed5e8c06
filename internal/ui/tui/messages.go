// Package tui provides a Bubble Tea-based terminal UI for deploy progress.
package tui

import (
	"github.com/imamik/edgefleet/internal/orchestration"
	"github.com/imamik/edgefleet/internal/progress"
)

// EventMsg carries one progress event from the pipeline.
type EventMsg struct {
	Event progress.Event
}

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// ErrMsg carries an error.
type ErrMsg struct{ Err error }

// DoneMsg signals that the run returned.
type DoneMsg struct {
	Summary *orchestration.Summary
}
