package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/imamik/edgefleet/internal/orchestration"
	"github.com/imamik/edgefleet/internal/progress"
)

// RunFunc runs the deploy pipeline.
type RunFunc func(ctx context.Context) (*orchestration.Summary, error)

// eventBuffer is how far the display may lag behind the pipeline before it is
// dropped from the broadcaster.
const eventBuffer = 256

// RunDeployTUI runs fn while rendering its progress events from b. Quitting
// the view does not stop the run; the call returns once fn has.
func RunDeployTUI(ctx context.Context, b *progress.Broadcaster, master string, fn RunFunc) (*orchestration.Summary, error) {
	p := tea.NewProgram(NewDeployModel(master), tea.WithAltScreen(), tea.WithContext(ctx))

	obs := progress.NewChannelObserver(eventBuffer)
	handle := b.Subscribe(obs)
	defer b.Unsubscribe(handle)

	go func() {
		for {
			select {
			case e := <-obs.Events():
				p.Send(EventMsg{Event: e})
			case <-obs.Done():
				return
			}
		}
	}()

	type result struct {
		summary *orchestration.Summary
		err     error
	}
	resCh := make(chan result, 1)
	go func() {
		summary, err := fn(ctx)
		if err != nil {
			p.Send(ErrMsg{Err: err})
		} else {
			p.Send(DoneMsg{Summary: summary})
		}
		resCh <- result{summary, err}
	}()

	_, uiErr := p.Run()
	obs.Close()
	res := <-resCh
	if res.err != nil {
		return nil, res.err
	}
	if uiErr != nil {
		return res.summary, fmt.Errorf("TUI error: %w", uiErr)
	}
	return res.summary, nil
}

// Interactive reports whether f is a terminal that can host the TUI.
func Interactive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PlainObserver prints one line per event for non-interactive output.
type PlainObserver struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainObserver writes events to w.
func NewPlainObserver(w io.Writer) *PlainObserver {
	return &PlainObserver{w: w}
}

// Deliver implements progress.Observer.
func (o *PlainObserver) Deliver(e progress.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	prefix := fmt.Sprintf("[%3d%%]", e.Percent)
	if e.Kind == progress.KindError {
		prefix = "[FAIL]"
	}
	_, err := fmt.Fprintf(o.w, "%s %s\n", prefix, e.Message)
	return err
}
