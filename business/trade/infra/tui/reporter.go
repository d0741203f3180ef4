// Package tui forwards trade state into a Bubble Tea program.
package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/dexswap/business/trade/domain"
	"github.com/fd1az/dexswap/pkg/ui"
)

// Sender is the part of *tea.Program the reporter needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Reporter implements domain.Observer. OnStateChange never blocks: it keeps
// the newest snapshot per channel and Run delivers them as ui.StateMsg.
// Controllers publish from inside the program's Update loop, so a direct
// Send there would wait on itself.
type Reporter struct {
	sender Sender

	mu      sync.Mutex
	pending map[domain.Channel]domain.State
	order   []domain.Channel
	wake    chan struct{}
}

// NewReporter creates a reporter sending to s.
func NewReporter(s Sender) *Reporter {
	return &Reporter{
		sender:  s,
		pending: make(map[domain.Channel]domain.State),
		wake:    make(chan struct{}, 1),
	}
}

// OnStateChange implements domain.Observer.
func (r *Reporter) OnStateChange(s domain.State) {
	r.mu.Lock()
	prev, queued := r.pending[s.Channel]
	switch {
	case !queued:
		r.pending[s.Channel] = s
		r.order = append(r.order, s.Channel)
	case s.Version > prev.Version:
		r.pending[s.Channel] = s
	}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run delivers queued snapshots until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
			r.Flush()
		}
	}
}

// Flush sends everything queued so far, oldest channel first.
func (r *Reporter) Flush() {
	r.mu.Lock()
	batch := make([]domain.State, 0, len(r.order))
	for _, ch := range r.order {
		batch = append(batch, r.pending[ch])
	}
	r.pending = make(map[domain.Channel]domain.State)
	r.order = r.order[:0]
	r.mu.Unlock()

	for _, s := range batch {
		r.sender.Send(ui.StateMsg{State: s})
	}
}
