package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexswap/business/trade/domain"
	"github.com/fd1az/dexswap/pkg/ui"
)

type sink struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *sink) Send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *sink) states() []domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.State, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.(ui.StateMsg).State)
	}
	return out
}

func state(ch domain.Channel, version uint64) domain.State {
	st := domain.Initial(ch)
	st.Version = version
	return st
}

func TestReporter_SendsStateMsg(t *testing.T) {
	var s sink
	r := NewReporter(&s)

	r.OnStateChange(state(domain.ChannelAddLiquidity, 7))
	r.Flush()

	got := s.states()
	require.Len(t, got, 1)
	assert.Equal(t, domain.ChannelAddLiquidity, got[0].Channel)
	assert.Equal(t, uint64(7), got[0].Version)
}

func TestReporter_CoalescesPerChannel(t *testing.T) {
	var s sink
	r := NewReporter(&s)

	r.OnStateChange(state(domain.ChannelSwap, 1))
	r.OnStateChange(state(domain.ChannelRemoveLiquidity, 4))
	r.OnStateChange(state(domain.ChannelSwap, 3))
	r.OnStateChange(state(domain.ChannelSwap, 2))
	r.Flush()

	got := s.states()
	require.Len(t, got, 2)
	assert.Equal(t, domain.ChannelSwap, got[0].Channel)
	assert.Equal(t, uint64(3), got[0].Version)
	assert.Equal(t, domain.ChannelRemoveLiquidity, got[1].Channel)

	r.Flush()
	assert.Len(t, s.states(), 2)
}

func TestReporter_Run(t *testing.T) {
	var s sink
	r := NewReporter(&s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.OnStateChange(state(domain.ChannelSwap, 1))
	assert.Eventually(t, func() bool { return len(s.states()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
