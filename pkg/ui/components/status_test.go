package components

import (
	"strings"
	"testing"
	"time"
)

func TestStatusComponent(t *testing.T) {
	s := NewStatusComponent()
	if s.View() != "" {
		t.Fatalf("empty component rendered %q", s.View())
	}

	s.Update(ConnectionStatus{Name: "wallet", Connected: true, Latency: 1500 * time.Microsecond})
	s.Update(ConnectionStatus{Name: "prices", Connected: false})
	if !s.Connected("wallet") || s.Connected("prices") || s.Connected("other") {
		t.Fatal("unexpected connection flags")
	}

	s.Update(ConnectionStatus{Name: "wallet", Connected: false})
	view := s.View()
	if strings.Count(view, "disconnected") != 2 {
		t.Fatalf("expected both backends disconnected, got %q", view)
	}
	if strings.Index(view, "wallet") > strings.Index(view, "prices") {
		t.Fatalf("entries reordered: %q", view)
	}
}
