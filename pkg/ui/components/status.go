// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// ConnectionStatus is the last known state of one backend.
type ConnectionStatus struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// StatusComponent renders backend connections in the order first seen.
type StatusComponent struct {
	connections []ConnectionStatus
}

// NewStatusComponent creates an empty status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		connections: make([]ConnectionStatus, 0),
	}
}

// Update records status, replacing an entry with the same name.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

// Connected reports the last status of name.
func (s *StatusComponent) Connected(name string) bool {
	for _, conn := range s.connections {
		if conn.Name == name {
			return conn.Connected
		}
	}
	return false
}

// View renders one status line.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return ""
	}

	parts := make([]string, 0, len(s.connections))
	for _, conn := range s.connections {
		if !conn.Connected {
			parts = append(parts, disconnectedStyle.Render("○ "+conn.Name+" disconnected"))
			continue
		}
		part := connectedStyle.Render("● " + conn.Name)
		if conn.Latency > 0 {
			part += fmt.Sprintf(" (%s)", conn.Latency.Round(time.Millisecond))
		}
		parts = append(parts, part)
	}

	return strings.Join(parts, "  │  ")
}
