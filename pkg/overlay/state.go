package overlay

import (
	"GamePartner/pkg/types"
)

// State is everything the overlay renders. It is only touched by the
// goroutine that drains the UI channel.
type State struct {
	Visible     bool
	Position    Position
	InputActive bool
	Messages    []types.ChatMessage

	limit int
}

// NewState returns a visible overlay keeping at most visibleMessages lines.
func NewState(pos Position, visibleMessages int) *State {
	if visibleMessages < 1 {
		visibleMessages = 1
	}
	return &State{Visible: true, Position: pos, limit: visibleMessages}
}

// Apply executes one instruction.
func (s *State) Apply(in types.UIInstruction) {
	switch in.Kind {
	case types.AppendMessage:
		s.Messages = append(s.Messages, in.Message)
		if extra := len(s.Messages) - s.limit; extra > 0 {
			s.Messages = append([]types.ChatMessage(nil), s.Messages[extra:]...)
		}
	case types.ToggleVisibility:
		s.Visible = !s.Visible
	case types.CyclePosition:
		s.Position = s.Position.Next()
	case types.ShowInput:
		// typing into a hidden overlay makes no sense
		s.Visible = true
		s.InputActive = true
	case types.HideInput:
		s.InputActive = false
	}
}

// Snapshot returns a deep copy.
func (s *State) Snapshot() State {
	out := *s
	out.Messages = append([]types.ChatMessage(nil), s.Messages...)
	return out
}

// FormatMessage renders a message line the way the overlay shows it.
func FormatMessage(m types.ChatMessage) string {
	return "[" + m.Timestamp.Format("15:04:05") + "] " + m.Text
}
