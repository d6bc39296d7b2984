package overlay

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Position is where the overlay sits on screen.
type Position int

const (
	TopLeft Position = iota
	TopMiddle
	TopRight
	RightMiddle
	BottomRight
	BottomMiddle
	BottomLeft
	LeftMiddle
)

// positionNames lists positions in cycle order.
var positionNames = [...]string{
	TopLeft:      "top-left",
	TopMiddle:    "top-middle",
	TopRight:     "top-right",
	RightMiddle:  "right-middle",
	BottomRight:  "bottom-right",
	BottomMiddle: "bottom-middle",
	BottomLeft:   "bottom-left",
	LeftMiddle:   "left-middle",
}

func (p Position) String() string {
	if p < 0 || int(p) >= len(positionNames) {
		return fmt.Sprintf("Position(%d)", int(p))
	}
	return positionNames[p]
}

// ParsePosition accepts the names used in the config file.
func ParsePosition(name string) (Position, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range positionNames {
		if n == name {
			return Position(i), nil
		}
	}
	return BottomRight, fmt.Errorf("unknown overlay position %q (valid: %s)", name, strings.Join(positionNames[:], ", "))
}

// Next returns the following position, wrapping after left-middle.
func (p Position) Next() Position {
	return Position((int(p) + 1) % len(positionNames))
}

// Placement maps a position to lipgloss alignment on both axes.
func (p Position) Placement() (horizontal, vertical lipgloss.Position) {
	switch p {
	case TopLeft:
		return lipgloss.Left, lipgloss.Top
	case TopMiddle:
		return lipgloss.Center, lipgloss.Top
	case TopRight:
		return lipgloss.Right, lipgloss.Top
	case RightMiddle:
		return lipgloss.Right, lipgloss.Center
	case BottomMiddle:
		return lipgloss.Center, lipgloss.Bottom
	case BottomLeft:
		return lipgloss.Left, lipgloss.Bottom
	case LeftMiddle:
		return lipgloss.Left, lipgloss.Center
	default:
		return lipgloss.Right, lipgloss.Bottom
	}
}
