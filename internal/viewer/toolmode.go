package viewer

import (
	"fmt"
	"strings"
)

// ToolMode is the active viewer tool. Exactly one is active at a time.
type ToolMode int

const (
	ToolNavigate ToolMode = iota
	ToolAnnotate
	ToolErase
)

func (m ToolMode) String() string {
	switch m {
	case ToolAnnotate:
		return "annotate"
	case ToolErase:
		return "erase"
	default:
		return "navigate"
	}
}

// ParseToolMode accepts the canonical names and the toolbar aliases move/draw.
func ParseToolMode(s string) (ToolMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "navigate", "move", "pan":
		return ToolNavigate, nil
	case "annotate", "draw", "add":
		return ToolAnnotate, nil
	case "erase", "eraser":
		return ToolErase, nil
	}
	return ToolNavigate, fmt.Errorf("unknown tool mode %q", s)
}

func (m ToolMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ToolMode) UnmarshalText(b []byte) error {
	v, err := ParseToolMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ToolState holds the current tool. The zero value is Navigate.
type ToolState struct {
	mode ToolMode
}

func (s *ToolState) Mode() ToolMode { return s.mode }

// Select makes mode the active tool. It is the only transition.
func (s *ToolState) Select(mode ToolMode) {
	if mode < ToolNavigate || mode > ToolErase {
		return
	}
	s.mode = mode
}

// NavigationEnabled reports whether pointer drags and wheel input drive the viewport.
func (s *ToolState) NavigationEnabled() bool { return s.mode == ToolNavigate }

// Cursor is the pointer affordance for the active tool.
func (s *ToolState) Cursor() string {
	if s.mode == ToolNavigate {
		return "grab"
	}
	return "crosshair"
}

// Indicator is the on-canvas mode label; empty in Navigate.
func (s *ToolState) Indicator() string {
	switch s.mode {
	case ToolAnnotate:
		return "Drawing"
	case ToolErase:
		return "Erasing"
	}
	return ""
}
