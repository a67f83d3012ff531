package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/modest/internal/theme"
)

// Layout splits the terminal into a header line, the active view and a
// status line.
type Layout struct {
	Width  int
	Height int
}

// NewLayout returns a Layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight is the number of rows left for the active view.
func (l Layout) ContentHeight() int {
	if h := l.Height - 2; h > 0 {
		return h
	}
	return 0
}

// QueueSummary is what the header reports about the operation queue and
// the device.
type QueueSummary struct {
	Online  bool
	Forced  bool
	Queued  int
	Running int
}

// Mode is the device label, e.g. "offline (forced)".
func (s QueueSummary) Mode() string {
	mode := "online"
	if !s.Online {
		mode = "offline"
	}
	if s.Forced {
		mode += " (forced)"
	}
	return mode
}

func (s QueueSummary) segments() []string {
	segs := []string{theme.ModeStyle(s.Online, s.Forced).Render(s.Mode())}
	switch {
	case s.Queued == 0:
		segs = append(segs, "idle")
	case s.Running > 0:
		segs = append(segs, fmt.Sprintf("%d queued, %d running", s.Queued, s.Running))
	default:
		segs = append(segs, fmt.Sprintf("%d queued", s.Queued))
	}
	return segs
}

// RenderHeader renders title on the left and the queue summary on the
// right of a full-width bar.
func (l Layout) RenderHeader(title string, s QueueSummary) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Render(strings.Join(s.segments(), " · "))
	return spread(theme.HeaderStyle, l.Width, left, right)
}

// RenderStatusBar renders a status message or key hints across the full
// width.
func (l Layout) RenderStatusBar(text string) string {
	return spread(theme.StatusBarStyle, l.Width, theme.StatusBarStyle.Render(text), "")
}

// Frame stacks header, content and status bar.
func (l Layout) Frame(header, content, status string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, status)
}

// spread pads the gap between left and right with the bar background.
func spread(bar lipgloss.Style, width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(bar.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}
