package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestQueueSummaryMode(t *testing.T) {
	assert.Equal(t, "online", QueueSummary{Online: true}.Mode())
	assert.Equal(t, "offline", QueueSummary{}.Mode())
	assert.Equal(t, "online (forced)", QueueSummary{Online: true, Forced: true}.Mode())
	assert.Equal(t, "offline (forced)", QueueSummary{Forced: true}.Mode())
}

func TestRenderHeader(t *testing.T) {
	l := NewLayout(80, 24)

	idle := l.RenderHeader("modest", QueueSummary{Online: true})
	assert.Contains(t, idle, "modest")
	assert.Contains(t, idle, "idle")
	assert.Equal(t, 80, lipgloss.Width(idle))

	busy := l.RenderHeader("modest", QueueSummary{Queued: 3, Running: 1})
	assert.Contains(t, busy, "offline")
	assert.Contains(t, busy, "3 queued, 1 running")

	waiting := l.RenderHeader("modest", QueueSummary{Online: true, Queued: 2})
	assert.Contains(t, waiting, "2 queued")
	assert.NotContains(t, waiting, "running")
}

func TestContentHeight(t *testing.T) {
	assert.Equal(t, 22, NewLayout(80, 24).ContentHeight())
	assert.Equal(t, 0, NewLayout(80, 1).ContentHeight())
}
