package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/modest/internal/keys"
)

func TestViewListsKeysAndLegend(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 120, 60)
	view := m.View()

	assert.Contains(t, view, "Keyboard Shortcuts")
	assert.Contains(t, view, "quit")
	for _, want := range []string{"pending", "in-progress", "finished-with-errors", "canceled"} {
		assert.Contains(t, view, want)
	}
	assert.Contains(t, view, "online (forced)")
}
