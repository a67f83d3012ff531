package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("chatty", false)
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modest.log")

	log, err := New("warn", false, path)
	require.NoError(t, err)

	log.Infow("Dropped below level")
	log.Warnw("Outbox flush incomplete", "messages", 2)
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Outbox flush incomplete")
	assert.Contains(t, string(data), `"messages":2`)
	assert.NotContains(t, string(data), "Dropped below level")
}
