package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cidash.log")

	logger, flush, err := New(path, DEBUG)
	require.NoError(t, err)

	logger.Info("visible", "tab", "commits")
	logger.V(DEBUG).Info("debug line")
	logger.V(TRACE).Info("trace line")
	flush()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)

	assert.True(t, strings.Contains(out, "visible"))
	assert.True(t, strings.Contains(out, "debug line"))
	assert.False(t, strings.Contains(out, "trace line"))
}

func TestNewWithoutPathDiscards(t *testing.T) {
	logger, flush, err := New("", TRACE)
	require.NoError(t, err)
	logger.Info("dropped")
	flush()
	assert.False(t, logger.Enabled())
}
