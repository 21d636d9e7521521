package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, "info", l.config.Level)
	assert.Equal(t, "console", l.config.Format)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marks.log")
	l, err := New(&Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)

	l.WithOperation("search").WithPage(3).Infow("batch settled", "hits", 2)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"search"`)
	assert.Contains(t, string(data), `"page":3`)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("dropped")
	assert.NotNil(t, l.SugaredLogger)
}
