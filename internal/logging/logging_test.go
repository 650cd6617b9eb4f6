package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesDebugToFile(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	dir := t.TempDir()
	path, sync, err := Setup(Options{Dir: dir, AppName: "creator-test"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "creator-test"), filepath.Dir(path))

	Debugf("debug line %d", 42)
	sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "debug line 42"))
	assert.Contains(t, string(data), "Logging DEBUG execution logs to")
}
