package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().PowerFlow.Tolerance, cfg.PowerFlow.Tolerance)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veragrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("power_flow:\n  max_iter: 50\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.PowerFlow.MaxIter)
	assert.Equal(t, Default().PowerFlow.Tolerance, cfg.PowerFlow.Tolerance)
}

func TestValidateRejectsBadMethod(t *testing.T) {
	cfg := Default()
	cfg.RMS.Method = "rk4"
	assert.Error(t, cfg.Validate())
}
