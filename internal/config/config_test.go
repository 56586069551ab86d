package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOutputDirWhenUnset(t *testing.T) {
	os.Unsetenv("PARAMHUNT_OUTPUT_DIR")
	os.Unsetenv("PARAMHUNT_REPLAY_PROXY")
	os.Unsetenv("PARAMHUNT_LIVE_ADDR")

	env, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "./findings", env.OutputDir)
	assert.Empty(t, env.ReplayProxy)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("PARAMHUNT_OUTPUT_DIR", "/tmp/scan-out")
	t.Setenv("PARAMHUNT_REPLAY_PROXY", "http://127.0.0.1:8080")

	env, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/scan-out", env.OutputDir)
	assert.Equal(t, "http://127.0.0.1:8080", env.ReplayProxy)
}
