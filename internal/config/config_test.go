package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNilFlagSet(t *testing.T) {
	opt, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ".", opt.WorkDir)
	assert.False(t, opt.Unrestricted)
	assert.Equal(t, 256, opt.MaxRecursionDepth)
	assert.Equal(t, "info", opt.LogLevel)
	assert.Equal(t, "text", opt.LogFormat)
}

func TestLoadHonorsFlagOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("workdir", ".", "")
	fs.Bool("unrestricted", false, "")
	fs.Int("max-recursion-depth", 256, "")
	fs.String("log-level", "info", "")
	fs.String("log-format", "text", "")
	require.NoError(t, fs.Parse([]string{"--workdir=/tmp/scratch", "--unrestricted", "--log-level=debug"}))

	opt, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/scratch", opt.WorkDir)
	assert.True(t, opt.Unrestricted)
	assert.Equal(t, "debug", opt.LogLevel)
	assert.Equal(t, "text", opt.LogFormat)
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("SHELLCORE_LOG_LEVEL", "warn")
	t.Setenv("SHELLCORE_MAX_RECURSION_DEPTH", "64")

	opt, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", opt.LogLevel)
	assert.Equal(t, 64, opt.MaxRecursionDepth)
}
