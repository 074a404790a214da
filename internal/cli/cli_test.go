package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"config.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "config.hcl", cfg.ConfigPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, "raise", cfg.SegmentPolicy)
	assert.Empty(t, cfg.DataURL)
}

func TestParse_Flags(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-c", "conf",
		"--output", "www",
		"--data-url", "http://svc:8080",
		"--log-format", "json",
		"--log-level", "debug",
		"--workers", "0",
		"--segment-policy", "warn",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "conf", cfg.ConfigPath)
	assert.Equal(t, "www", cfg.Output)
	assert.Equal(t, "http://svc:8080", cfg.DataURL)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Zero(t, cfg.WorkerCount)
	assert.Equal(t, "warn", cfg.SegmentPolicy)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"bad log format", []string{"--log-format", "yaml", "c.hcl"}, "invalid log-format"},
		{"bad log level", []string{"--log-level", "verbose", "c.hcl"}, "invalid log-level"},
		{"bad policy", []string{"--segment-policy", "sometimes", "c.hcl"}, "invalid segment error policy"},
		{"negative workers", []string{"--workers", "-2", "c.hcl"}, "must not be negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(tc.args, &out)
			require.Error(t, err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
