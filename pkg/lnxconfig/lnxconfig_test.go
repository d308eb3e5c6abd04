package lnxconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 8192, c.SendBufferSize)
	assert.Equal(t, 8192, c.RecvBufferSize)
	assert.Equal(t, 128, c.DefaultBacklog)
	assert.Equal(t, uint16(32768), c.EphemeralBase)
	assert.Equal(t, 1000, c.EphemeralAttempts)
	assert.False(t, c.Verbose)
}

func TestParseConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.ini")
	data := `
[buffers]
send = 1024
recv = 2048

[listen]
default_backlog = 4
max_backlog = 16

[ephemeral]
base = 40000
attempts = 10

[log]
verbose = true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := ParseConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, c.SendBufferSize)
	assert.Equal(t, 2048, c.RecvBufferSize)
	assert.Equal(t, 4, c.DefaultBacklog)
	assert.Equal(t, 16, c.MaxBacklog)
	assert.Equal(t, uint16(40000), c.EphemeralBase)
	assert.Equal(t, 10, c.EphemeralAttempts)
	assert.True(t, c.Verbose)
}

func TestParseConfigPartial(t *testing.T) {
	c, err := ParseBytes([]byte("[buffers]\nrecv = 64\n"))
	require.NoError(t, err)
	assert.Equal(t, 64, c.RecvBufferSize)
	assert.Equal(t, DefaultBufferSize, c.SendBufferSize)
	assert.Equal(t, DefaultBacklog, c.DefaultBacklog)
}

func TestParseConfigRejects(t *testing.T) {
	for name, data := range map[string]string{
		"zero buffer":      "[buffers]\nsend = 0\n",
		"backlog over max": "[listen]\ndefault_backlog = 200\nmax_backlog = 128\n",
		"port overflow":    "[ephemeral]\nbase = 70000\n",
		"no attempts":      "[ephemeral]\nattempts = 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBytes([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestParseConfigMissingFile(t *testing.T) {
	_, err := ParseConfig(filepath.Join(t.TempDir(), "nope.ini"))
	assert.Error(t, err)
}

func TestClampBacklog(t *testing.T) {
	c := Default()
	assert.Equal(t, 128, c.ClampBacklog(0))
	assert.Equal(t, 128, c.ClampBacklog(-5))
	assert.Equal(t, 5, c.ClampBacklog(5))
	assert.Equal(t, 128, c.ClampBacklog(1000))
}
