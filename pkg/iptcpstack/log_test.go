package iptcpstack

import (
	"testing"

	"SIM-TCP/pkg/ipstack"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCallsAreTraced(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(nil, WithLogger(zap.New(core)))
	defer s.Shutdown()

	h, err := s.Socket(AF_INET, SOCK_STREAM, 0)
	require.NoError(t, err)
	calls := logs.FilterMessage("socket").All()
	require.Len(t, calls, 1)
	assert.Equal(t, []interface{}{AF_INET, SOCK_STREAM, 0}, calls[0].ContextMap()["args"])

	require.Error(t, s.Connect(h, ipstack.MustAddr("127.0.0.1", 1)))
	refused := logs.FilterMessage("connection refused").All()
	require.Len(t, refused, 1)
	assert.Equal(t, "no listener", refused[0].ContextMap()["reason"])

	assert.NotZero(t, logs.FilterMessage("tcp state").Len())
}

func TestQuietByDefault(t *testing.T) {
	if VERBOSE {
		t.Skip("SIMTCP_VERBOSE is set")
	}
	logger := newLogger(false)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, newLogger(true).Core().Enabled(zapcore.DebugLevel))
}
