package repl

import (
	"bytes"
	"strings"
	"testing"

	"SIM-TCP/pkg/iptcpstack"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stack *iptcpstack.Stack, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	StartRepl(stack, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	return out.String()
}

func TestStreamSession(t *testing.T) {
	stack := iptcpstack.New(nil)
	defer stack.Shutdown()

	out := run(t, stack,
		"socket stream",
		"bind 3 0.0.0.0 8080",
		"listen 3 5",
		"c 127.0.0.1 8080",
		"accept 3",
		"s 4 hello world",
		"r 5 100",
		"ls",
	)
	assert.Contains(t, out, "Created socket 3")
	assert.Contains(t, out, "Created new socket with ID 4")
	assert.Contains(t, out, "New connection on socket 3 => created new socket 5 from 127.0.0.1:32768")
	assert.Contains(t, out, "Sent 11 bytes")
	assert.Contains(t, out, "Read 11 bytes: hello world")
	assert.Contains(t, out, "SID")
	assert.NotContains(t, out, "error:")
	assert.Equal(t, 3, stack.Live())
}

func TestDatagramSession(t *testing.T) {
	stack := iptcpstack.New(nil)
	defer stack.Shutdown()

	out := run(t, stack,
		"socket dgram",
		"socket dgram",
		"bind 3 127.0.0.1 9001",
		"bind 4 127.0.0.1 9002",
		"sendto 3 127.0.0.1 9002 ping",
		"recvfrom 4 64",
		"recvfrom 4 64",
		"cl 3",
		"info 3",
	)
	assert.Contains(t, out, "Sent 4 bytes to 127.0.0.1:9002")
	assert.Contains(t, out, "Read 4 bytes from 127.0.0.1:9001: ping")
	assert.Contains(t, out, "error: recvfrom 4: Resource temporarily unavailable")
	assert.Contains(t, out, "No such socket")
}

func TestQuitStopsReading(t *testing.T) {
	stack := iptcpstack.New(nil)
	defer stack.Shutdown()

	run(t, stack, "socket stream", "q", "socket stream")
	assert.Equal(t, 1, stack.Live())
}

func TestExecuteErrors(t *testing.T) {
	stack := iptcpstack.New(nil)
	defer stack.Shutdown()

	var out bytes.Buffer
	for _, line := range []string{
		"bogus",
		"socket",
		"socket raw",
		"bind x 1.2.3.4 80",
		"bind 3 1.2.3.4 99999",
		"r 3",
	} {
		require.Error(t, Execute(stack, line, &out), line)
	}
	require.NoError(t, Execute(stack, "help", &out))
	assert.Contains(t, out.String(), "sendto <sid>")
}
