package iptcpstack

import (
	"fmt"
	"strings"

	"SIM-TCP/pkg/buffer"
	"SIM-TCP/pkg/ipstack"
	"SIM-TCP/pkg/tcpstack"

	"github.com/soypat/seqs"
)

const (
	AF_UNIX = ipstack.AF_UNIX
	AF_INET = ipstack.AF_INET

	SOCK_STREAM = 1
	SOCK_DGRAM  = 2
	SOCK_RAW    = 3

	IPPROTO_IP  = 0
	IPPROTO_TCP = 6
	IPPROTO_UDP = 17
)

// Handles below firstHandle are reserved for stdin, stdout and stderr.
const firstHandle = 3

// SocketState is the socket level lifecycle of an endpoint. Stream endpoints
// additionally carry a TCP state, see TCPStateOf.
type SocketState uint8

const (
	Unbound SocketState = iota
	Bound
	Listening
	Connecting
	Connected
	Closing
	Closed
)

var socketStateNames = [...]string{
	Unbound:    "UNBOUND",
	Bound:      "BOUND",
	Listening:  "LISTENING",
	Connecting: "CONNECTING",
	Connected:  "CONNECTED",
	Closing:    "CLOSING",
	Closed:     "CLOSED",
}

func (s SocketState) String() string {
	if int(s) < len(socketStateNames) {
		return socketStateNames[s]
	}
	return fmt.Sprintf("SocketState(%d)", s)
}

type datagramSource struct {
	from ipstack.Addr
	n    int
}

type endpoint struct {
	handle   int
	domain   int
	kind     int
	protocol int
	state    SocketState
	tcb      tcpstack.ControlBlock

	local ipstack.Addr
	peer  ipstack.Addr

	send *buffer.Buffer
	recv *buffer.Buffer

	// backlog holds handles of connections waiting for Accept.
	backlog chan int
	// listener is the handle of the listening endpoint a pending connection
	// was queued on, or zero once accepted.
	listener int

	// passive marks connections created on behalf of a listener.
	passive bool

	sources     []datagramSource
	nonblocking bool
}

func (e *endpoint) isStream() bool   { return e.kind == SOCK_STREAM }
func (e *endpoint) isDatagram() bool { return e.kind == SOCK_DGRAM }

func (e *endpoint) info() SocketInfo {
	i := SocketInfo{
		Handle:      e.handle,
		Domain:      e.domain,
		Kind:        e.kind,
		Protocol:    e.protocol,
		State:       e.state,
		TCPState:    e.tcb.State(),
		Local:       e.local,
		Peer:        e.peer,
		Send:        e.send.Status(),
		Recv:        e.recv.Status(),
		Listener:    e.listener,
		Nonblocking: e.nonblocking,
	}
	if e.backlog != nil {
		i.Pending = len(e.backlog)
		i.Backlog = cap(e.backlog)
	}
	return i
}

// SocketInfo is a point in time snapshot of an endpoint.
type SocketInfo struct {
	Handle   int
	Domain   int
	Kind     int
	Protocol int
	State    SocketState
	TCPState seqs.State
	Local    ipstack.Addr
	Peer     ipstack.Addr
	Send     buffer.Status
	Recv     buffer.Status
	Pending  int
	Backlog  int
	// Listener is set while the connection waits in a listener's backlog.
	Listener    int
	Nonblocking bool
}

func KindName(kind int) string {
	switch kind {
	case SOCK_STREAM:
		return "STREAM"
	case SOCK_DGRAM:
		return "DGRAM"
	case SOCK_RAW:
		return "RAW"
	}
	return fmt.Sprintf("KIND(%d)", kind)
}

func (i SocketInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "socket %d: %s proto=%d state=%s", i.Handle, KindName(i.Kind), i.Protocol, i.State)
	if i.Kind == SOCK_STREAM {
		fmt.Fprintf(&sb, " tcp=%s", i.TCPState)
	}
	fmt.Fprintf(&sb, " local=%s peer=%s", i.Local, i.Peer)
	fmt.Fprintf(&sb, " send=%d/%d recv=%d/%d", i.Send.Used, i.Send.Capacity, i.Recv.Used, i.Recv.Capacity)
	if i.Listener != 0 {
		fmt.Fprintf(&sb, " pending-on=%d", i.Listener)
	}
	if i.Backlog > 0 {
		fmt.Fprintf(&sb, " backlog=%d/%d", i.Pending, i.Backlog)
	}
	return sb.String()
}
