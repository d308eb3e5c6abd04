package socket

import (
	"net/netip"

	"SIM-TCP/pkg/ipstack"
	"SIM-TCP/pkg/iptcpstack"

	"github.com/pkg/errors"
)

type VTCPListener struct {
	stack  *iptcpstack.Stack
	handle int
	addr   ipstack.Addr
	closed bool
}

// VListen listens on every local IP at port with the default backlog.
func VListen(stack *iptcpstack.Stack, port uint16) (*VTCPListener, error) {
	return VListenAddr(stack, netip.AddrPortFrom(netip.IPv4Unspecified(), port), 0)
}

// VListenAddr listens on addr. A non-positive backlog selects the default.
func VListenAddr(stack *iptcpstack.Stack, addr netip.AddrPort, backlog int) (*VTCPListener, error) {
	local, err := toAddr(addr)
	if err != nil {
		return nil, err
	}
	h, err := stack.Socket(iptcpstack.AF_INET, iptcpstack.SOCK_STREAM, iptcpstack.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := stack.Bind(h, local); err != nil {
		closeQuietly(stack, h)
		return nil, err
	}
	if err := stack.Listen(h, backlog); err != nil {
		closeQuietly(stack, h)
		return nil, err
	}
	info, err := stack.Info(h)
	if err != nil {
		return nil, err
	}
	return &VTCPListener{stack: stack, handle: h, addr: info.Local}, nil
}

// VAccept returns the oldest pending connection.
func (l *VTCPListener) VAccept() (*VTCPConn, error) {
	if l.closed {
		return nil, ErrClosed
	}
	h, peer, err := l.stack.Accept(l.handle)
	if err != nil {
		return nil, err
	}
	info, err := l.stack.Info(h)
	if err != nil {
		return nil, err
	}
	return &VTCPConn{stack: l.stack, handle: h, local: info.Local, remote: peer}, nil
}

func (l *VTCPListener) VClose() error {
	if l.closed {
		return errors.Wrap(ErrClosed, "listener already closed")
	}
	l.closed = true
	return l.stack.Close(l.handle)
}

func (l *VTCPListener) Handle() int { return l.handle }

func (l *VTCPListener) Addr() netip.AddrPort { return l.addr.AddrPort() }
