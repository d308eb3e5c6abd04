package socket

import (
	"net/netip"

	"SIM-TCP/pkg/ipstack"
	"SIM-TCP/pkg/iptcpstack"

	"github.com/pkg/errors"
)

type VTCPConn struct {
	stack  *iptcpstack.Stack
	handle int
	local  ipstack.Addr
	remote ipstack.Addr
	closed bool
}

// VConnect opens a stream connection to addr:port.
func VConnect(stack *iptcpstack.Stack, addr netip.Addr, port uint16) (*VTCPConn, error) {
	remote, err := toAddr(netip.AddrPortFrom(addr, port))
	if err != nil {
		return nil, err
	}
	h, err := stack.Socket(iptcpstack.AF_INET, iptcpstack.SOCK_STREAM, iptcpstack.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := stack.Connect(h, remote); err != nil {
		closeQuietly(stack, h)
		return nil, err
	}
	info, err := stack.Info(h)
	if err != nil {
		return nil, err
	}
	return &VTCPConn{stack: stack, handle: h, local: info.Local, remote: remote}, nil
}

// VRead copies available bytes into buf. It never waits: an empty receive
// buffer returns iptcpstack.ErrWouldBlock and a drained, closed connection
// returns io.EOF.
func (c *VTCPConn) VRead(buf []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	data, err := c.stack.Recv(c.handle, len(buf))
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

// VWrite sends all of data, flushing one send buffer at a time.
func (c *VTCPConn) VWrite(data []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	written := 0
	for written < len(data) {
		n, err := c.stack.Send(c.handle, data[written:])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// VShutdown sends a FIN but keeps the read side open.
func (c *VTCPConn) VShutdown() error {
	if c.closed {
		return ErrClosed
	}
	return c.stack.CloseWrite(c.handle)
}

func (c *VTCPConn) VClose() error {
	if c.closed {
		return errors.Wrap(ErrClosed, "connection already closed")
	}
	c.closed = true
	return c.stack.Close(c.handle)
}

func (c *VTCPConn) Handle() int { return c.handle }

func (c *VTCPConn) LocalAddr() netip.AddrPort  { return c.local.AddrPort() }
func (c *VTCPConn) RemoteAddr() netip.AddrPort { return c.remote.AddrPort() }
