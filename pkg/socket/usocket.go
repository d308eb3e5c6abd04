package socket

import (
	"net/netip"

	"SIM-TCP/pkg/ipstack"
	"SIM-TCP/pkg/iptcpstack"

	"github.com/pkg/errors"
)

// VUDPConn is a datagram endpoint.
type VUDPConn struct {
	stack  *iptcpstack.Stack
	handle int
	local  ipstack.Addr
	closed bool
}

// VBindUDP opens a datagram endpoint bound to addr. A zero port picks an
// ephemeral one.
func VBindUDP(stack *iptcpstack.Stack, addr netip.AddrPort) (*VUDPConn, error) {
	local, err := toAddr(addr)
	if err != nil {
		return nil, err
	}
	h, err := stack.Socket(iptcpstack.AF_INET, iptcpstack.SOCK_DGRAM, iptcpstack.IPPROTO_UDP)
	if err != nil {
		return nil, err
	}
	if err := stack.Bind(h, local); err != nil {
		closeQuietly(stack, h)
		return nil, err
	}
	info, err := stack.Info(h)
	if err != nil {
		return nil, err
	}
	return &VUDPConn{stack: stack, handle: h, local: info.Local}, nil
}

// VWriteTo sends one datagram. Delivery is not guaranteed.
func (u *VUDPConn) VWriteTo(data []byte, to netip.AddrPort) (int, error) {
	if u.closed {
		return 0, ErrClosed
	}
	dst, err := toAddr(to)
	if err != nil {
		return 0, err
	}
	return u.stack.SendTo(u.handle, data, dst)
}

// VReadFrom copies pending bytes into buf and reports their sender.
func (u *VUDPConn) VReadFrom(buf []byte) (int, netip.AddrPort, error) {
	if u.closed {
		return 0, netip.AddrPort{}, ErrClosed
	}
	data, from, err := u.stack.RecvFrom(u.handle, len(buf))
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return copy(buf, data), from.AddrPort(), nil
}

func (u *VUDPConn) VClose() error {
	if u.closed {
		return errors.Wrap(ErrClosed, "socket already closed")
	}
	u.closed = true
	return u.stack.Close(u.handle)
}

func (u *VUDPConn) Handle() int { return u.handle }

func (u *VUDPConn) LocalAddr() netip.AddrPort { return u.local.AddrPort() }
