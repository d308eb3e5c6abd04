// Package socket wraps stack handles in connection and listener types with
// the VListen/VAccept/VConnect/VRead/VWrite/VClose surface.
package socket

import (
	"net/netip"

	"SIM-TCP/pkg/ipstack"
	"SIM-TCP/pkg/iptcpstack"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("use of closed socket")

func toAddr(ap netip.AddrPort) (ipstack.Addr, error) {
	ip := ap.Addr().Unmap()
	if !ip.Is4() {
		return ipstack.Addr{}, errors.Wrapf(ipstack.ErrBadAddress, "%s", ap)
	}
	return ipstack.AddrFrom(ip, ap.Port()), nil
}

func closeQuietly(stack *iptcpstack.Stack, h int) {
	_ = stack.Close(h)
}
