// Package ipstack holds the IPv4 address model shared by every layer of the
// simulated stack: socket addresses, wildcard/conflict rules, dotted-quad
// helpers and the sockaddr_in wire layout.
package ipstack

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/pkg/errors"
)

// Address families.
const (
	AF_UNSPEC = 0
	AF_UNIX   = 1
	AF_INET   = 2
)

const (
	// INADDR_ANY is the wildcard address, identical in both byte orders.
	INADDR_ANY uint32 = 0
	// INADDR_LOOPBACK is 127.0.0.1 in host byte order.
	INADDR_LOOPBACK uint32 = 0x7F000001
)

var ErrBadAddress = errors.New("invalid IPv4 address")

// Addr is an IPv4 socket address. IP and Port are kept in network byte order,
// the same way a sockaddr_in stores them; use HostPort and NetIP at the API
// boundary.
type Addr struct {
	Family uint16
	IP     uint32
	Port   uint16
}

// MakeAddr builds an address from a dotted-quad string and a host order port.
// An empty ip or "0.0.0.0" yields the wildcard address.
func MakeAddr(ip string, port uint16) (Addr, error) {
	if ip == "" {
		return AddrFromHost(INADDR_ANY, port), nil
	}
	parsed, err := netip.ParseAddr(ip)
	if err != nil {
		return Addr{}, errors.Wrapf(ErrBadAddress, "%q", ip)
	}
	if !parsed.Is4() {
		return Addr{}, errors.Wrapf(ErrBadAddress, "%q is not IPv4", ip)
	}
	return AddrFrom(parsed, port), nil
}

// MustAddr is like MakeAddr but panics on a malformed ip.
func MustAddr(ip string, port uint16) Addr {
	a, err := MakeAddr(ip, port)
	if err != nil {
		panic(err)
	}
	return a
}

// AddrFrom converts a netip.Addr and host order port.
func AddrFrom(ip netip.Addr, port uint16) Addr {
	b := ip.As4()
	return AddrFromHost(binary.BigEndian.Uint32(b[:]), port)
}

// AddrFromHost builds an address from a host order IP and port.
func AddrFromHost(ip uint32, port uint16) Addr {
	return Addr{Family: AF_INET, IP: Htonl(ip), Port: Htons(port)}
}

// Loopback returns 127.0.0.1 on the given host order port.
func Loopback(port uint16) Addr {
	return AddrFromHost(INADDR_LOOPBACK, port)
}

// HostPort returns the port in host byte order.
func (a Addr) HostPort() uint16 {
	return Ntohs(a.Port)
}

// HostIP returns the IP in host byte order.
func (a Addr) HostIP() uint32 {
	return Ntohl(a.IP)
}

func (a Addr) NetIP() netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], a.HostIP())
	return netip.AddrFrom4(b)
}

func (a Addr) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.NetIP(), a.HostPort())
}

// IsAny reports whether a is bound to the wildcard IP.
func (a Addr) IsAny() bool {
	return a.IP == INADDR_ANY
}

// IsZero reports whether a was never assigned a port. Unbound and unconnected
// endpoints carry a zero address.
func (a Addr) IsZero() bool {
	return a.Port == 0
}

// IsValid reports whether a is a usable IPv4 destination.
func (a Addr) IsValid() bool {
	return a.Family == AF_INET && a.Port != 0
}

// Conflicts reports whether binding b would clash with a: same port and
// either side wildcard or identical IPs.
func (a Addr) Conflicts(b Addr) bool {
	if a.Port != b.Port {
		return false
	}
	return a.IP == INADDR_ANY || b.IP == INADDR_ANY || a.IP == b.IP
}

// Accepts reports whether a local address a receives traffic sent to dst.
func (a Addr) Accepts(dst Addr) bool {
	return a.Port == dst.Port && (a.IP == INADDR_ANY || a.IP == dst.IP)
}

func (a Addr) String() string {
	return fmt.Sprintf("%s:%d", InetNtoa(a.IP), a.HostPort())
}

// InetAddr converts a dotted-quad string into a network order IP. Malformed
// input yields INADDR_ANY.
func InetAddr(cp string) uint32 {
	a, err := MakeAddr(cp, 0)
	if err != nil {
		return INADDR_ANY
	}
	return a.IP
}

// InetNtoa formats a network order IP as a dotted quad.
func InetNtoa(ip uint32) string {
	h := Ntohl(ip)
	return fmt.Sprintf("%d.%d.%d.%d", byte(h>>24), byte(h>>16), byte(h>>8), byte(h))
}
