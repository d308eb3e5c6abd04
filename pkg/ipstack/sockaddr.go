package ipstack

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// SockAddrLen is the size of an encoded sockaddr_in.
const SockAddrLen = 16

// SerializeSockAddr lays a out as a sockaddr_in: family in host order, then
// port and IP in network order, then 8 zero bytes.
func SerializeSockAddr(a Addr) []byte {
	buffer := make([]byte, SockAddrLen)
	binary.NativeEndian.PutUint16(buffer[0:2], a.Family)
	binary.BigEndian.PutUint16(buffer[2:4], a.HostPort())
	binary.BigEndian.PutUint32(buffer[4:8], a.HostIP())
	return buffer
}

// DeserializeSockAddr decodes a sockaddr_in produced by SerializeSockAddr.
func DeserializeSockAddr(buffer []byte) (Addr, error) {
	if len(buffer) < SockAddrLen {
		return Addr{}, errors.Wrapf(ErrBadAddress, "sockaddr too short: %d bytes", len(buffer))
	}
	family := binary.NativeEndian.Uint16(buffer[0:2])
	if family != AF_INET {
		return Addr{}, errors.Wrapf(ErrBadAddress, "unsupported address family %d", family)
	}
	port := binary.BigEndian.Uint16(buffer[2:4])
	ip := binary.BigEndian.Uint32(buffer[4:8])
	return AddrFromHost(ip, port), nil
}
