package ipstack

import (
	"math/bits"
	"unsafe"
)

// Host/network byte order conversion. Network order is big endian; the host
// order is detected once at startup so the helpers are no-ops on big endian
// machines and exact inverses of each other everywhere.

var isLittleEndian bool

func init() {
	var i uint16 = 1
	isLittleEndian = *(*byte)(unsafe.Pointer(&i)) == 1
}

// Htons converts a 16-bit value from host to network byte order.
func Htons(hostshort uint16) uint16 {
	if isLittleEndian {
		return bits.ReverseBytes16(hostshort)
	}
	return hostshort
}

// Ntohs converts a 16-bit value from network to host byte order.
func Ntohs(netshort uint16) uint16 {
	if isLittleEndian {
		return bits.ReverseBytes16(netshort)
	}
	return netshort
}

// Htonl converts a 32-bit value from host to network byte order.
func Htonl(hostlong uint32) uint32 {
	if isLittleEndian {
		return bits.ReverseBytes32(hostlong)
	}
	return hostlong
}

// Ntohl converts a 32-bit value from network to host byte order.
func Ntohl(netlong uint32) uint32 {
	if isLittleEndian {
		return bits.ReverseBytes32(netlong)
	}
	return netlong
}
