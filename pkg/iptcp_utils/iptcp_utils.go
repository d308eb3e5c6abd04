// Package iptcp_utils encodes, decodes and checksums the TCP control segments
// exchanged between simulated endpoints during the handshake and teardown.
package iptcp_utils

import (
	"encoding/binary"
	"net/netip"

	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"
)

const (
	TcpHeaderLen       = header.TCPMinimumSize
	TcpPseudoHeaderLen = 12
	IpProtoTcp         = uint8(header.TCPProtocolNumber)
)

var ErrBadChecksum = errors.New("tcp checksum mismatch")

// ComputeTCPChecksum computes the TCP checksum over the IPv4 pseudo-header,
// the encoded header (with its checksum field as given) and the payload.
func ComputeTCPChecksum(tcpHdr *header.TCPFields, sourceIP netip.Addr, destIP netip.Addr, payload []byte) uint16 {
	pseudoHeaderBytes := make([]byte, TcpPseudoHeaderLen)
	src, dst := sourceIP.As4(), destIP.As4()
	copy(pseudoHeaderBytes[0:4], src[:])
	copy(pseudoHeaderBytes[4:8], dst[:])
	pseudoHeaderBytes[8] = 0
	pseudoHeaderBytes[9] = IpProtoTcp
	totalLength := TcpHeaderLen + len(payload)
	binary.BigEndian.PutUint16(pseudoHeaderBytes[10:12], uint16(totalLength))

	headerBytes := header.TCP(make([]byte, TcpHeaderLen))
	headerBytes.Encode(tcpHdr)

	pseudoHeaderChecksum := header.Checksum(pseudoHeaderBytes, 0)
	headerChecksum := header.Checksum(headerBytes, pseudoHeaderChecksum)
	fullChecksum := header.Checksum(payload, headerChecksum)
	return fullChecksum ^ 0xffff
}

// ParseTCPHeader decodes the fixed 20-byte header at the start of b.
func ParseTCPHeader(b []byte) header.TCPFields {
	td := header.TCP(b)
	return header.TCPFields{
		SrcPort:    td.SourcePort(),
		DstPort:    td.DestinationPort(),
		SeqNum:     td.SequenceNumber(),
		AckNum:     td.AckNumber(),
		DataOffset: td.DataOffset(),
		Flags:      td.Flags(),
		WindowSize: td.WindowSize(),
		Checksum:   td.Checksum(),
	}
}

// BuildSegment encodes tcpHdr followed by payload, filling in the checksum.
func BuildSegment(tcpHdr header.TCPFields, sourceIP, destIP netip.Addr, payload []byte) []byte {
	tcpHdr.DataOffset = TcpHeaderLen
	tcpHdr.Checksum = 0
	tcpHdr.Checksum = ComputeTCPChecksum(&tcpHdr, sourceIP, destIP, payload)

	segment := make([]byte, TcpHeaderLen+len(payload))
	header.TCP(segment).Encode(&tcpHdr)
	copy(segment[TcpHeaderLen:], payload)
	return segment
}

// ValidateSegment parses segment and verifies its checksum against the
// addresses it travelled between.
func ValidateSegment(segment []byte, sourceIP, destIP netip.Addr) (header.TCPFields, []byte, error) {
	if len(segment) < TcpHeaderLen {
		return header.TCPFields{}, nil, errors.Errorf("short tcp segment: %d bytes", len(segment))
	}
	tcpHdr := ParseTCPHeader(segment)
	offset := int(tcpHdr.DataOffset)
	if offset < TcpHeaderLen || offset > len(segment) {
		return header.TCPFields{}, nil, errors.Errorf("bad tcp data offset %d", offset)
	}
	payload := segment[offset:]

	fromHeader := tcpHdr.Checksum
	tcpHdr.Checksum = 0
	computed := ComputeTCPChecksum(&tcpHdr, sourceIP, destIP, payload)
	if computed != fromHeader {
		return header.TCPFields{}, nil, errors.Wrapf(ErrBadChecksum, "got %#04x want %#04x", fromHeader, computed)
	}
	tcpHdr.Checksum = fromHeader
	return tcpHdr, payload, nil
}
