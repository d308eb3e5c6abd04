package iptcp_utils

import (
	"net/netip"
	"testing"

	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clientIP = netip.MustParseAddr("127.0.0.1")
	serverIP = netip.MustParseAddr("127.0.0.2")
)

func TestBuildAndValidateSegment(t *testing.T) {
	fields := header.TCPFields{
		SrcPort:    32768,
		DstPort:    8080,
		SeqNum:     1000,
		AckNum:     0,
		Flags:      header.TCPFlagSyn,
		WindowSize: 8192,
	}
	seg := BuildSegment(fields, clientIP, serverIP, []byte("hi"))
	require.Len(t, seg, TcpHeaderLen+2)

	got, payload, err := ValidateSegment(seg, clientIP, serverIP)
	require.NoError(t, err)
	assert.Equal(t, uint16(32768), got.SrcPort)
	assert.Equal(t, uint16(8080), got.DstPort)
	assert.Equal(t, uint32(1000), got.SeqNum)
	assert.Equal(t, uint8(header.TCPFlagSyn), got.Flags)
	assert.Equal(t, uint8(TcpHeaderLen), got.DataOffset)
	assert.NotZero(t, got.Checksum)
	assert.Equal(t, []byte("hi"), payload)
}

func TestValidateSegmentDetectsCorruption(t *testing.T) {
	seg := BuildSegment(header.TCPFields{SrcPort: 1, DstPort: 2, Flags: header.TCPFlagAck}, clientIP, serverIP, nil)
	seg[4] ^= 0xFF
	_, _, err := ValidateSegment(seg, clientIP, serverIP)
	assert.True(t, errors.Is(err, ErrBadChecksum))
}

func TestValidateSegmentWrongPseudoHeader(t *testing.T) {
	seg := BuildSegment(header.TCPFields{SrcPort: 1, DstPort: 2, Flags: header.TCPFlagFin}, clientIP, serverIP, nil)
	_, _, err := ValidateSegment(seg, serverIP, netip.MustParseAddr("10.0.0.1"))
	assert.Error(t, err)
}

func TestValidateShortSegment(t *testing.T) {
	_, _, err := ValidateSegment(make([]byte, 10), clientIP, serverIP)
	assert.Error(t, err)
}
