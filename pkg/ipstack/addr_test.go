package ipstack

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteOrderRoundTrip16(t *testing.T) {
	for x := 0; x <= 0xFFFF; x++ {
		v := uint16(x)
		if Htons(Ntohs(v)) != v || Ntohs(Htons(v)) != v {
			t.Fatalf("16-bit round trip failed for %#04x", v)
		}
	}
}

func TestByteOrderRoundTrip32(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := []uint32{0, 1, 0xFF, 0x7F000001, 0xFFFFFFFF, 0x80000000}
	for i := 0; i < 100000; i++ {
		samples = append(samples, rng.Uint32())
	}
	for _, v := range samples {
		if Htonl(Ntohl(v)) != v || Ntohl(Htonl(v)) != v {
			t.Fatalf("32-bit round trip failed for %#08x", v)
		}
	}
}

func TestHtonsIsBigEndian(t *testing.T) {
	a := AddrFromHost(INADDR_LOOPBACK, 0x1234)
	b := SerializeSockAddr(a)
	assert.Equal(t, []byte{0x12, 0x34}, b[2:4])
	assert.Equal(t, []byte{127, 0, 0, 1}, b[4:8])
}

func TestMakeAddr(t *testing.T) {
	a, err := MakeAddr("127.0.0.1", 9001)
	require.NoError(t, err)
	assert.Equal(t, uint16(9001), a.HostPort())
	assert.Equal(t, INADDR_LOOPBACK, a.HostIP())
	assert.Equal(t, "127.0.0.1:9001", a.String())
	assert.Equal(t, a, Loopback(9001))

	wild, err := MakeAddr("0.0.0.0", 8080)
	require.NoError(t, err)
	assert.True(t, wild.IsAny())

	_, err = MakeAddr("::1", 80)
	assert.True(t, errors.Is(err, ErrBadAddress))
	_, err = MakeAddr("300.1.1.1", 80)
	assert.True(t, errors.Is(err, ErrBadAddress))
}

func TestConflicts(t *testing.T) {
	lo := MustAddr("127.0.0.1", 8080)
	other := MustAddr("10.0.0.1", 8080)
	wild := MustAddr("0.0.0.0", 8080)

	assert.True(t, lo.Conflicts(lo))
	assert.True(t, lo.Conflicts(wild))
	assert.True(t, wild.Conflicts(lo))
	assert.False(t, lo.Conflicts(other))
	assert.False(t, lo.Conflicts(MustAddr("127.0.0.1", 8081)))
}

func TestAccepts(t *testing.T) {
	wild := MustAddr("0.0.0.0", 53)
	lo := MustAddr("127.0.0.1", 53)
	assert.True(t, wild.Accepts(lo))
	assert.True(t, lo.Accepts(lo))
	assert.False(t, lo.Accepts(MustAddr("10.0.0.2", 53)))
	assert.False(t, lo.Accepts(MustAddr("127.0.0.1", 54)))
}

func TestInetHelpers(t *testing.T) {
	ip := InetAddr("192.168.1.20")
	assert.Equal(t, "192.168.1.20", InetNtoa(ip))
	assert.Equal(t, INADDR_ANY, InetAddr("not-an-ip"))
}

func TestSockAddrCodec(t *testing.T) {
	a := MustAddr("10.1.2.3", 443)
	got, err := DeserializeSockAddr(SerializeSockAddr(a))
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = DeserializeSockAddr(make([]byte, 4))
	assert.Error(t, err)

	bad := SerializeSockAddr(a)
	bad[0], bad[1] = 0xFF, 0xFF
	_, err = DeserializeSockAddr(bad)
	assert.Error(t, err)
}
