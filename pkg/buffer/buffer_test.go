package buffer

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePartial(t *testing.T) {
	b := New(8)
	assert.Equal(t, 5, b.Write([]byte("hello")))
	assert.Equal(t, 3, b.Write([]byte("world")))
	assert.Equal(t, 0, b.Write([]byte("!")))
	assert.Equal(t, Status{Used: 8, Free: 0, Capacity: 8}, b.Status())
	assert.Equal(t, []byte("hellowor"), b.Drain())
}

func TestReadShiftsFront(t *testing.T) {
	b := New(DefaultSize)
	b.Write([]byte("abcdef"))
	assert.Equal(t, []byte("ab"), b.Read(2))
	assert.Equal(t, []byte("cd"), b.Read(2))
	b.Write([]byte("gh"))
	assert.Equal(t, []byte("efgh"), b.Read(100))
	assert.Empty(t, b.Read(10))
	assert.Nil(t, b.Read(0))
}

func TestReadInto(t *testing.T) {
	b := New(16)
	p := make([]byte, 4)
	assert.Equal(t, 0, b.ReadInto(p))
	b.Write([]byte("xyz"))
	assert.Equal(t, 3, b.ReadInto(p))
	assert.Equal(t, []byte("xyz"), p[:3])
}

func TestWrapAround(t *testing.T) {
	b := New(4)
	for i := 0; i < 10; i++ {
		require.Equal(t, 3, b.Write([]byte{byte(i), byte(i + 1), byte(i + 2)}))
		require.Equal(t, []byte{byte(i), byte(i + 1), byte(i + 2)}, b.Read(3))
	}
}

func TestResizeTruncatesNewest(t *testing.T) {
	b := New(10)
	b.Write([]byte("0123456789"))
	dropped, err := b.Resize(4)
	require.NoError(t, err)
	assert.Equal(t, 6, dropped)
	assert.Equal(t, 4, b.Cap())
	assert.Equal(t, []byte("0123"), b.Drain())

	b.Write([]byte("ab"))
	dropped, err = b.Resize(32)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, 30, b.Free())
	assert.Equal(t, []byte("ab"), b.Read(2))

	_, err = b.Resize(0)
	assert.True(t, errors.Is(err, ErrBadCapacity))
}

func TestClearKeepsCapacity(t *testing.T) {
	b := New(64)
	b.Write([]byte("data"))
	b.Clear()
	assert.Zero(t, b.Len())
	assert.Equal(t, 64, b.Cap())
	assert.True(t, b.HasSpace(64))
	assert.False(t, b.HasSpace(65))
}

func TestConcurrentWriteRead(t *testing.T) {
	b := New(1024)
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Write([]byte("x"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				n := len(b.Read(1))
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, total+b.Len())
}
