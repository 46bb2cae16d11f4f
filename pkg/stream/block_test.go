package stream

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock(t *testing.T) {
	t.Run("InvalidBits", func(t *testing.T) {
		_, err := NewBlock(0, 0)
		assert.ErrorIs(t, err, ErrInvalidBlockBits)

		_, err = NewBlock(0, MaxBlockBits+1)
		assert.ErrorIs(t, err, ErrInvalidBlockBits)
	})

	t.Run("EmptyBlock", func(t *testing.T) {
		b, err := NewBlock(3, 4)
		require.NoError(t, err)
		defer b.Release()

		assert.Equal(t, 16, b.Size())
		assert.Zero(t, b.Len())
		assert.Zero(t, b.Start())
		assert.Nil(t, b.Bytes())
		assert.Equal(t, int64(48), b.FileOffset())

		n, err := b.ReadAt(make([]byte, 4), 0)
		assert.Zero(t, n)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("WriteAtExtendsRange", func(t *testing.T) {
		b, err := NewBlock(1, 4)
		require.NoError(t, err)
		defer b.Release()

		n, err := b.WriteAt([]byte("abc"), 5)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 5, b.Start())
		assert.Equal(t, 8, b.End())
		assert.Equal(t, int64(21), b.FileOffset())

		_, err = b.WriteAt([]byte("z"), 10)
		require.NoError(t, err)
		assert.Equal(t, 5, b.Start())
		assert.Equal(t, 11, b.End())
		assert.Equal(t, []byte("abc\x00\x00z"), b.Bytes())

		_, err = b.WriteAt([]byte("x"), 2)
		require.NoError(t, err)
		assert.Equal(t, 2, b.Start())
		assert.Equal(t, 9, b.Len())
	})

	t.Run("WriteAtTruncatesAtCapacity", func(t *testing.T) {
		b, err := NewBlock(0, 2)
		require.NoError(t, err)
		defer b.Release()

		n, err := b.WriteAt([]byte("123456"), 1)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 4, b.End())

		_, err = b.WriteAt([]byte("x"), 4)
		assert.ErrorIs(t, err, ErrBlockBounds)
	})

	t.Run("ReadAt", func(t *testing.T) {
		b, err := NewBlock(0, 4)
		require.NoError(t, err)
		defer b.Release()
		_, err = b.WriteAt([]byte("hello world"), 0)
		require.NoError(t, err)

		p := make([]byte, 5)
		n, err := b.ReadAt(p, 6)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "world", string(p))

		n, err = b.ReadAt(p, 11)
		assert.Zero(t, n)
		assert.ErrorIs(t, err, io.EOF)

		_, err = b.ReadAt(p, 17)
		assert.ErrorIs(t, err, ErrBlockBounds)
	})

	t.Run("Released", func(t *testing.T) {
		b, err := NewBlock(0, 4)
		require.NoError(t, err)
		b.Release()
		b.Release()

		_, err = b.ReadAt(make([]byte, 1), 0)
		assert.ErrorIs(t, err, ErrBlockReleased)
		_, err = b.WriteAt([]byte("x"), 0)
		assert.ErrorIs(t, err, ErrBlockReleased)
	})

	t.Run("PooledBufferIsCleared", func(t *testing.T) {
		b, err := NewBlock(0, 3)
		require.NoError(t, err)
		_, err = b.WriteAt([]byte("dirtydat"), 0)
		require.NoError(t, err)
		b.Release()

		fresh, err := NewBlock(0, 3)
		require.NoError(t, err)
		defer fresh.Release()
		_, err = fresh.WriteAt([]byte("x"), 7)
		require.NoError(t, err)

		_, err = fresh.WriteAt([]byte("y"), 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("y\x00\x00\x00\x00\x00\x00x"), fresh.Bytes())
	})

	t.Run("Ready", func(t *testing.T) {
		b, err := NewBlock(0, 4)
		require.NoError(t, err)
		defer b.Release()

		assert.False(t, b.Ready())
		b.MarkReady()
		assert.True(t, b.Ready())
	})

	t.Run("Ordering", func(t *testing.T) {
		a := &Block{id: 1}
		b := &Block{id: 2}
		assert.True(t, a.Less(b))
		assert.False(t, b.Less(a))
		assert.False(t, a.Less(a))
	})
}
