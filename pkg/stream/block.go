package stream

import (
	"fmt"
	"io"

	"github.com/google/btree"
	"go.uber.org/atomic"
)

const (
	// MinBlockBits and MaxBlockBits bound the block size to 2 B .. 16 MiB.
	MinBlockBits = 1
	MaxBlockBits = 24
)

// Block is one block of file content: a buffer of exactly 2^bits bytes
// holding the valid byte range [start, start+length).
//
// A block is owned by a single stream. Only the ready flag may be observed
// from another goroutine.
type Block struct {
	id     int64
	bits   uint
	buf    []byte
	start  int
	length int
	ready  atomic.Bool
}

// NewBlock allocates a block for the given block id. The buffer comes from the
// shared block pool; call Release when done with it.
func NewBlock(id int64, bits uint) (*Block, error) {
	if bits < MinBlockBits || bits > MaxBlockBits {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockBits, bits)
	}
	if id < 0 {
		return nil, fmt.Errorf("negative block id %d", id)
	}
	size := 1 << bits
	return &Block{
		id:    id,
		bits:  bits,
		buf:   getBuffer(bits),
		start: size,
	}, nil
}

// ID returns the block id (file offset >> bits).
func (b *Block) ID() int64 { return b.id }

// Size returns the capacity of the block in bytes.
func (b *Block) Size() int { return 1 << b.bits }

// Start returns the offset of the first valid byte within the block.
func (b *Block) Start() int {
	if b.length == 0 {
		return 0
	}
	return b.start
}

// Len returns the number of valid bytes.
func (b *Block) Len() int { return b.length }

// End returns the offset one past the last valid byte.
func (b *Block) End() int { return b.Start() + b.length }

// FileOffset returns the absolute file offset of the first valid byte.
func (b *Block) FileOffset() int64 {
	return b.id<<b.bits + int64(b.Start())
}

// Bytes returns the valid range. The slice aliases the block buffer.
func (b *Block) Bytes() []byte {
	if b.buf == nil || b.length == 0 {
		return nil
	}
	return b.buf[b.start : b.start+b.length]
}

// Ready reports whether the block content is usable.
func (b *Block) Ready() bool { return b.ready.Load() }

// MarkReady flags the block content as usable.
func (b *Block) MarkReady() { b.ready.Store(true) }

// ReadAt copies valid bytes starting at off (relative to the block) into p.
// It returns 0, io.EOF when off is at or past the end of the valid range.
func (b *Block) ReadAt(p []byte, off int) (int, error) {
	if b.buf == nil {
		return 0, ErrBlockReleased
	}
	if off < 0 || off > b.Size() {
		return 0, fmt.Errorf("%w: read offset %d in block of %d bytes", ErrBlockBounds, off, b.Size())
	}
	if off >= b.End() {
		return 0, io.EOF
	}
	if off < b.Start() {
		return 0, fmt.Errorf("%w: read offset %d before valid start %d", ErrBlockBounds, off, b.Start())
	}
	return copy(p, b.buf[off:b.End()]), nil
}

// WriteAt copies as much of p as fits into the block at off and extends the
// valid range to cover it. Bytes between an earlier valid range and off are
// part of the range afterwards (they read back as zeros).
func (b *Block) WriteAt(p []byte, off int) (int, error) {
	if b.buf == nil {
		return 0, ErrBlockReleased
	}
	if off < 0 || off >= b.Size() {
		return 0, fmt.Errorf("%w: write offset %d in block of %d bytes", ErrBlockBounds, off, b.Size())
	}

	n := copy(b.buf[off:], p)
	if n == 0 {
		return 0, nil
	}

	end := off + n
	if b.length > 0 && b.End() > end {
		end = b.End()
	}
	b.start = min(off, b.start)
	b.length = end - b.start
	return n, nil
}

// Release returns the buffer to the pool. The block is unusable afterwards.
func (b *Block) Release() {
	if b.buf == nil {
		return
	}
	putBuffer(b.bits, b.buf)
	b.buf = nil
}

// Less orders blocks by id inside the ready-block tree.
func (b *Block) Less(than btree.Item) bool {
	return b.id < than.(*Block).id
}

func (b *Block) String() string {
	return fmt.Sprintf("block %d [%d,%d)", b.id, b.Start(), b.End())
}
