package stream

import "sync"

// ============================================================================
// Block Buffer Pool
// ============================================================================
//
// Read streams allocate up to a full read-ahead window of blocks (128 x 1MB
// by default) and discard them as the cursor moves on; write streams hand a
// block to the write-back pool on every rollover. Pooling the buffers per
// block size keeps that churn away from the garbage collector.
//
// Buffers are cleared when taken from the pool: a write block that is only
// partially filled must not leak bytes from a previous block into the gap it
// sends to the server.

var blockPools [MaxBlockBits + 1]sync.Pool

func init() {
	for bits := MinBlockBits; bits <= MaxBlockBits; bits++ {
		size := 1 << bits
		blockPools[bits].New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
}

func getBuffer(bits uint) []byte {
	buf := *blockPools[bits].Get().(*[]byte)
	clear(buf)
	return buf
}

func putBuffer(bits uint, buf []byte) {
	if len(buf) != 1<<bits {
		return
	}
	blockPools[bits].Put(&buf)
}
