package stream

import "errors"

var (
	// ErrClosed is returned by any operation on a closed stream.
	ErrClosed = errors.New("stream closed")

	// ErrBlockBounds is returned when an offset falls outside a block's buffer.
	ErrBlockBounds = errors.New("offset outside block bounds")

	// ErrBlockReleased is returned when a block is used after its buffer went
	// back to the pool.
	ErrBlockReleased = errors.New("block buffer released")

	// ErrInvalidBlockBits is returned for block sizes outside 2^1..2^24.
	ErrInvalidBlockBits = errors.New("invalid block size bits")

	// ErrSeekOutOfRange is returned when seeking before 0 or past the file
	// length snapshotted at open.
	ErrSeekOutOfRange = errors.New("seek position out of range")

	// ErrFetchFailed is returned once a block could not be fetched after all
	// retries.
	ErrFetchFailed = errors.New("block fetch failed")

	// ErrShortWrite is returned when the server acknowledges fewer bytes than
	// were sent.
	ErrShortWrite = errors.New("short write")

	// ErrUnexpectedEOF is returned when the server reports no data before the
	// end of the file.
	ErrUnexpectedEOF = errors.New("server returned no data before end of file")

	// ErrDrainTimeout is returned by Close when workers did not finish within
	// the close timeout.
	ErrDrainTimeout = errors.New("timed out draining stream workers")
)
