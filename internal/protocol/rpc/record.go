package rpc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxRecordSize bounds a reassembled record. It comfortably fits a
// READ reply carrying a 1MB block plus headers.
const DefaultMaxRecordSize = 4 * 1024 * 1024

// ErrRecordTooLarge is returned when the fragments of one record exceed the
// configured maximum.
var ErrRecordTooLarge = errors.New("rpc record exceeds maximum size")

// FragmentHeader is the 4-byte record marking header.
type FragmentHeader struct {
	IsLast bool
	Length uint32
}

// ReadFragmentHeader reads and decodes one fragment header.
func ReadFragmentHeader(r io.Reader) (FragmentHeader, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FragmentHeader{}, err
	}
	h := binary.BigEndian.Uint32(buf[:])
	return FragmentHeader{
		IsLast: h&LastFragmentFlag != 0,
		Length: h & FragmentLengthMask,
	}, nil
}

// RecordReader reassembles record-marked messages from a byte stream.
// Fragments accumulate until one carries the last-fragment flag.
type RecordReader struct {
	r             io.Reader
	maxRecordSize int
}

// NewRecordReader returns a reader yielding one complete message per
// ReadRecord call. maxRecordSize <= 0 selects DefaultMaxRecordSize.
func NewRecordReader(r io.Reader, maxRecordSize int) *RecordReader {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	return &RecordReader{r: r, maxRecordSize: maxRecordSize}
}

// ReadRecord returns the next complete message.
//
// io.EOF is returned only when the stream ends cleanly between records; a
// stream ending inside a record yields io.ErrUnexpectedEOF.
func (rr *RecordReader) ReadRecord() ([]byte, error) {
	var record []byte
	first := true

	for {
		header, err := ReadFragmentHeader(rr.r)
		if err != nil {
			if errors.Is(err, io.EOF) && !first {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		first = false

		if len(record)+int(header.Length) > rr.maxRecordSize {
			return nil, fmt.Errorf("%w: %d bytes (max %d)",
				ErrRecordTooLarge, len(record)+int(header.Length), rr.maxRecordSize)
		}

		start := len(record)
		record = append(record, make([]byte, header.Length)...)
		if _, err := io.ReadFull(rr.r, record[start:]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read fragment body: %w", err)
		}

		if header.IsLast {
			return record, nil
		}
	}
}

// FrameRecord prepends a single last-fragment header to payload.
func FrameRecord(payload []byte) []byte {
	framed := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(framed, LastFragmentFlag|uint32(len(payload)))
	copy(framed[4:], payload)
	return framed
}

// WriteRecord writes payload as one record split into fragments of at most
// maxFragment bytes.
func WriteRecord(w io.Writer, payload []byte, maxFragment int) error {
	if maxFragment <= 0 || maxFragment > FragmentLengthMask {
		maxFragment = FragmentLengthMask
	}

	for {
		n := len(payload)
		last := true
		if n > maxFragment {
			n = maxFragment
			last = false
		}

		var header [4]byte
		h := uint32(n)
		if last {
			h |= LastFragmentFlag
		}
		binary.BigEndian.PutUint32(header[:], h)
		if _, err := w.Write(header[:]); err != nil {
			return fmt.Errorf("write fragment header: %w", err)
		}
		if _, err := w.Write(payload[:n]); err != nil {
			return fmt.Errorf("write fragment body: %w", err)
		}

		payload = payload[n:]
		if last {
			return nil
		}
	}
}
