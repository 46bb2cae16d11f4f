package xdr

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
)

// ============================================================================
// XDR Encoding Helpers - Go Structures → Wire Format
// ============================================================================

// WriteUint32 appends a big-endian uint32.
func WriteUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// WriteUint64 appends a big-endian uint64 (XDR hyper).
func WriteUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// WriteBool appends an XDR boolean.
func WriteBool(buf *bytes.Buffer, v bool) {
	if v {
		WriteUint32(buf, 1)
		return
	}
	WriteUint32(buf, 0)
}

// EncodeOpaque encodes variable-length opaque data: length, bytes, padding.
func EncodeOpaque(buf *bytes.Buffer, data []byte) {
	length := uint32(len(data))
	WriteUint32(buf, length)
	buf.Write(data)
	for range (4 - (length % 4)) % 4 {
		buf.WriteByte(0)
	}
}

// EncodeString encodes an XDR string.
func EncodeString(buf *bytes.Buffer, s string) {
	EncodeOpaque(buf, []byte(s))
}

// EncodeOptionalOpaque encodes optional opaque data (e.g. post_op_fh3).
// Empty data is encoded as not present.
func EncodeOptionalOpaque(buf *bytes.Buffer, data []byte) {
	if len(data) == 0 {
		WriteUint32(buf, 0)
		return
	}
	WriteUint32(buf, 1)
	EncodeOpaque(buf, data)
}

// EncodeTimeVal encodes nfstime3.
func EncodeTimeVal(buf *bytes.Buffer, tv types.TimeVal) {
	WriteUint32(buf, tv.Seconds)
	WriteUint32(buf, tv.Nseconds)
}

// EncodeFileAttr encodes fattr3 (RFC 1813 Section 2.3.1).
func EncodeFileAttr(buf *bytes.Buffer, attr *types.NFSFileAttr) error {
	if attr == nil {
		return fmt.Errorf("encode fattr3: nil attributes")
	}
	WriteUint32(buf, attr.Type)
	WriteUint32(buf, attr.Mode)
	WriteUint32(buf, attr.Nlink)
	WriteUint32(buf, attr.UID)
	WriteUint32(buf, attr.GID)
	WriteUint64(buf, attr.Size)
	WriteUint64(buf, attr.Used)
	WriteUint32(buf, attr.Rdev.Major)
	WriteUint32(buf, attr.Rdev.Minor)
	WriteUint64(buf, attr.Fsid)
	WriteUint64(buf, attr.Fileid)
	EncodeTimeVal(buf, attr.Atime)
	EncodeTimeVal(buf, attr.Mtime)
	EncodeTimeVal(buf, attr.Ctime)
	return nil
}

// EncodeOptionalFileAttr encodes post_op_attr.
func EncodeOptionalFileAttr(buf *bytes.Buffer, attr *types.NFSFileAttr) error {
	if attr == nil {
		WriteUint32(buf, 0)
		return nil
	}
	WriteUint32(buf, 1)
	return EncodeFileAttr(buf, attr)
}

// EncodeWccData encodes wcc_data: pre_op_attr followed by post_op_attr.
func EncodeWccData(buf *bytes.Buffer, wcc types.WccData) error {
	if wcc.Before != nil {
		WriteUint32(buf, 1)
		WriteUint64(buf, wcc.Before.Size)
		EncodeTimeVal(buf, wcc.Before.Mtime)
		EncodeTimeVal(buf, wcc.Before.Ctime)
	} else {
		WriteUint32(buf, 0)
	}

	if err := EncodeOptionalFileAttr(buf, wcc.After); err != nil {
		return fmt.Errorf("encode after attributes: %w", err)
	}
	return nil
}

// EncodeSetAttrs encodes sattr3. Each field is a discriminated union whose
// discriminant says whether a value follows.
func EncodeSetAttrs(buf *bytes.Buffer, attrs types.SetAttrs) {
	encodeOptionalUint32(buf, attrs.Mode)
	encodeOptionalUint32(buf, attrs.UID)
	encodeOptionalUint32(buf, attrs.GID)

	if attrs.Size != nil {
		WriteUint32(buf, 1)
		WriteUint64(buf, *attrs.Size)
	} else {
		WriteUint32(buf, 0)
	}

	encodeSetTime(buf, attrs.AtimeHow, attrs.Atime)
	encodeSetTime(buf, attrs.MtimeHow, attrs.Mtime)
}

func encodeOptionalUint32(buf *bytes.Buffer, v *uint32) {
	if v == nil {
		WriteUint32(buf, 0)
		return
	}
	WriteUint32(buf, 1)
	WriteUint32(buf, *v)
}

func encodeSetTime(buf *bytes.Buffer, how uint32, tv types.TimeVal) {
	WriteUint32(buf, how)
	if how == types.TimeSetToClient {
		EncodeTimeVal(buf, tv)
	}
}
