// Package xdr holds the hand-written XDR helpers for NFSv3 structures whose
// discriminated unions and optional fields are awkward to express as plain
// structs for the reflective codec.
package xdr

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
)

// MaxOpaqueLength bounds a decoded opaque field. READ and WRITE payloads are
// at most one 1MB block.
const MaxOpaqueLength = 1024 * 1024

// ============================================================================
// XDR Decoding Helpers - Wire Format → Go Structures
// ============================================================================

// DecodeUint32 reads a big-endian uint32.
func DecodeUint32(reader io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// DecodeUint64 reads a big-endian uint64 (XDR hyper).
func DecodeUint64(reader io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// DecodeBool reads an XDR boolean.
func DecodeBool(reader io.Reader) (bool, error) {
	v, err := DecodeUint32(reader)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// DecodeOpaque decodes XDR variable-length opaque data.
//
// Format: [length:uint32][data:length bytes][padding:0-3 bytes]
func DecodeOpaque(reader io.Reader) ([]byte, error) {
	length, err := DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	if length > MaxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, MaxOpaqueLength)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	// length=5 → padding=3, length=8 → padding=0
	padding := (4 - (length % 4)) % 4
	if padding > 0 {
		if _, err := io.CopyN(io.Discard, reader, int64(padding)); err != nil {
			return nil, fmt.Errorf("skip padding: %w", err)
		}
	}

	return data, nil
}

// DecodeString decodes an XDR string.
func DecodeString(reader io.Reader) (string, error) {
	data, err := DecodeOpaque(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeFileHandle decodes nfs_fh3, enforcing the 64 byte limit.
func DecodeFileHandle(reader io.Reader) ([]byte, error) {
	handle, err := DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("read file handle: %w", err)
	}
	if len(handle) > types.MaxFileHandleSize {
		return nil, fmt.Errorf("file handle length %d exceeds maximum %d", len(handle), types.MaxFileHandleSize)
	}
	return handle, nil
}

// DecodeOptionalFileHandle decodes post_op_fh3.
func DecodeOptionalFileHandle(reader io.Reader) ([]byte, error) {
	present, err := DecodeBool(reader)
	if err != nil {
		return nil, fmt.Errorf("read handle_follows: %w", err)
	}
	if !present {
		return nil, nil
	}
	return DecodeFileHandle(reader)
}

// DecodeTimeVal decodes nfstime3.
func DecodeTimeVal(reader io.Reader) (types.TimeVal, error) {
	var tv types.TimeVal
	if err := binary.Read(reader, binary.BigEndian, &tv); err != nil {
		return tv, err
	}
	return tv, nil
}

// DecodeFileAttr decodes fattr3.
func DecodeFileAttr(reader io.Reader) (*types.NFSFileAttr, error) {
	// fattr3 is fixed-size and laid out exactly like NFSFileAttr.
	attr := &types.NFSFileAttr{}
	if err := binary.Read(reader, binary.BigEndian, attr); err != nil {
		return nil, fmt.Errorf("read fattr3: %w", err)
	}
	return attr, nil
}

// DecodeOptionalFileAttr decodes post_op_attr.
func DecodeOptionalFileAttr(reader io.Reader) (*types.NFSFileAttr, error) {
	present, err := DecodeBool(reader)
	if err != nil {
		return nil, fmt.Errorf("read attributes_follow: %w", err)
	}
	if !present {
		return nil, nil
	}
	return DecodeFileAttr(reader)
}

// DecodeWccData decodes wcc_data.
func DecodeWccData(reader io.Reader) (types.WccData, error) {
	var wcc types.WccData

	present, err := DecodeBool(reader)
	if err != nil {
		return wcc, fmt.Errorf("read pre_op_attr flag: %w", err)
	}
	if present {
		before := &types.WccAttr{}
		if err := binary.Read(reader, binary.BigEndian, before); err != nil {
			return wcc, fmt.Errorf("read wcc_attr: %w", err)
		}
		wcc.Before = before
	}

	after, err := DecodeOptionalFileAttr(reader)
	if err != nil {
		return wcc, fmt.Errorf("read post_op_attr: %w", err)
	}
	wcc.After = after
	return wcc, nil
}

// DecodeSetAttrs decodes sattr3 (RFC 1813 Section 2.5.3).
func DecodeSetAttrs(reader io.Reader) (types.SetAttrs, error) {
	var attrs types.SetAttrs
	var err error

	if attrs.Mode, err = decodeOptionalUint32(reader, "mode"); err != nil {
		return attrs, err
	}
	if attrs.UID, err = decodeOptionalUint32(reader, "uid"); err != nil {
		return attrs, err
	}
	if attrs.GID, err = decodeOptionalUint32(reader, "gid"); err != nil {
		return attrs, err
	}

	setSize, err := DecodeBool(reader)
	if err != nil {
		return attrs, fmt.Errorf("read set_size: %w", err)
	}
	if setSize {
		size, err := DecodeUint64(reader)
		if err != nil {
			return attrs, fmt.Errorf("read size: %w", err)
		}
		attrs.Size = &size
	}

	if attrs.AtimeHow, attrs.Atime, err = decodeSetTime(reader, "atime"); err != nil {
		return attrs, err
	}
	if attrs.MtimeHow, attrs.Mtime, err = decodeSetTime(reader, "mtime"); err != nil {
		return attrs, err
	}
	return attrs, nil
}

func decodeOptionalUint32(reader io.Reader, field string) (*uint32, error) {
	set, err := DecodeBool(reader)
	if err != nil {
		return nil, fmt.Errorf("read set_%s: %w", field, err)
	}
	if !set {
		return nil, nil
	}
	v, err := DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return &v, nil
}

func decodeSetTime(reader io.Reader, field string) (uint32, types.TimeVal, error) {
	how, err := DecodeUint32(reader)
	if err != nil {
		return 0, types.TimeVal{}, fmt.Errorf("read set_%s: %w", field, err)
	}
	switch how {
	case types.TimeDontChange, types.TimeSetToServer:
		return how, types.TimeVal{}, nil
	case types.TimeSetToClient:
		tv, err := DecodeTimeVal(reader)
		if err != nil {
			return 0, tv, fmt.Errorf("read %s: %w", field, err)
		}
		return how, tv, nil
	default:
		return 0, types.TimeVal{}, fmt.Errorf("invalid set_%s value: %d", field, how)
	}
}
