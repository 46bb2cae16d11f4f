package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// CreateRequest is CREATE3args. Attrs is used for UNCHECKED and GUARDED
// creates, Verf for EXCLUSIVE.
type CreateRequest struct {
	Dir   []byte
	Name  string
	Mode  uint32
	Attrs types.SetAttrs
	Verf  uint64
}

// MkdirRequest is MKDIR3args.
type MkdirRequest struct {
	Dir   []byte
	Name  string
	Attrs types.SetAttrs
}

// CreateResponse is CREATE3res, also used for MKDIR3res which has the same
// layout.
type CreateResponse struct {
	Status uint32
	Handle []byte
	Attr   *types.NFSFileAttr
	DirWcc types.WccData
}

func (req *CreateRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Dir); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	xdr.EncodeOpaque(&buf, req.Dir)
	xdr.EncodeString(&buf, req.Name)
	xdr.WriteUint32(&buf, req.Mode)

	switch req.Mode {
	case types.CreateUnchecked, types.CreateGuarded:
		xdr.EncodeSetAttrs(&buf, req.Attrs)
	case types.CreateExclusive:
		xdr.WriteUint64(&buf, req.Verf)
	default:
		return nil, fmt.Errorf("invalid create mode: %d", req.Mode)
	}
	return buf.Bytes(), nil
}

func DecodeCreateRequest(data []byte) (*CreateRequest, error) {
	reader := bytes.NewReader(data)
	req := &CreateRequest{}

	var err error
	if req.Dir, req.Name, err = decodeDirOp(reader); err != nil {
		return nil, fmt.Errorf("decode CREATE: %w", err)
	}
	if req.Mode, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode CREATE mode: %w", err)
	}

	switch req.Mode {
	case types.CreateUnchecked, types.CreateGuarded:
		if req.Attrs, err = xdr.DecodeSetAttrs(reader); err != nil {
			return nil, fmt.Errorf("decode CREATE attributes: %w", err)
		}
	case types.CreateExclusive:
		if req.Verf, err = xdr.DecodeUint64(reader); err != nil {
			return nil, fmt.Errorf("decode CREATE verifier: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid create mode: %d", req.Mode)
	}
	return req, nil
}

func (req *MkdirRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Dir); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	xdr.EncodeOpaque(&buf, req.Dir)
	xdr.EncodeString(&buf, req.Name)
	xdr.EncodeSetAttrs(&buf, req.Attrs)
	return buf.Bytes(), nil
}

func DecodeMkdirRequest(data []byte) (*MkdirRequest, error) {
	reader := bytes.NewReader(data)
	req := &MkdirRequest{}

	var err error
	if req.Dir, req.Name, err = decodeDirOp(reader); err != nil {
		return nil, fmt.Errorf("decode MKDIR: %w", err)
	}
	if req.Attrs, err = xdr.DecodeSetAttrs(reader); err != nil {
		return nil, fmt.Errorf("decode MKDIR attributes: %w", err)
	}
	return req, nil
}

func (resp *CreateResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)

	if resp.Status == types.NFS3OK {
		xdr.EncodeOptionalOpaque(&buf, resp.Handle)
		if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
			return nil, err
		}
	}
	if err := xdr.EncodeWccData(&buf, resp.DirWcc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeCreateResponse(data []byte) (*CreateResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode CREATE status: %w", err)
	}

	resp := &CreateResponse{Status: status}
	if status == types.NFS3OK {
		if resp.Handle, err = xdr.DecodeOptionalFileHandle(reader); err != nil {
			return nil, fmt.Errorf("decode CREATE handle: %w", err)
		}
		if resp.Attr, err = xdr.DecodeOptionalFileAttr(reader); err != nil {
			return nil, fmt.Errorf("decode CREATE attributes: %w", err)
		}
	}
	if resp.DirWcc, err = xdr.DecodeWccData(reader); err != nil {
		return nil, fmt.Errorf("decode CREATE dir wcc: %w", err)
	}
	return resp, nil
}

func decodeDirOp(reader *bytes.Reader) ([]byte, string, error) {
	dir, err := xdr.DecodeFileHandle(reader)
	if err != nil {
		return nil, "", fmt.Errorf("dir handle: %w", err)
	}
	if err := checkHandle(dir); err != nil {
		return nil, "", err
	}
	name, err := xdr.DecodeString(reader)
	if err != nil {
		return nil, "", fmt.Errorf("name: %w", err)
	}
	return dir, name, nil
}
