package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// SetAttrRequest is SETATTR3args. When Guard is set the server only applies
// the change if the object's ctime still matches.
type SetAttrRequest struct {
	Handle []byte
	Attrs  types.SetAttrs
	Guard  *types.TimeVal
}

// SetAttrResponse is SETATTR3res.
type SetAttrResponse struct {
	Status uint32
	Wcc    types.WccData
}

func (req *SetAttrRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	xdr.EncodeOpaque(&buf, req.Handle)
	xdr.EncodeSetAttrs(&buf, req.Attrs)
	if req.Guard != nil {
		xdr.WriteBool(&buf, true)
		xdr.EncodeTimeVal(&buf, *req.Guard)
	} else {
		xdr.WriteBool(&buf, false)
	}
	return buf.Bytes(), nil
}

func DecodeSetAttrRequest(data []byte) (*SetAttrRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := xdr.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SETATTR handle: %w", err)
	}
	req := &SetAttrRequest{Handle: handle}

	if req.Attrs, err = xdr.DecodeSetAttrs(reader); err != nil {
		return nil, fmt.Errorf("decode SETATTR attributes: %w", err)
	}

	check, err := xdr.DecodeBool(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SETATTR guard: %w", err)
	}
	if check {
		ctime, err := xdr.DecodeTimeVal(reader)
		if err != nil {
			return nil, fmt.Errorf("decode SETATTR guard ctime: %w", err)
		}
		req.Guard = &ctime
	}
	return req, nil
}

func (resp *SetAttrResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)
	if err := xdr.EncodeWccData(&buf, resp.Wcc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeSetAttrResponse(data []byte) (*SetAttrResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SETATTR status: %w", err)
	}
	resp := &SetAttrResponse{Status: status}
	if resp.Wcc, err = xdr.DecodeWccData(reader); err != nil {
		return nil, fmt.Errorf("decode SETATTR wcc: %w", err)
	}
	return resp, nil
}
