package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// GetAttrRequest is GETATTR3args.
type GetAttrRequest struct {
	Handle []byte
}

// GetAttrResponse is GETATTR3res. Attr is only set when Status is NFS3OK.
type GetAttrResponse struct {
	Status uint32
	Attr   *types.NFSFileAttr
}

func (req *GetAttrRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	return marshal(req)
}

func DecodeGetAttrRequest(data []byte) (*GetAttrRequest, error) {
	req := &GetAttrRequest{}
	if err := unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode GETATTR request: %w", err)
	}
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	return req, nil
}

func (resp *GetAttrResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.EncodeFileAttr(&buf, resp.Attr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeGetAttrResponse(data []byte) (*GetAttrResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode GETATTR status: %w", err)
	}

	resp := &GetAttrResponse{Status: status}
	if status != types.NFS3OK {
		return resp, nil
	}
	if resp.Attr, err = xdr.DecodeFileAttr(reader); err != nil {
		return nil, fmt.Errorf("decode GETATTR attributes: %w", err)
	}
	return resp, nil
}
