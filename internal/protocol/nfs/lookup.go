package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// LookupRequest is LOOKUP3args (diropargs3).
type LookupRequest struct {
	Dir  []byte
	Name string
}

// LookupResponse is LOOKUP3res.
type LookupResponse struct {
	Status  uint32
	Handle  []byte
	Attr    *types.NFSFileAttr
	DirAttr *types.NFSFileAttr
}

func (req *LookupRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Dir); err != nil {
		return nil, err
	}
	return marshal(req)
}

func DecodeLookupRequest(data []byte) (*LookupRequest, error) {
	req := &LookupRequest{}
	if err := unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode LOOKUP request: %w", err)
	}
	if err := checkHandle(req.Dir); err != nil {
		return nil, err
	}
	return req, nil
}

func (resp *LookupResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)

	if resp.Status == types.NFS3OK {
		xdr.EncodeOpaque(&buf, resp.Handle)
		if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
			return nil, err
		}
	}
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.DirAttr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeLookupResponse(data []byte) (*LookupResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode LOOKUP status: %w", err)
	}

	resp := &LookupResponse{Status: status}
	if status == types.NFS3OK {
		if resp.Handle, err = xdr.DecodeFileHandle(reader); err != nil {
			return nil, fmt.Errorf("decode LOOKUP handle: %w", err)
		}
		if resp.Attr, err = xdr.DecodeOptionalFileAttr(reader); err != nil {
			return nil, fmt.Errorf("decode LOOKUP attributes: %w", err)
		}
	}
	if resp.DirAttr, err = xdr.DecodeOptionalFileAttr(reader); err != nil {
		return nil, fmt.Errorf("decode LOOKUP dir attributes: %w", err)
	}
	return resp, nil
}
