package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// RenameRequest is RENAME3args.
type RenameRequest struct {
	FromDir  []byte
	FromName string
	ToDir    []byte
	ToName   string
}

// RenameResponse is RENAME3res.
type RenameResponse struct {
	Status     uint32
	FromDirWcc types.WccData
	ToDirWcc   types.WccData
}

func (req *RenameRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.FromDir); err != nil {
		return nil, err
	}
	if err := checkHandle(req.ToDir); err != nil {
		return nil, err
	}
	return marshal(req)
}

func DecodeRenameRequest(data []byte) (*RenameRequest, error) {
	req := &RenameRequest{}
	if err := unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode RENAME request: %w", err)
	}
	if err := checkHandle(req.FromDir); err != nil {
		return nil, err
	}
	if err := checkHandle(req.ToDir); err != nil {
		return nil, err
	}
	return req, nil
}

func (resp *RenameResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)
	if err := xdr.EncodeWccData(&buf, resp.FromDirWcc); err != nil {
		return nil, err
	}
	if err := xdr.EncodeWccData(&buf, resp.ToDirWcc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeRenameResponse(data []byte) (*RenameResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode RENAME status: %w", err)
	}

	resp := &RenameResponse{Status: status}
	if resp.FromDirWcc, err = xdr.DecodeWccData(reader); err != nil {
		return nil, fmt.Errorf("decode RENAME from wcc: %w", err)
	}
	if resp.ToDirWcc, err = xdr.DecodeWccData(reader); err != nil {
		return nil, fmt.Errorf("decode RENAME to wcc: %w", err)
	}
	return resp, nil
}
