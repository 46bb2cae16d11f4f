package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// RemoveRequest is REMOVE3args. RMDIR3args has the same layout.
type RemoveRequest struct {
	Dir  []byte
	Name string
}

// RemoveResponse is REMOVE3res and RMDIR3res.
type RemoveResponse struct {
	Status uint32
	DirWcc types.WccData
}

func (req *RemoveRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Dir); err != nil {
		return nil, err
	}
	return marshal(req)
}

func DecodeRemoveRequest(data []byte) (*RemoveRequest, error) {
	req := &RemoveRequest{}
	if err := unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode REMOVE request: %w", err)
	}
	if err := checkHandle(req.Dir); err != nil {
		return nil, err
	}
	return req, nil
}

func (resp *RemoveResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)
	if err := xdr.EncodeWccData(&buf, resp.DirWcc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeRemoveResponse(data []byte) (*RemoveResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode REMOVE status: %w", err)
	}
	resp := &RemoveResponse{Status: status}
	if resp.DirWcc, err = xdr.DecodeWccData(reader); err != nil {
		return nil, fmt.Errorf("decode REMOVE dir wcc: %w", err)
	}
	return resp, nil
}
