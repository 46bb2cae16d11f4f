package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// CommitRequest is COMMIT3args. Offset 0 with Count 0 commits the whole file.
type CommitRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
}

// CommitResponse is COMMIT3res.
type CommitResponse struct {
	Status uint32
	Wcc    types.WccData
	Verf   uint64
}

func (req *CommitRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	return marshal(req)
}

func DecodeCommitRequest(data []byte) (*CommitRequest, error) {
	req := &CommitRequest{}
	if err := unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode COMMIT request: %w", err)
	}
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	return req, nil
}

func (resp *CommitResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)
	if err := xdr.EncodeWccData(&buf, resp.Wcc); err != nil {
		return nil, err
	}
	if resp.Status == types.NFS3OK {
		xdr.WriteUint64(&buf, resp.Verf)
	}
	return buf.Bytes(), nil
}

func DecodeCommitResponse(data []byte) (*CommitResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode COMMIT status: %w", err)
	}

	resp := &CommitResponse{Status: status}
	if resp.Wcc, err = xdr.DecodeWccData(reader); err != nil {
		return nil, fmt.Errorf("decode COMMIT wcc: %w", err)
	}
	if status == types.NFS3OK {
		if resp.Verf, err = xdr.DecodeUint64(reader); err != nil {
			return nil, fmt.Errorf("decode COMMIT verifier: %w", err)
		}
	}
	return resp, nil
}
