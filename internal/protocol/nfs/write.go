package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// WriteRequest is WRITE3args. Count must equal len(Data).
type WriteRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
	Stable uint32
	Data   []byte
}

// WriteResponse is WRITE3res.
type WriteResponse struct {
	Status    uint32
	Wcc       types.WccData
	Count     uint32
	Committed uint32
	Verf      uint64
}

func (req *WriteRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	if int(req.Count) != len(req.Data) {
		return nil, fmt.Errorf("WRITE count %d does not match data length %d", req.Count, len(req.Data))
	}
	return marshal(req)
}

func DecodeWriteRequest(data []byte) (*WriteRequest, error) {
	req := &WriteRequest{}
	if err := unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode WRITE request: %w", err)
	}
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	if req.Stable > types.WriteFileSync {
		return nil, fmt.Errorf("invalid stable_how: %d", req.Stable)
	}
	return req, nil
}

func (resp *WriteResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)
	if err := xdr.EncodeWccData(&buf, resp.Wcc); err != nil {
		return nil, err
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}

	xdr.WriteUint32(&buf, resp.Count)
	xdr.WriteUint32(&buf, resp.Committed)
	xdr.WriteUint64(&buf, resp.Verf)
	return buf.Bytes(), nil
}

func DecodeWriteResponse(data []byte) (*WriteResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode WRITE status: %w", err)
	}

	resp := &WriteResponse{Status: status}
	if resp.Wcc, err = xdr.DecodeWccData(reader); err != nil {
		return nil, fmt.Errorf("decode WRITE wcc: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	if resp.Count, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode WRITE count: %w", err)
	}
	if resp.Committed, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode WRITE committed: %w", err)
	}
	if resp.Verf, err = xdr.DecodeUint64(reader); err != nil {
		return nil, fmt.Errorf("decode WRITE verifier: %w", err)
	}
	return resp, nil
}
