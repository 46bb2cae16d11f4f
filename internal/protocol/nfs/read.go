package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// ReadRequest is READ3args.
type ReadRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
}

// ReadResponse is READ3res. Count, Eof and Data are only meaningful when
// Status is NFS3OK.
type ReadResponse struct {
	Status uint32
	Attr   *types.NFSFileAttr
	Count  uint32
	Eof    bool
	Data   []byte
}

func (req *ReadRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	return marshal(req)
}

func DecodeReadRequest(data []byte) (*ReadRequest, error) {
	req := &ReadRequest{}
	if err := unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode READ request: %w", err)
	}
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	return req, nil
}

func (resp *ReadResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(128 + len(resp.Data))

	xdr.WriteUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, err
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}

	xdr.WriteUint32(&buf, resp.Count)
	xdr.WriteBool(&buf, resp.Eof)
	xdr.EncodeOpaque(&buf, resp.Data)
	return buf.Bytes(), nil
}

func DecodeReadResponse(data []byte) (*ReadResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READ status: %w", err)
	}

	resp := &ReadResponse{Status: status}
	if resp.Attr, err = xdr.DecodeOptionalFileAttr(reader); err != nil {
		return nil, fmt.Errorf("decode READ attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	if resp.Count, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode READ count: %w", err)
	}
	if resp.Eof, err = xdr.DecodeBool(reader); err != nil {
		return nil, fmt.Errorf("decode READ eof: %w", err)
	}
	if resp.Data, err = xdr.DecodeOpaque(reader); err != nil {
		return nil, fmt.Errorf("decode READ data: %w", err)
	}
	if uint32(len(resp.Data)) != resp.Count {
		return nil, fmt.Errorf("READ count %d does not match data length %d", resp.Count, len(resp.Data))
	}
	return resp, nil
}
