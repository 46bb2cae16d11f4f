package nfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// FsInfoRequest is FSINFO3args.
type FsInfoRequest struct {
	Handle []byte
}

// FsInfo is the FSINFO3resok body after the optional attributes.
type FsInfo struct {
	Rtmax       uint32
	Rtpref      uint32
	Rtmult      uint32
	Wtmax       uint32
	Wtpref      uint32
	Wtmult      uint32
	Dtpref      uint32
	MaxFileSize uint64
	TimeDelta   types.TimeVal
	Properties  uint32
}

// FsInfoResponse is FSINFO3res.
type FsInfoResponse struct {
	Status uint32
	Attr   *types.NFSFileAttr
	Info   FsInfo
}

func (req *FsInfoRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	return marshal(req)
}

func DecodeFsInfoRequest(data []byte) (*FsInfoRequest, error) {
	req := &FsInfoRequest{}
	if err := unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode FSINFO request: %w", err)
	}
	if err := checkHandle(req.Handle); err != nil {
		return nil, err
	}
	return req, nil
}

func (resp *FsInfoResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, err
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := binary.Write(&buf, binary.BigEndian, &resp.Info); err != nil {
		return nil, fmt.Errorf("encode FSINFO body: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeFsInfoResponse(data []byte) (*FsInfoResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode FSINFO status: %w", err)
	}

	resp := &FsInfoResponse{Status: status}
	if resp.Attr, err = xdr.DecodeOptionalFileAttr(reader); err != nil {
		return nil, fmt.Errorf("decode FSINFO attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}
	if err := binary.Read(reader, binary.BigEndian, &resp.Info); err != nil {
		return nil, fmt.Errorf("decode FSINFO body: %w", err)
	}
	return resp, nil
}
