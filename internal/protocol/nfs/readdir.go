package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
)

// ReadDirRequest is READDIR3args. Cookie 0 with a zero verifier starts a new
// listing; later pages pass back the cookie of the last entry received and
// the verifier returned by the server.
type ReadDirRequest struct {
	Dir        []byte
	Cookie     uint64
	CookieVerf uint64
	Count      uint32
}

// ReadDirResponse is READDIR3res.
type ReadDirResponse struct {
	Status     uint32
	DirAttr    *types.NFSFileAttr
	CookieVerf uint64
	Entries    []types.DirEntry
	Eof        bool
}

func (req *ReadDirRequest) Encode() ([]byte, error) {
	if err := checkHandle(req.Dir); err != nil {
		return nil, err
	}
	return marshal(req)
}

func DecodeReadDirRequest(data []byte) (*ReadDirRequest, error) {
	req := &ReadDirRequest{}
	if err := unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode READDIR request: %w", err)
	}
	if err := checkHandle(req.Dir); err != nil {
		return nil, err
	}
	return req, nil
}

func (resp *ReadDirResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.DirAttr); err != nil {
		return nil, err
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}

	xdr.WriteUint64(&buf, resp.CookieVerf)

	// entry3 is a linked list: value_follows, entry, value_follows, ...
	for _, entry := range resp.Entries {
		xdr.WriteBool(&buf, true)
		xdr.WriteUint64(&buf, entry.Fileid)
		xdr.EncodeString(&buf, entry.Name)
		xdr.WriteUint64(&buf, entry.Cookie)
	}
	xdr.WriteBool(&buf, false)
	xdr.WriteBool(&buf, resp.Eof)
	return buf.Bytes(), nil
}

func DecodeReadDirResponse(data []byte) (*ReadDirResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode READDIR status: %w", err)
	}

	resp := &ReadDirResponse{Status: status}
	if resp.DirAttr, err = xdr.DecodeOptionalFileAttr(reader); err != nil {
		return nil, fmt.Errorf("decode READDIR dir attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	if resp.CookieVerf, err = xdr.DecodeUint64(reader); err != nil {
		return nil, fmt.Errorf("decode READDIR verifier: %w", err)
	}

	for {
		follows, err := xdr.DecodeBool(reader)
		if err != nil {
			return nil, fmt.Errorf("decode READDIR entry marker: %w", err)
		}
		if !follows {
			break
		}

		var entry types.DirEntry
		if entry.Fileid, err = xdr.DecodeUint64(reader); err != nil {
			return nil, fmt.Errorf("decode READDIR fileid: %w", err)
		}
		if entry.Name, err = xdr.DecodeString(reader); err != nil {
			return nil, fmt.Errorf("decode READDIR name: %w", err)
		}
		if entry.Cookie, err = xdr.DecodeUint64(reader); err != nil {
			return nil, fmt.Errorf("decode READDIR cookie: %w", err)
		}
		resp.Entries = append(resp.Entries, entry)
	}

	if resp.Eof, err = xdr.DecodeBool(reader); err != nil {
		return nil, fmt.Errorf("decode READDIR eof: %w", err)
	}
	return resp, nil
}
