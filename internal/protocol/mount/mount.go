package mount

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/xdr"
	xdr2 "github.com/rasky/go-xdr/xdr2"
)

// MountRequest is the MNT argument. UMNT takes the same dirpath.
type MountRequest struct {
	DirPath string
}

// MountResponse is mountres3.
type MountResponse struct {
	Status      uint32
	FileHandle  []byte
	AuthFlavors []uint32
}

func (req *MountRequest) Encode() ([]byte, error) {
	if len(req.DirPath) > MaxPathLen {
		return nil, fmt.Errorf("mount path length %d exceeds maximum %d", len(req.DirPath), MaxPathLen)
	}
	var buf bytes.Buffer
	if _, err := xdr2.Marshal(&buf, req); err != nil {
		return nil, fmt.Errorf("marshal mount request: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeMountRequest(data []byte) (*MountRequest, error) {
	req := &MountRequest{}
	if _, err := xdr2.Unmarshal(bytes.NewReader(data), req); err != nil {
		return nil, fmt.Errorf("unmarshal mount request: %w", err)
	}
	if len(req.DirPath) > MaxPathLen {
		return nil, fmt.Errorf("mount path length %d exceeds maximum %d", len(req.DirPath), MaxPathLen)
	}
	return req, nil
}

func (resp *MountResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	xdr.WriteUint32(&buf, resp.Status)
	if resp.Status != MountOK {
		return buf.Bytes(), nil
	}

	xdr.EncodeOpaque(&buf, resp.FileHandle)
	xdr.WriteUint32(&buf, uint32(len(resp.AuthFlavors)))
	for _, flavor := range resp.AuthFlavors {
		xdr.WriteUint32(&buf, flavor)
	}
	return buf.Bytes(), nil
}

func DecodeMountResponse(data []byte) (*MountResponse, error) {
	reader := bytes.NewReader(data)
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	resp := &MountResponse{Status: status}
	if status != MountOK {
		return resp, nil
	}

	if resp.FileHandle, err = xdr.DecodeFileHandle(reader); err != nil {
		return nil, err
	}

	count, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read auth count: %w", err)
	}
	// Every flavor takes four bytes; a larger count cannot be honest.
	if int(count) > reader.Len()/4 {
		return nil, fmt.Errorf("auth flavor count %d exceeds remaining data", count)
	}
	resp.AuthFlavors = make([]uint32, count)
	for i := range resp.AuthFlavors {
		if resp.AuthFlavors[i], err = xdr.DecodeUint32(reader); err != nil {
			return nil, fmt.Errorf("read auth flavor: %w", err)
		}
	}
	return resp, nil
}

// StatusString names a mountstat3 value.
func StatusString(status uint32) string {
	switch status {
	case MountOK:
		return "MNT3_OK"
	case MountErrPerm:
		return "MNT3ERR_PERM"
	case MountErrNoEnt:
		return "MNT3ERR_NOENT"
	case MountErrIO:
		return "MNT3ERR_IO"
	case MountErrAccess:
		return "MNT3ERR_ACCES"
	case MountErrNotDir:
		return "MNT3ERR_NOTDIR"
	case MountErrInval:
		return "MNT3ERR_INVAL"
	case MountErrNameTooLong:
		return "MNT3ERR_NAMETOOLONG"
	case MountErrNotSupp:
		return "MNT3ERR_NOTSUPP"
	case MountErrServerFault:
		return "MNT3ERR_SERVERFAULT"
	default:
		return fmt.Sprintf("MNT3ERR_%d", status)
	}
}
