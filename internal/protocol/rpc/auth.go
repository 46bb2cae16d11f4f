package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// Credentials produce the cred/verf pair attached to every outgoing call.
type Credentials interface {
	// Credential returns the credential to place in the call header.
	Credential() (OpaqueAuth, error)

	// Verifier returns the verifier to place after the credential.
	Verifier() OpaqueAuth
}

// NullAuth is AUTH_NONE.
type NullAuth struct{}

func (NullAuth) Credential() (OpaqueAuth, error) {
	return OpaqueAuth{Flavor: AuthNull, Body: []byte{}}, nil
}

func (NullAuth) Verifier() OpaqueAuth {
	return OpaqueAuth{Flavor: AuthNull, Body: []byte{}}
}

// UnixAuth is the AUTH_UNIX (AUTH_SYS) credential body.
//
//	struct authsys_parms {
//	    unsigned int stamp;
//	    string machinename<255>;
//	    unsigned int uid;
//	    unsigned int gid;
//	    unsigned int gids<16>;
//	};
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// NewUnixAuth builds AUTH_UNIX credentials for uid/gid, stamped with the
// current time and the local hostname.
func NewUnixAuth(uid, gid uint32, gids ...uint32) *UnixAuth {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	if len(host) > MaxMachineNameLen {
		host = host[:MaxMachineNameLen]
	}
	return &UnixAuth{
		Stamp:       uint32(time.Now().Unix()),
		MachineName: host,
		UID:         uid,
		GID:         gid,
		GIDs:        gids,
	}
}

func (a *UnixAuth) Credential() (OpaqueAuth, error) {
	body, err := a.Encode()
	if err != nil {
		return OpaqueAuth{}, err
	}
	return OpaqueAuth{Flavor: AuthUnix, Body: body}, nil
}

func (a *UnixAuth) Verifier() OpaqueAuth {
	return OpaqueAuth{Flavor: AuthNull, Body: []byte{}}
}

// Encode serializes the credential body.
func (a *UnixAuth) Encode() ([]byte, error) {
	if len(a.MachineName) > MaxMachineNameLen {
		return nil, fmt.Errorf("machine name too long: %d bytes", len(a.MachineName))
	}
	if len(a.GIDs) > MaxUnixGIDs {
		return nil, fmt.Errorf("too many gids: %d (max %d)", len(a.GIDs), MaxUnixGIDs)
	}

	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, a.Stamp)

	nameLen := uint32(len(a.MachineName))
	_ = binary.Write(buf, binary.BigEndian, nameLen)
	buf.WriteString(a.MachineName)
	for range XdrPadding(nameLen) {
		buf.WriteByte(0)
	}

	_ = binary.Write(buf, binary.BigEndian, a.UID)
	_ = binary.Write(buf, binary.BigEndian, a.GID)
	_ = binary.Write(buf, binary.BigEndian, uint32(len(a.GIDs)))
	for _, gid := range a.GIDs {
		_ = binary.Write(buf, binary.BigEndian, gid)
	}

	return buf.Bytes(), nil
}

// ParseUnixAuth decodes an AUTH_UNIX credential body.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty AUTH_UNIX body")
	}
	reader := bytes.NewReader(body)
	auth := &UnixAuth{}

	if err := binary.Read(reader, binary.BigEndian, &auth.Stamp); err != nil {
		return nil, fmt.Errorf("read stamp: %w", err)
	}

	var nameLen uint32
	if err := binary.Read(reader, binary.BigEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("read machine name length: %w", err)
	}
	if nameLen > MaxMachineNameLen {
		return nil, fmt.Errorf("machine name too long: %d bytes", nameLen)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(reader, name); err != nil {
		return nil, fmt.Errorf("read machine name: %w", err)
	}
	auth.MachineName = string(name)
	if pad := XdrPadding(nameLen); pad > 0 {
		if _, err := io.CopyN(io.Discard, reader, int64(pad)); err != nil {
			return nil, fmt.Errorf("skip machine name padding: %w", err)
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &auth.UID); err != nil {
		return nil, fmt.Errorf("read uid: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &auth.GID); err != nil {
		return nil, fmt.Errorf("read gid: %w", err)
	}

	var count uint32
	if err := binary.Read(reader, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("read gid count: %w", err)
	}
	if count > MaxUnixGIDs {
		return nil, fmt.Errorf("too many gids: %d (max %d)", count, MaxUnixGIDs)
	}
	auth.GIDs = make([]uint32, count)
	for i := range auth.GIDs {
		if err := binary.Read(reader, binary.BigEndian, &auth.GIDs[i]); err != nil {
			return nil, fmt.Errorf("read gid %d: %w", i, err)
		}
	}

	return auth, nil
}

func (a *UnixAuth) String() string {
	return fmt.Sprintf("UnixAuth{machine=%s uid=%d gid=%d gids=%v}", a.MachineName, a.UID, a.GID, a.GIDs)
}

// XdrPadding returns the number of zero bytes that align n to 4 bytes.
func XdrPadding(n uint32) uint32 {
	return (4 - (n % 4)) % 4
}
