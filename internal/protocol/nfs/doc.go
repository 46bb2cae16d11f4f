// Package nfs is the NFSv3 procedure codec (RFC 1813).
//
// Every procedure used by the gateway has a Request and a Response type. Both
// directions are implemented: the client encodes requests and decodes
// responses, while the in-process test server decodes requests and encodes
// responses. Requests made only of handles, integers and strings go through the
// reflective XDR codec; anything carrying sattr3, optional attributes or
// status-dependent bodies is written by hand with the xdr helpers.
package nfs

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	xdr "github.com/rasky/go-xdr/xdr2"
)

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshal(data []byte, v any) error {
	_, err := xdr.Unmarshal(bytes.NewReader(data), v)
	return err
}

func checkHandle(handle []byte) error {
	if len(handle) == 0 {
		return fmt.Errorf("empty file handle")
	}
	if len(handle) > types.MaxFileHandleSize {
		return fmt.Errorf("file handle length %d exceeds maximum %d", len(handle), types.MaxFileHandleSize)
	}
	return nil
}
