package mount

import (
	"bytes"
	"fmt"

	xdr2 "github.com/rasky/go-xdr/xdr2"
)

// Mapping is the portmapper mapping structure. For GETPORT the Port field is
// ignored by the server.
type Mapping struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

// GetPortResponse carries the port, 0 when the program is not registered.
type GetPortResponse struct {
	Port uint32
}

func (m *Mapping) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr2.Marshal(&buf, m); err != nil {
		return nil, fmt.Errorf("marshal mapping: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeMapping(data []byte) (*Mapping, error) {
	m := &Mapping{}
	if _, err := xdr2.Unmarshal(bytes.NewReader(data), m); err != nil {
		return nil, fmt.Errorf("unmarshal mapping: %w", err)
	}
	return m, nil
}

func (resp *GetPortResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr2.Marshal(&buf, resp); err != nil {
		return nil, fmt.Errorf("marshal getport response: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeGetPortResponse(data []byte) (*GetPortResponse, error) {
	resp := &GetPortResponse{}
	if _, err := xdr2.Unmarshal(bytes.NewReader(data), resp); err != nil {
		return nil, fmt.Errorf("unmarshal getport response: %w", err)
	}
	return resp, nil
}
