package rpc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// maxAuthBodyLength is the RFC 5531 limit for cred/verf bodies.
const maxAuthBodyLength = 400

// ErrShortMessage is returned for messages truncated inside the header.
var ErrShortMessage = errors.New("rpc message truncated")

// ============================================================================
// Client side: call encoding and reply parsing
// ============================================================================

// EncodeCall serializes a call header followed by args and frames it as a
// single-fragment record, ready to be written to the connection.
func EncodeCall(xid, program, version, procedure uint32, cred Credentials, args []byte) ([]byte, error) {
	if cred == nil {
		cred = NullAuth{}
	}
	credential, err := cred.Credential()
	if err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}

	call := RPCCallMessage{
		XID:        xid,
		MsgType:    RPCCall,
		RPCVersion: RPCVersion,
		Program:    program,
		Version:    version,
		Procedure:  procedure,
		Cred:       credential,
		Verf:       cred.Verifier(),
	}

	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0}) // fragment header placeholder
	if _, err := xdr.Marshal(&buf, &call); err != nil {
		return nil, fmt.Errorf("marshal call header: %w", err)
	}
	buf.Write(args)

	framed := buf.Bytes()
	binary.BigEndian.PutUint32(framed, LastFragmentFlag|uint32(len(framed)-4))
	return framed, nil
}

// SetCallXID rewrites the xid of a call framed by EncodeCall.
func SetCallXID(frame []byte, xid uint32) error {
	if len(frame) < 8 {
		return ErrShortMessage
	}
	binary.BigEndian.PutUint32(frame[4:8], xid)
	return nil
}

// PeekXID returns the transaction id of a message without parsing the rest.
func PeekXID(message []byte) (uint32, error) {
	if len(message) < 4 {
		return 0, ErrShortMessage
	}
	return binary.BigEndian.Uint32(message), nil
}

// ParseReply decodes a reply message (without its record marking).
func ParseReply(message []byte) (*Reply, error) {
	reader := bytes.NewReader(message)
	reply := &Reply{}

	var msgType uint32
	if err := readUint32s(reader, &reply.XID, &msgType, &reply.ReplyState); err != nil {
		return nil, fmt.Errorf("read reply header: %w", err)
	}
	if msgType != RPCReply {
		return nil, fmt.Errorf("expected REPLY (1), got %d", msgType)
	}

	switch reply.ReplyState {
	case RPCMsgAccepted:
		verf, err := readOpaqueAuth(reader)
		if err != nil {
			return nil, fmt.Errorf("read verifier: %w", err)
		}
		reply.Verf = verf

		if err := readUint32s(reader, &reply.AcceptStat); err != nil {
			return nil, fmt.Errorf("read accept_stat: %w", err)
		}
		switch reply.AcceptStat {
		case RPCSuccess:
			offset := len(message) - reader.Len()
			reply.Data = message[offset:]
		case RPCProgMismatch:
			if err := readUint32s(reader, &reply.MismatchLow, &reply.MismatchHigh); err != nil {
				return nil, fmt.Errorf("read mismatch info: %w", err)
			}
		}

	case RPCMsgDenied:
		if err := readUint32s(reader, &reply.RejectStat); err != nil {
			return nil, fmt.Errorf("read reject_stat: %w", err)
		}
		switch reply.RejectStat {
		case RPCMismatch:
			if err := readUint32s(reader, &reply.MismatchLow, &reply.MismatchHigh); err != nil {
				return nil, fmt.Errorf("read mismatch info: %w", err)
			}
		case RPCAuthError:
			if err := readUint32s(reader, &reply.AuthStat); err != nil {
				return nil, fmt.Errorf("read auth_stat: %w", err)
			}
		default:
			return nil, fmt.Errorf("invalid reject_stat %d", reply.RejectStat)
		}

	default:
		return nil, fmt.Errorf("invalid reply_stat %d", reply.ReplyState)
	}

	return reply, nil
}

func readUint32s(r io.Reader, values ...*uint32) error {
	for _, v := range values {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return ErrShortMessage
			}
			return err
		}
	}
	return nil
}

func readOpaqueAuth(r io.Reader) (OpaqueAuth, error) {
	var auth OpaqueAuth
	var length uint32
	if err := readUint32s(r, &auth.Flavor, &length); err != nil {
		return auth, err
	}
	if length > maxAuthBodyLength {
		return auth, fmt.Errorf("auth body length %d exceeds maximum %d", length, maxAuthBodyLength)
	}
	auth.Body = make([]byte, length+XdrPadding(length))
	if _, err := io.ReadFull(r, auth.Body); err != nil {
		return auth, ErrShortMessage
	}
	auth.Body = auth.Body[:length]
	return auth, nil
}

// ============================================================================
// Server side: call parsing and reply construction
// ============================================================================

// ReadCall decodes the call header of a message.
func ReadCall(data []byte) (*RPCCallMessage, error) {
	call := &RPCCallMessage{}
	_, err := xdr.Unmarshal(bytes.NewReader(data), call)
	if err != nil {
		return nil, fmt.Errorf("unmarshal RPC call: %w", err)
	}

	if call.MsgType != RPCCall {
		return nil, fmt.Errorf("expected CALL (0), got %d", call.MsgType)
	}

	return call, nil
}

// ReadData returns the procedure arguments following the call header.
func ReadData(message []byte, call *RPCCallMessage) ([]byte, error) {
	// XID, MsgType, RPCVersion, Program, Version, Procedure
	offset := 24

	for _, auth := range []OpaqueAuth{call.Cred, call.Verf} {
		length := uint32(len(auth.Body))
		offset += 8 + int(length+XdrPadding(length))
	}

	if offset > len(message) {
		return nil, ErrShortMessage
	}
	return message[offset:], nil
}

// MakeSuccessReply builds a framed MSG_ACCEPTED/SUCCESS reply carrying data.
func MakeSuccessReply(xid uint32, data []byte) ([]byte, error) {
	return makeAcceptedReply(xid, RPCSuccess, data)
}

// MakeErrorReply builds a framed MSG_ACCEPTED reply with a failing accept_stat.
func MakeErrorReply(xid uint32, acceptStat uint32) ([]byte, error) {
	return makeAcceptedReply(xid, acceptStat, nil)
}

// MakeProgMismatchReply builds a PROG_MISMATCH reply advertising [low, high].
func MakeProgMismatchReply(xid, low, high uint32) ([]byte, error) {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body, low)
	binary.BigEndian.PutUint32(body[4:], high)
	return makeAcceptedReply(xid, RPCProgMismatch, body)
}

// MakeAuthErrorReply builds a MSG_DENIED/AUTH_ERROR reply.
func MakeAuthErrorReply(xid, authStat uint32) []byte {
	body := make([]byte, 20)
	binary.BigEndian.PutUint32(body[0:], xid)
	binary.BigEndian.PutUint32(body[4:], RPCReply)
	binary.BigEndian.PutUint32(body[8:], RPCMsgDenied)
	binary.BigEndian.PutUint32(body[12:], RPCAuthError)
	binary.BigEndian.PutUint32(body[16:], authStat)
	return FrameRecord(body)
}

// MakeRPCMismatchReply builds a MSG_DENIED/RPC_MISMATCH reply.
func MakeRPCMismatchReply(xid, low, high uint32) []byte {
	body := make([]byte, 24)
	binary.BigEndian.PutUint32(body[0:], xid)
	binary.BigEndian.PutUint32(body[4:], RPCReply)
	binary.BigEndian.PutUint32(body[8:], RPCMsgDenied)
	binary.BigEndian.PutUint32(body[12:], RPCMismatch)
	binary.BigEndian.PutUint32(body[16:], low)
	binary.BigEndian.PutUint32(body[20:], high)
	return FrameRecord(body)
}

func makeAcceptedReply(xid, acceptStat uint32, data []byte) ([]byte, error) {
	reply := RPCReplyMessage{
		XID:        xid,
		MsgType:    RPCReply,
		ReplyState: RPCMsgAccepted,
		Verf: OpaqueAuth{
			Flavor: AuthNull,
			Body:   []byte{},
		},
		AcceptStat: acceptStat,
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &reply); err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	buf.Write(data)

	return FrameRecord(buf.Bytes()), nil
}
