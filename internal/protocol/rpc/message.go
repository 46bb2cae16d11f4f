package rpc

// RPCCallMessage is the fixed part of a call, up to and including the verifier.
type RPCCallMessage struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       OpaqueAuth
	Verf       OpaqueAuth
}

// RPCReplyMessage is the header of an accepted reply.
type RPCReplyMessage struct {
	XID        uint32
	MsgType    uint32 // 1 = REPLY
	ReplyState uint32 // 0 = MSG_ACCEPTED
	Verf       OpaqueAuth
	AcceptStat uint32 // 0 = SUCCESS
	// Reply data follows
}

type OpaqueAuth struct {
	Flavor uint32
	Body   []byte `xdr:"opaque"`
}

// Reply is a parsed reply message.
//
// For accepted replies, Data holds the procedure results (only meaningful when
// AcceptStat is RPCSuccess). For denied replies, RejectStat and either the
// version range or AuthStat describe the denial.
type Reply struct {
	XID        uint32
	ReplyState uint32
	Verf       OpaqueAuth

	AcceptStat uint32
	Data       []byte

	RejectStat uint32
	AuthStat   uint32

	// MismatchLow and MismatchHigh carry the supported range for
	// PROG_MISMATCH and RPC_MISMATCH.
	MismatchLow  uint32
	MismatchHigh uint32
}

// Accepted reports whether the server accepted the call.
func (r *Reply) Accepted() bool {
	return r.ReplyState == RPCMsgAccepted
}

// Succeeded reports whether the call was accepted and executed.
func (r *Reply) Succeeded() bool {
	return r.Accepted() && r.AcceptStat == RPCSuccess
}
