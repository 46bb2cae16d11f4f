package rpc

// RPC Program Numbers
const (
	// ProgramPortmap is the port mapper program number (RFC 1833)
	ProgramPortmap = 100000

	// ProgramNFS is the NFS version 3 program number (RFC 1813)
	ProgramNFS = 100003

	// ProgramMount is the Mount protocol program number (RFC 1813 Appendix I)
	ProgramMount = 100005
)

// Program versions spoken by the gateway.
const (
	PortmapVersion = 2
	NFSVersion     = 3
	MountVersion   = 3
)

// RPCVersion is the only ONC RPC protocol version (RFC 5531).
const RPCVersion = 2

// RPC Message Types
const (
	// RPCCall indicates an RPC call message
	RPCCall = 0

	// RPCReply indicates an RPC reply message
	RPCReply = 1
)

// RPC Reply States
const (
	// RPCMsgAccepted indicates the RPC call was accepted
	RPCMsgAccepted = 0

	// RPCMsgDenied indicates the RPC call was denied
	RPCMsgDenied = 1
)

// RPC Accept Status
const (
	RPCSuccess      = 0
	RPCProgUnavail  = 1
	RPCProgMismatch = 2
	RPCProcUnavail  = 3
	RPCGarbageArgs  = 4
	RPCSystemErr    = 5
)

// RPC Reject Status (MSG_DENIED)
const (
	// RPCMismatch means the server does not speak RPC version 2
	RPCMismatch = 0

	// RPCAuthError means the credentials were rejected
	RPCAuthError = 1
)

// Authentication flavors
const (
	AuthNull  uint32 = 0
	AuthUnix  uint32 = 1
	AuthShort uint32 = 2
	AuthDES   uint32 = 3
)

// Authentication failure reasons carried by an AUTH_ERROR rejection.
const (
	AuthOK           = 0
	AuthBadCred      = 1
	AuthRejectedCred = 2
	AuthBadVerf      = 3
	AuthRejectedVerf = 4
	AuthTooWeak      = 5
)

// Record marking (RFC 5531 Section 11).
const (
	// LastFragmentFlag is set in the header of the final fragment of a record
	LastFragmentFlag = 0x80000000

	// FragmentLengthMask extracts the fragment length from its header
	FragmentLengthMask = 0x7FFFFFFF
)

// MaxUnixGIDs is the maximum number of supplementary groups in AUTH_UNIX.
const MaxUnixGIDs = 16

// MaxMachineNameLen bounds the AUTH_UNIX machine name.
const MaxMachineNameLen = 255

// AcceptStatString returns a printable name for an accept_stat value.
func AcceptStatString(stat uint32) string {
	switch stat {
	case RPCSuccess:
		return "SUCCESS"
	case RPCProgUnavail:
		return "PROG_UNAVAIL"
	case RPCProgMismatch:
		return "PROG_MISMATCH"
	case RPCProcUnavail:
		return "PROC_UNAVAIL"
	case RPCGarbageArgs:
		return "GARBAGE_ARGS"
	case RPCSystemErr:
		return "SYSTEM_ERR"
	default:
		return "UNKNOWN"
	}
}

// AuthStatString returns a printable name for an auth_stat value.
func AuthStatString(stat uint32) string {
	switch stat {
	case AuthOK:
		return "AUTH_OK"
	case AuthBadCred:
		return "AUTH_BADCRED"
	case AuthRejectedCred:
		return "AUTH_REJECTEDCRED"
	case AuthBadVerf:
		return "AUTH_BADVERF"
	case AuthRejectedVerf:
		return "AUTH_REJECTEDVERF"
	case AuthTooWeak:
		return "AUTH_TOOWEAK"
	default:
		return "AUTH_UNKNOWN"
	}
}
