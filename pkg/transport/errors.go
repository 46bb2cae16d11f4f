package transport

import (
	"errors"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/rpc"
)

var (
	// ErrTimeout is returned when every attempt of a call went unanswered.
	ErrTimeout = errors.New("rpc call timed out")

	// ErrShutdown is returned for calls issued after Shutdown.
	ErrShutdown = errors.New("rpc client shut down")
)

// TransportError is a connection level failure: dial, write, read or a reply
// that could not be decoded.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DeniedError is a MSG_DENIED reply.
type DeniedError struct {
	XID        uint32
	RejectStat uint32
	AuthStat   uint32
	Low, High  uint32
}

func (e *DeniedError) Error() string {
	if e.RejectStat == rpc.RPCMismatch {
		return fmt.Sprintf("rpc xid=0x%x denied: RPC_MISMATCH (supported %d-%d)", e.XID, e.Low, e.High)
	}
	return fmt.Sprintf("rpc xid=0x%x denied: AUTH_ERROR (%s)", e.XID, rpc.AuthStatString(e.AuthStat))
}

// AcceptError is an accepted reply whose accept_stat is not SUCCESS.
type AcceptError struct {
	XID       uint32
	Program   uint32
	Procedure uint32
	Stat      uint32
	Low, High uint32
}

func (e *AcceptError) Error() string {
	msg := fmt.Sprintf("rpc program %d procedure %d (xid=0x%x): %s",
		e.Program, e.Procedure, e.XID, rpc.AcceptStatString(e.Stat))
	if e.Stat == rpc.RPCProgMismatch {
		msg += fmt.Sprintf(" (supported %d-%d)", e.Low, e.High)
	}
	return msg
}

// replyError maps a non-successful reply to its error type.
func replyError(reply *rpc.Reply, program, procedure uint32) error {
	if !reply.Accepted() {
		return &DeniedError{
			XID:        reply.XID,
			RejectStat: reply.RejectStat,
			AuthStat:   reply.AuthStat,
			Low:        reply.MismatchLow,
			High:       reply.MismatchHigh,
		}
	}
	if reply.AcceptStat != rpc.RPCSuccess {
		return &AcceptError{
			XID:       reply.XID,
			Program:   program,
			Procedure: procedure,
			Stat:      reply.AcceptStat,
			Low:       reply.MismatchLow,
			High:      reply.MismatchHigh,
		}
	}
	return nil
}
