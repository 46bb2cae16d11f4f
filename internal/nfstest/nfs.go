package nfstest

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
)

type encoder interface {
	Encode() ([]byte, error)
}

// handleNFS decodes the arguments, runs the procedure on the store and
// encodes its result. A store error (an injected transport failure) sends no
// reply, so the client sees a lost call.
func (s *Server) handleNFS(call *rpc.RPCCallMessage, args []byte) ([]byte, error) {
	resp, err := s.runNFS(s.ctx, call.Procedure, args)
	switch {
	case errors.Is(err, errGarbage):
		return rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs)
	case errors.Is(err, errProcUnavail):
		return rpc.MakeErrorReply(call.XID, rpc.RPCProcUnavail)
	case err != nil:
		return nil, err
	}

	if resp == nil {
		return rpc.MakeSuccessReply(call.XID, nil)
	}
	body, err := resp.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", types.ProcedureName(call.Procedure), err)
	}
	return rpc.MakeSuccessReply(call.XID, body)
}

var (
	errGarbage     = errors.New("garbage arguments")
	errProcUnavail = errors.New("procedure unavailable")
)

func (s *Server) runNFS(ctx context.Context, proc uint32, args []byte) (encoder, error) {
	st := s.Store

	switch proc {
	case types.NFSProcNull:
		return nil, st.Null(ctx)

	case types.NFSProcGetAttr:
		req, err := nfs.DecodeGetAttrRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.GetAttr(ctx, req.Handle)

	case types.NFSProcSetAttr:
		req, err := nfs.DecodeSetAttrRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.SetAttr(ctx, req.Handle, req.Attrs)

	case types.NFSProcLookup:
		req, err := nfs.DecodeLookupRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.Lookup(ctx, req.Dir, req.Name)

	case types.NFSProcRead:
		req, err := nfs.DecodeReadRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.Read(ctx, req.Handle, req.Offset, req.Count)

	case types.NFSProcWrite:
		req, err := nfs.DecodeWriteRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.Write(ctx, req.Handle, req.Offset, req.Stable, req.Data)

	case types.NFSProcCommit:
		req, err := nfs.DecodeCommitRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.Commit(ctx, req.Handle, req.Offset, req.Count)

	case types.NFSProcCreate:
		req, err := nfs.DecodeCreateRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.Create(ctx, req.Dir, req.Name, req.Mode, req.Attrs)

	case types.NFSProcMkdir:
		req, err := nfs.DecodeMkdirRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.Mkdir(ctx, req.Dir, req.Name, req.Attrs)

	case types.NFSProcRemove, types.NFSProcRmdir:
		req, err := nfs.DecodeRemoveRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		if proc == types.NFSProcRmdir {
			return st.Rmdir(ctx, req.Dir, req.Name)
		}
		return st.Remove(ctx, req.Dir, req.Name)

	case types.NFSProcRename:
		req, err := nfs.DecodeRenameRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.Rename(ctx, req.FromDir, req.FromName, req.ToDir, req.ToName)

	case types.NFSProcReadDir:
		req, err := nfs.DecodeReadDirRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.ReadDir(ctx, req.Dir, req.Cookie, req.CookieVerf, req.Count)

	case types.NFSProcFsInfo:
		req, err := nfs.DecodeFsInfoRequest(args)
		if err != nil {
			return nil, errGarbage
		}
		return st.FsInfo(ctx, req.Handle)

	default:
		return nil, errProcUnavail
	}
}
