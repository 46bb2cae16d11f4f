// Package nfs3 implements store.Store against a remote NFSv3 server.
//
// Every operation encodes its arguments with the internal/protocol/nfs codec,
// sends them through a transport.Client and decodes the result. NFS level
// failures come back as the Status field of the result; the error return is
// reserved for transport and decoding failures.
package nfs3

import (
	"context"
	"fmt"

	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
	"github.com/marmos91/nfsgate/pkg/store"
)

// Caller issues RPC calls. *transport.Client implements it.
type Caller interface {
	Service(ctx context.Context, program, version, procedure uint32, args []byte, cred rpc.Credentials) (*rpc.Reply, error)
}

// Store talks NFSv3 to one export.
type Store struct {
	caller Caller
	cred   rpc.Credentials
	root   store.FileHandle

	// closeFn releases the connections opened by Dial.
	closeFn func() error
}

var _ store.Store = (*Store)(nil)

// New wraps an established NFS connection. root is the handle returned by
// MOUNT for the export.
func New(caller Caller, root store.FileHandle, cred rpc.Credentials) *Store {
	if cred == nil {
		cred = rpc.NullAuth{}
	}
	return &Store{caller: caller, cred: cred, root: append(store.FileHandle(nil), root...)}
}

// replyOverhead is room reserved in a reply record for everything around
// the READ payload: the RPC header with the largest verifier, the status,
// post_op_attr, count, eof and the opaque length.
const replyOverhead = 1024

// MaxTransferSize caps READ and WRITE payloads so that replies fit the
// transport's record limit. Zero means the caller imposes no limit.
func (s *Store) MaxTransferSize() uint32 {
	limited, ok := s.caller.(interface{ MaxRecordSize() int })
	if !ok || limited.MaxRecordSize() <= replyOverhead {
		return 0
	}
	return uint32(limited.MaxRecordSize() - replyOverhead)
}

// RootHandle returns the export root handle.
func (s *Store) RootHandle() store.FileHandle { return s.root }

// Close releases the connections opened by Dial. Stores built with New leave
// the caller to the owner.
func (s *Store) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

type encoder interface {
	Encode() ([]byte, error)
}

// call sends one NFS procedure and returns the result body.
func (s *Store) call(ctx context.Context, proc uint32, req encoder) ([]byte, error) {
	var args []byte
	if req != nil {
		var err error
		if args, err = req.Encode(); err != nil {
			return nil, fmt.Errorf("encode %s: %w", types.ProcedureName(proc), err)
		}
	}

	reply, err := s.caller.Service(ctx, rpc.ProgramNFS, rpc.NFSVersion, proc, args, s.cred)
	if err != nil {
		return nil, fmt.Errorf("nfs3 %s: %w", types.ProcedureName(proc), err)
	}
	return reply.Data, nil
}

func decodeErr(proc uint32, err error) error {
	logger.Debug("Malformed %s reply: %v", types.ProcedureName(proc), err)
	return fmt.Errorf("decode %s reply: %w", types.ProcedureName(proc), err)
}

func (s *Store) Null(ctx context.Context) error {
	_, err := s.call(ctx, types.NFSProcNull, nil)
	return err
}

func (s *Store) GetAttr(ctx context.Context, handle store.FileHandle) (*nfs.GetAttrResponse, error) {
	data, err := s.call(ctx, types.NFSProcGetAttr, &nfs.GetAttrRequest{Handle: handle})
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeGetAttrResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcGetAttr, err)
	}
	return resp, nil
}

func (s *Store) SetAttr(ctx context.Context, handle store.FileHandle, attrs types.SetAttrs) (*nfs.SetAttrResponse, error) {
	data, err := s.call(ctx, types.NFSProcSetAttr, &nfs.SetAttrRequest{Handle: handle, Attrs: attrs})
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeSetAttrResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcSetAttr, err)
	}
	return resp, nil
}

func (s *Store) Lookup(ctx context.Context, dir store.FileHandle, name string) (*nfs.LookupResponse, error) {
	data, err := s.call(ctx, types.NFSProcLookup, &nfs.LookupRequest{Dir: dir, Name: name})
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeLookupResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcLookup, err)
	}
	return resp, nil
}

func (s *Store) Read(ctx context.Context, handle store.FileHandle, offset uint64, count uint32) (*nfs.ReadResponse, error) {
	data, err := s.call(ctx, types.NFSProcRead, &nfs.ReadRequest{Handle: handle, Offset: offset, Count: count})
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeReadResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcRead, err)
	}
	return resp, nil
}

func (s *Store) Write(ctx context.Context, handle store.FileHandle, offset uint64, stable uint32, payload []byte) (*nfs.WriteResponse, error) {
	req := &nfs.WriteRequest{
		Handle: handle,
		Offset: offset,
		Count:  uint32(len(payload)),
		Stable: stable,
		Data:   payload,
	}
	data, err := s.call(ctx, types.NFSProcWrite, req)
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeWriteResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcWrite, err)
	}
	return resp, nil
}

func (s *Store) Commit(ctx context.Context, handle store.FileHandle, offset uint64, count uint32) (*nfs.CommitResponse, error) {
	data, err := s.call(ctx, types.NFSProcCommit, &nfs.CommitRequest{Handle: handle, Offset: offset, Count: count})
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeCommitResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcCommit, err)
	}
	return resp, nil
}

func (s *Store) Create(ctx context.Context, dir store.FileHandle, name string, mode uint32, attrs types.SetAttrs) (*nfs.CreateResponse, error) {
	data, err := s.call(ctx, types.NFSProcCreate, &nfs.CreateRequest{Dir: dir, Name: name, Mode: mode, Attrs: attrs})
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeCreateResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcCreate, err)
	}
	return resp, nil
}

func (s *Store) Mkdir(ctx context.Context, dir store.FileHandle, name string, attrs types.SetAttrs) (*nfs.CreateResponse, error) {
	data, err := s.call(ctx, types.NFSProcMkdir, &nfs.MkdirRequest{Dir: dir, Name: name, Attrs: attrs})
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeCreateResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcMkdir, err)
	}
	return resp, nil
}

func (s *Store) Remove(ctx context.Context, dir store.FileHandle, name string) (*nfs.RemoveResponse, error) {
	return s.unlink(ctx, types.NFSProcRemove, dir, name)
}

func (s *Store) Rmdir(ctx context.Context, dir store.FileHandle, name string) (*nfs.RemoveResponse, error) {
	return s.unlink(ctx, types.NFSProcRmdir, dir, name)
}

func (s *Store) unlink(ctx context.Context, proc uint32, dir store.FileHandle, name string) (*nfs.RemoveResponse, error) {
	data, err := s.call(ctx, proc, &nfs.RemoveRequest{Dir: dir, Name: name})
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeRemoveResponse(data)
	if err != nil {
		return nil, decodeErr(proc, err)
	}
	return resp, nil
}

func (s *Store) Rename(ctx context.Context, fromDir store.FileHandle, fromName string, toDir store.FileHandle, toName string) (*nfs.RenameResponse, error) {
	req := &nfs.RenameRequest{FromDir: fromDir, FromName: fromName, ToDir: toDir, ToName: toName}
	data, err := s.call(ctx, types.NFSProcRename, req)
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeRenameResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcRename, err)
	}
	return resp, nil
}

func (s *Store) ReadDir(ctx context.Context, dir store.FileHandle, cookie, cookieVerf uint64, count uint32) (*nfs.ReadDirResponse, error) {
	req := &nfs.ReadDirRequest{Dir: dir, Cookie: cookie, CookieVerf: cookieVerf, Count: count}
	data, err := s.call(ctx, types.NFSProcReadDir, req)
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeReadDirResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcReadDir, err)
	}
	return resp, nil
}

func (s *Store) FsInfo(ctx context.Context, handle store.FileHandle) (*nfs.FsInfoResponse, error) {
	data, err := s.call(ctx, types.NFSProcFsInfo, &nfs.FsInfoRequest{Handle: handle})
	if err != nil {
		return nil, err
	}
	resp, err := nfs.DecodeFsInfoResponse(data)
	if err != nil {
		return nil, decodeErr(types.NFSProcFsInfo, err)
	}
	return resp, nil
}
