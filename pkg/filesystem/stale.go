package filesystem

import (
	"context"

	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/handlecache"
	"github.com/marmos91/nfsgate/pkg/store"
)

// staleStore forwards to a store.Store and drops every cached path of a
// handle the server reports STALE or BADHANDLE, whichever operation hit it.
// Streams opened by a FileSystem talk to the server through it too.
type staleStore struct {
	store.Store
	cache *handlecache.Cache
}

func (s *staleStore) forget(op string, status uint32, handles ...store.FileHandle) {
	if status != types.NFS3ErrStale && status != types.NFS3ErrBadHandle {
		return
	}
	removed := 0
	for _, handle := range handles {
		removed += s.cache.RemoveByValue(handle)
	}
	if removed > 0 {
		logger.Debug("%s: %s, dropped %d cached handles", op, types.StatusString(status), removed)
	}
}

func (s *staleStore) GetAttr(ctx context.Context, handle store.FileHandle) (*nfs.GetAttrResponse, error) {
	resp, err := s.Store.GetAttr(ctx, handle)
	if err == nil {
		s.forget("GETATTR", resp.Status, handle)
	}
	return resp, err
}

func (s *staleStore) SetAttr(ctx context.Context, handle store.FileHandle, attrs types.SetAttrs) (*nfs.SetAttrResponse, error) {
	resp, err := s.Store.SetAttr(ctx, handle, attrs)
	if err == nil {
		s.forget("SETATTR", resp.Status, handle)
	}
	return resp, err
}

func (s *staleStore) Lookup(ctx context.Context, dir store.FileHandle, name string) (*nfs.LookupResponse, error) {
	resp, err := s.Store.Lookup(ctx, dir, name)
	if err == nil {
		s.forget("LOOKUP", resp.Status, dir)
	}
	return resp, err
}

func (s *staleStore) Read(ctx context.Context, handle store.FileHandle, offset uint64, count uint32) (*nfs.ReadResponse, error) {
	resp, err := s.Store.Read(ctx, handle, offset, count)
	if err == nil {
		s.forget("READ", resp.Status, handle)
	}
	return resp, err
}

func (s *staleStore) Write(ctx context.Context, handle store.FileHandle, offset uint64, stable uint32, data []byte) (*nfs.WriteResponse, error) {
	resp, err := s.Store.Write(ctx, handle, offset, stable, data)
	if err == nil {
		s.forget("WRITE", resp.Status, handle)
	}
	return resp, err
}

func (s *staleStore) Commit(ctx context.Context, handle store.FileHandle, offset uint64, count uint32) (*nfs.CommitResponse, error) {
	resp, err := s.Store.Commit(ctx, handle, offset, count)
	if err == nil {
		s.forget("COMMIT", resp.Status, handle)
	}
	return resp, err
}

func (s *staleStore) Create(ctx context.Context, dir store.FileHandle, name string, mode uint32, attrs types.SetAttrs) (*nfs.CreateResponse, error) {
	resp, err := s.Store.Create(ctx, dir, name, mode, attrs)
	if err == nil {
		s.forget("CREATE", resp.Status, dir)
	}
	return resp, err
}

func (s *staleStore) Mkdir(ctx context.Context, dir store.FileHandle, name string, attrs types.SetAttrs) (*nfs.CreateResponse, error) {
	resp, err := s.Store.Mkdir(ctx, dir, name, attrs)
	if err == nil {
		s.forget("MKDIR", resp.Status, dir)
	}
	return resp, err
}

func (s *staleStore) Remove(ctx context.Context, dir store.FileHandle, name string) (*nfs.RemoveResponse, error) {
	resp, err := s.Store.Remove(ctx, dir, name)
	if err == nil {
		s.forget("REMOVE", resp.Status, dir)
	}
	return resp, err
}

func (s *staleStore) Rmdir(ctx context.Context, dir store.FileHandle, name string) (*nfs.RemoveResponse, error) {
	resp, err := s.Store.Rmdir(ctx, dir, name)
	if err == nil {
		s.forget("RMDIR", resp.Status, dir)
	}
	return resp, err
}

// Rename cannot tell which directory was stale, so both are dropped.
func (s *staleStore) Rename(ctx context.Context, fromDir store.FileHandle, fromName string, toDir store.FileHandle, toName string) (*nfs.RenameResponse, error) {
	resp, err := s.Store.Rename(ctx, fromDir, fromName, toDir, toName)
	if err == nil {
		s.forget("RENAME", resp.Status, fromDir, toDir)
	}
	return resp, err
}

func (s *staleStore) ReadDir(ctx context.Context, dir store.FileHandle, cookie, cookieVerf uint64, count uint32) (*nfs.ReadDirResponse, error) {
	resp, err := s.Store.ReadDir(ctx, dir, cookie, cookieVerf, count)
	if err == nil {
		s.forget("READDIR", resp.Status, dir)
	}
	return resp, err
}
