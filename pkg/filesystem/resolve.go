package filesystem

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
)

func cleanPath(p string) string {
	return path.Clean("/" + p)
}

// components splits a clean absolute path into its names.
func components(p string) []string {
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// resolve returns a verified handle and the current attributes of p. A stale
// handle met during the walk is purged from the cache and the walk is
// retried once.
func (fsys *FileSystem) resolve(ctx context.Context, p string) (store.FileHandle, *types.NFSFileAttr, error) {
	handle, attr, err := fsys.walk(ctx, p)
	if store.IsStale(err) {
		logger.Debug("Stale handle while resolving %s, retrying: %v", p, err)
		handle, attr, err = fsys.walk(ctx, p)
	}
	return handle, attr, err
}

func (fsys *FileSystem) walk(ctx context.Context, p string) (store.FileHandle, *types.NFSFileAttr, error) {
	if p == "/" {
		root := fsys.store.RootHandle()
		attr, err := fsys.getAttr(ctx, root, p)
		if err != nil {
			return nil, nil, err
		}
		return root, attr, nil
	}

	if cached, ok := fsys.cache.Get(p); ok {
		attr, err := fsys.getAttr(ctx, cached, p)
		if err == nil {
			return cached, attr, nil
		}
		if !store.IsStale(err) {
			return nil, nil, err
		}
		// The store already dropped entries mapped to the handle.
		fsys.cache.Remove(p)
		logger.Debug("Dropped stale handle of %s", p)
	}

	parentPath := path.Dir(p)
	parent, parentAttr, err := fsys.walk(ctx, parentPath)
	if err != nil {
		return nil, nil, err
	}
	if !parentAttr.IsDir() {
		return nil, nil, store.CheckStatus("LOOKUP", p, types.NFS3ErrNotDir)
	}
	return fsys.lookup(ctx, parent, parentPath, path.Base(p))
}

// lookup resolves name inside the directory dir (at dirPath) and caches the
// result. A stale dir handle has been purged by the store by the time the
// error returns, so a retry walks from further up.
func (fsys *FileSystem) lookup(ctx context.Context, dir store.FileHandle, dirPath, name string) (store.FileHandle, *types.NFSFileAttr, error) {
	p := path.Join(dirPath, name)

	resp, err := fsys.store.Lookup(ctx, dir, name)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup %s: %w", p, err)
	}
	if err := store.CheckStatus("LOOKUP", p, resp.Status); err != nil {
		return nil, nil, err
	}

	attr := resp.Attr
	if attr == nil {
		// post_op_attr is optional in LOOKUP replies.
		if attr, err = fsys.getAttr(ctx, resp.Handle, p); err != nil {
			return nil, nil, err
		}
	}
	fsys.cache.Put(p, resp.Handle)
	return resp.Handle, attr, nil
}

func (fsys *FileSystem) getAttr(ctx context.Context, handle store.FileHandle, p string) (*types.NFSFileAttr, error) {
	resp, err := fsys.store.GetAttr(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("getattr %s: %w", p, err)
	}
	if err := store.CheckStatus("GETATTR", p, resp.Status); err != nil {
		return nil, err
	}
	return resp.Attr, nil
}
