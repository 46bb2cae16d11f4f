// Package filesystem exposes path-based file operations on top of a
// store.Store.
//
// Paths are slash-separated and rooted at the mounted export. Handles of
// resolved paths are kept in a handlecache.Cache and verified with GETATTR
// before use; a handle the server reports stale is dropped and the path is
// looked up again from its parent.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	mathbits "math/bits"
	"path"

	"github.com/hashicorp/go-multierror"
	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/handlecache"
	"github.com/marmos91/nfsgate/pkg/store"
	"github.com/marmos91/nfsgate/pkg/stream"
)

const (
	DefaultFileMode = 0o644
	DefaultDirMode  = 0o755

	// defaultDirCount is the READDIR count used when FSINFO reports no
	// dtpref.
	defaultDirCount = 8192
)

// TransferLimiter is implemented by stores whose transport cannot carry
// arbitrarily large READ or WRITE payloads. Block sizes are reduced to fit
// MaxTransferSize as well as the server's FSINFO limits.
type TransferLimiter interface {
	MaxTransferSize() uint32
}

// ErrRoot is returned for operations that cannot apply to the export root.
var ErrRoot = errors.New("operation not permitted on the root directory")

// Config holds the ownership and tuning applied by a FileSystem.
type Config struct {
	// UID and GID own files and directories created through the FileSystem.
	UID uint32
	GID uint32

	// FileMode and DirMode are the permission bits of created files and
	// directories. Zero takes the default.
	FileMode uint32
	DirMode  uint32

	// Stream tunes the read and write streams opened by the FileSystem.
	Stream stream.Options
}

// FileSystem is a path-oriented view of a remote export. Safe for concurrent
// use; streams it returns are not shared between goroutines.
type FileSystem struct {
	store   store.Store
	cache   *handlecache.Cache
	config  Config
	metrics stream.Metrics

	readOpts  stream.Options
	writeOpts stream.Options
	dirCount  uint32
}

// New negotiates transfer sizes with FSINFO and returns a FileSystem over st.
// Block sizes larger than the server's rtmax or wtmax are reduced to fit.
// Handles any operation finds stale, streams included, are dropped from
// cache.
func New(ctx context.Context, st store.Store, cache *handlecache.Cache, config Config, metrics stream.Metrics) (*FileSystem, error) {
	if config.FileMode == 0 {
		config.FileMode = DefaultFileMode
	}
	if config.DirMode == 0 {
		config.DirMode = DefaultDirMode
	}
	if cache == nil {
		cache = handlecache.New(handlecache.DefaultCapacity, nil)
	}

	rtmax, wtmax := uint32(0), uint32(0)
	if limiter, ok := st.(TransferLimiter); ok {
		rtmax, wtmax = limiter.MaxTransferSize(), limiter.MaxTransferSize()
	}
	st = &staleStore{Store: st, cache: cache}

	resp, err := st.FsInfo(ctx, st.RootHandle())
	if err != nil {
		return nil, fmt.Errorf("fsinfo: %w", err)
	}
	if err := store.CheckStatus("FSINFO", "/", resp.Status); err != nil {
		return nil, err
	}

	fsys := &FileSystem{
		store:     st,
		cache:     cache,
		config:    config,
		metrics:   metrics,
		readOpts:  config.Stream,
		writeOpts: config.Stream,
		dirCount:  resp.Info.Dtpref,
	}
	fsys.readOpts.BlockBits = fitBlockBits(config.Stream.BlockBits, minLimit(resp.Info.Rtmax, rtmax))
	fsys.writeOpts.BlockBits = fitBlockBits(config.Stream.BlockBits, minLimit(resp.Info.Wtmax, wtmax))
	if fsys.dirCount == 0 {
		fsys.dirCount = defaultDirCount
	}

	logger.Info("Filesystem ready: rtmax=%d wtmax=%d dtpref=%d read_block=%d write_block=%d",
		resp.Info.Rtmax, resp.Info.Wtmax, resp.Info.Dtpref,
		1<<fsys.readOpts.BlockBits, 1<<fsys.writeOpts.BlockBits)
	return fsys, nil
}

// minLimit returns the smaller of two limits, where zero means unlimited.
func minLimit(a, b uint32) uint32 {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	default:
		return min(a, b)
	}
}

// fitBlockBits lowers bits so that a block never exceeds limit bytes.
func fitBlockBits(bits uint, limit uint32) uint {
	if bits == 0 {
		bits = stream.DefaultBlockBits
	}
	if limit == 0 {
		return bits
	}
	fit := max(uint(mathbits.Len32(limit)-1), stream.MinBlockBits)
	return min(bits, fit)
}

// ReadOptions returns the options read streams are opened with.
func (fsys *FileSystem) ReadOptions() stream.Options { return fsys.readOpts }

// WriteOptions returns the options write streams are opened with.
func (fsys *FileSystem) WriteOptions() stream.Options { return fsys.writeOpts }

// Cache returns the handle cache used for path resolution.
func (fsys *FileSystem) Cache() *handlecache.Cache { return fsys.cache }

// Open returns a read stream on the file at p. ctx bounds the lifetime of
// the stream, not just the open.
func (fsys *FileSystem) Open(ctx context.Context, p string) (*stream.Reader, error) {
	p = cleanPath(p)
	handle, attr, err := fsys.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if attr.IsDir() {
		return nil, store.CheckStatus("READ", p, types.NFS3ErrIsDir)
	}
	return stream.NewReader(ctx, fsys.store, handle, p, fsys.readOpts, fsys.metrics)
}

// Create returns a write stream on a new file at p, creating missing parent
// directories. An existing file is truncated when overwrite is set and
// rejected with an EXIST status otherwise.
func (fsys *FileSystem) Create(ctx context.Context, p string, overwrite bool) (*stream.Writer, error) {
	p = cleanPath(p)
	if p == "/" {
		return nil, fmt.Errorf("create %s: %w", p, ErrRoot)
	}

	handle, attr, err := fsys.resolve(ctx, p)
	switch {
	case err == nil:
		if attr.IsDir() {
			return nil, store.CheckStatus("CREATE", p, types.NFS3ErrIsDir)
		}
		if !overwrite {
			return nil, store.CheckStatus("CREATE", p, types.NFS3ErrExist)
		}
		if err := fsys.truncate(ctx, handle, p); err != nil {
			return nil, err
		}
	case store.IsNotFound(err):
		handle, err = fsys.createFile(ctx, p)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return stream.NewWriter(ctx, fsys.store, handle, p, false, fsys.writeOpts, fsys.metrics)
}

// Append returns a write stream positioned at the end of the existing file
// at p.
func (fsys *FileSystem) Append(ctx context.Context, p string) (*stream.Writer, error) {
	p = cleanPath(p)
	handle, attr, err := fsys.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if attr.IsDir() {
		return nil, store.CheckStatus("WRITE", p, types.NFS3ErrIsDir)
	}
	return stream.NewWriter(ctx, fsys.store, handle, p, true, fsys.writeOpts, fsys.metrics)
}

func (fsys *FileSystem) truncate(ctx context.Context, handle store.FileHandle, p string) error {
	resp, err := fsys.store.SetAttr(ctx, handle, types.SetAttrs{Size: types.Uint64(0)})
	if err != nil {
		return fmt.Errorf("truncate %s: %w", p, err)
	}
	return store.CheckStatus("SETATTR", p, resp.Status)
}

func (fsys *FileSystem) createFile(ctx context.Context, p string) (store.FileHandle, error) {
	parent := path.Dir(p)
	if err := fsys.Mkdirs(ctx, parent); err != nil {
		return nil, err
	}
	dir, _, err := fsys.resolve(ctx, parent)
	if err != nil {
		return nil, err
	}

	resp, err := fsys.store.Create(ctx, dir, path.Base(p), types.CreateUnchecked, fsys.ownedAttrs(fsys.config.FileMode))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", p, err)
	}
	if err := store.CheckStatus("CREATE", p, resp.Status); err != nil {
		return nil, err
	}

	handle := store.FileHandle(resp.Handle)
	if len(handle) == 0 {
		// post_op_fh3 is optional; fall back to a lookup.
		handle, _, err = fsys.resolve(ctx, p)
		if err != nil {
			return nil, err
		}
	}
	fsys.cache.Put(p, handle)
	logger.Debug("Created %s", p)
	return handle, nil
}

func (fsys *FileSystem) ownedAttrs(mode uint32) types.SetAttrs {
	return types.SetAttrs{
		Mode: types.Uint32(mode),
		UID:  types.Uint32(fsys.config.UID),
		GID:  types.Uint32(fsys.config.GID),
	}
}

// Mkdirs creates the directory p and any missing parents. Directories that
// already exist are not an error; a non-directory in the way is.
func (fsys *FileSystem) Mkdirs(ctx context.Context, p string) error {
	p = cleanPath(p)
	if p == "/" {
		return nil
	}

	parent := fsys.store.RootHandle()
	current := "/"
	for _, name := range components(p) {
		current = path.Join(current, name)

		handle, attr, err := fsys.resolve(ctx, current)
		switch {
		case err == nil:
			if !attr.IsDir() {
				status := types.NFS3ErrNotDir
				if current == p {
					status = types.NFS3ErrExist
				}
				return store.CheckStatus("MKDIR", current, status)
			}
		case store.IsNotFound(err):
			handle, err = fsys.mkdir(ctx, parent, current)
			if err != nil {
				return err
			}
		default:
			return err
		}
		parent = handle
	}
	return nil
}

func (fsys *FileSystem) mkdir(ctx context.Context, parent store.FileHandle, p string) (store.FileHandle, error) {
	resp, err := fsys.store.Mkdir(ctx, parent, path.Base(p), fsys.ownedAttrs(fsys.config.DirMode))
	if err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", p, err)
	}

	switch resp.Status {
	case types.NFS3OK:
		if len(resp.Handle) > 0 {
			fsys.cache.Put(p, resp.Handle)
			logger.Debug("Created directory %s", p)
			return resp.Handle, nil
		}
	case types.NFS3ErrExist:
		// Lost a race with another creator.
	default:
		return nil, store.CheckStatus("MKDIR", p, resp.Status)
	}

	handle, attr, err := fsys.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if !attr.IsDir() {
		return nil, store.CheckStatus("MKDIR", p, types.NFS3ErrNotDir)
	}
	return handle, nil
}

// Delete removes the file or directory at p and reports whether anything was
// removed. A missing path yields false and no error. A non-empty directory
// is only removed when recursive is set.
func (fsys *FileSystem) Delete(ctx context.Context, p string, recursive bool) (bool, error) {
	p = cleanPath(p)
	if p == "/" {
		return false, fmt.Errorf("delete %s: %w", p, ErrRoot)
	}

	handle, attr, err := fsys.resolve(ctx, p)
	if store.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := fsys.remove(ctx, handle, attr, p, recursive); err != nil {
		return false, err
	}
	return true, nil
}

func (fsys *FileSystem) remove(ctx context.Context, handle store.FileHandle, attr *types.NFSFileAttr, p string, recursive bool) error {
	parent, _, err := fsys.resolve(ctx, path.Dir(p))
	if err != nil {
		return err
	}

	if !attr.IsDir() {
		resp, err := fsys.store.Remove(ctx, parent, path.Base(p))
		if err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		if err := store.CheckStatus("REMOVE", p, resp.Status); err != nil {
			return err
		}
		fsys.cache.Remove(p)
		return nil
	}

	// Children are listed up front: cookies are invalidated as soon as the
	// directory changes.
	entries, err := fsys.readDir(ctx, handle, p)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		if !recursive {
			return store.CheckStatus("RMDIR", p, types.NFS3ErrNotEmpty)
		}
		var result *multierror.Error
		for _, entry := range entries {
			child := path.Join(p, entry.Name)
			childHandle, childAttr, err := fsys.lookup(ctx, handle, p, entry.Name)
			if err == nil {
				err = fsys.remove(ctx, childHandle, childAttr, child, true)
			}
			if err != nil && !store.IsNotFound(err) {
				result = multierror.Append(result, err)
			}
		}
		if err := result.ErrorOrNil(); err != nil {
			return fmt.Errorf("delete %s: %w", p, err)
		}
	}

	resp, err := fsys.store.Rmdir(ctx, parent, path.Base(p))
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", p, err)
	}
	if err := store.CheckStatus("RMDIR", p, resp.Status); err != nil {
		return err
	}
	fsys.cache.RemoveAll(p)
	logger.Debug("Removed directory %s", p)
	return nil
}

// Rename moves src to dst. When dst is an existing directory src is moved
// into it under its own name; when dst does not exist src takes its name. An
// existing file at dst is an EXIST error.
func (fsys *FileSystem) Rename(ctx context.Context, src, dst string) error {
	src, dst = cleanPath(src), cleanPath(dst)
	if src == "/" {
		return fmt.Errorf("rename %s: %w", src, ErrRoot)
	}

	if _, _, err := fsys.resolve(ctx, src); err != nil {
		return err
	}
	fromDir, _, err := fsys.resolve(ctx, path.Dir(src))
	if err != nil {
		return err
	}

	target := dst
	_, dstAttr, err := fsys.resolve(ctx, dst)
	switch {
	case err == nil:
		if !dstAttr.IsDir() {
			return store.CheckStatus("RENAME", dst, types.NFS3ErrExist)
		}
		target = path.Join(dst, path.Base(src))
	case store.IsNotFound(err):
	default:
		return err
	}
	if target == src {
		return nil
	}

	toDir, _, err := fsys.resolve(ctx, path.Dir(target))
	if err != nil {
		return err
	}

	resp, err := fsys.store.Rename(ctx, fromDir, path.Base(src), toDir, path.Base(target))
	if err != nil {
		return fmt.Errorf("rename %s to %s: %w", src, target, err)
	}
	if err := store.CheckStatus("RENAME", src, resp.Status); err != nil {
		return err
	}

	removed := fsys.cache.RemoveAll(src) + fsys.cache.RemoveAll(target)
	logger.Debug("Renamed %s to %s (%d cached handles dropped)", src, target, removed)
	return nil
}

// ListStatus returns the status of the file at p, or of every entry of the
// directory at p.
func (fsys *FileSystem) ListStatus(ctx context.Context, p string) ([]FileStatus, error) {
	p = cleanPath(p)
	handle, attr, err := fsys.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if !attr.IsDir() {
		return []FileStatus{newFileStatus(p, attr)}, nil
	}

	entries, err := fsys.readDir(ctx, handle, p)
	if err != nil {
		return nil, err
	}

	statuses := make([]FileStatus, 0, len(entries))
	for _, entry := range entries {
		child := path.Join(p, entry.Name)
		_, childAttr, err := fsys.lookup(ctx, handle, p, entry.Name)
		if store.IsNotFound(err) {
			// Removed since the listing.
			continue
		}
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, newFileStatus(child, childAttr))
	}
	return statuses, nil
}

// GetFileStatus returns the attributes of the file or directory at p.
func (fsys *FileSystem) GetFileStatus(ctx context.Context, p string) (*FileStatus, error) {
	p = cleanPath(p)
	_, attr, err := fsys.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	status := newFileStatus(p, attr)
	return &status, nil
}

// Exists reports whether p resolves on the server.
func (fsys *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	_, err := fsys.GetFileStatus(ctx, p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// readDir lists a directory, following cookies until the server reports the
// end. "." and ".." are skipped.
func (fsys *FileSystem) readDir(ctx context.Context, dir store.FileHandle, p string) ([]types.DirEntry, error) {
	var (
		entries []types.DirEntry
		cookie  uint64
		verf    uint64
	)
	for {
		resp, err := fsys.store.ReadDir(ctx, dir, cookie, verf, fsys.dirCount)
		if err != nil {
			return nil, fmt.Errorf("readdir %s: %w", p, err)
		}
		if err := store.CheckStatus("READDIR", p, resp.Status); err != nil {
			return nil, err
		}

		for _, entry := range resp.Entries {
			if entry.Name == "." || entry.Name == ".." {
				continue
			}
			entries = append(entries, entry)
		}
		if resp.Eof || len(resp.Entries) == 0 {
			return entries, nil
		}
		cookie = resp.Entries[len(resp.Entries)-1].Cookie
		verf = resp.CookieVerf
	}
}

// Close drops cached handles and closes the store.
func (fsys *FileSystem) Close() error {
	fsys.cache.Clear()
	return fsys.store.Close()
}
