// Package store defines the remote file-access capability consumed by the
// stream engine and the filesystem layer.
//
// A Store speaks NFSv3 semantics: every operation returns the decoded
// procedure result, whose Status field carries the nfsstat3 value. The error
// return is reserved for failures that prevented a result from being obtained
// at all (transport failure, RPC denial, malformed reply). Callers turn
// non-OK statuses into errors with CheckStatus.
//
// Implementations:
//   - nfs3: a real NFSv3 client over the RPC transport
//   - memory: an in-process filesystem with fault injection, used by tests
package store

import (
	"context"
	"encoding/hex"

	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
)

// FileHandle is an opaque NFSv3 file handle (at most 64 bytes).
type FileHandle []byte

func (h FileHandle) String() string {
	return hex.EncodeToString(h)
}

// Store is the set of NFSv3 procedures the gateway relies on.
//
// Credentials are bound when the store is constructed. All methods are safe
// for concurrent use.
type Store interface {
	// RootHandle returns the handle of the mounted export root.
	RootHandle() FileHandle

	// Null pings the server.
	Null(ctx context.Context) error

	GetAttr(ctx context.Context, handle FileHandle) (*nfs.GetAttrResponse, error)
	SetAttr(ctx context.Context, handle FileHandle, attrs types.SetAttrs) (*nfs.SetAttrResponse, error)
	Lookup(ctx context.Context, dir FileHandle, name string) (*nfs.LookupResponse, error)

	// Read returns at most count bytes starting at offset. Fewer bytes with
	// Eof set means the end of the file was reached.
	Read(ctx context.Context, handle FileHandle, offset uint64, count uint32) (*nfs.ReadResponse, error)

	// Write stores data at offset with the given stable_how.
	Write(ctx context.Context, handle FileHandle, offset uint64, stable uint32, data []byte) (*nfs.WriteResponse, error)

	// Commit flushes unstable writes in [offset, offset+count). A zero count
	// commits everything from offset to the end of the file.
	Commit(ctx context.Context, handle FileHandle, offset uint64, count uint32) (*nfs.CommitResponse, error)

	Create(ctx context.Context, dir FileHandle, name string, mode uint32, attrs types.SetAttrs) (*nfs.CreateResponse, error)
	Mkdir(ctx context.Context, dir FileHandle, name string, attrs types.SetAttrs) (*nfs.CreateResponse, error)
	Remove(ctx context.Context, dir FileHandle, name string) (*nfs.RemoveResponse, error)
	Rmdir(ctx context.Context, dir FileHandle, name string) (*nfs.RemoveResponse, error)
	Rename(ctx context.Context, fromDir FileHandle, fromName string, toDir FileHandle, toName string) (*nfs.RenameResponse, error)

	// ReadDir returns one page of directory entries. Pass the cookie of the
	// last entry and the returned verifier to continue a listing.
	ReadDir(ctx context.Context, dir FileHandle, cookie, cookieVerf uint64, count uint32) (*nfs.ReadDirResponse, error)

	FsInfo(ctx context.Context, handle FileHandle) (*nfs.FsInfoResponse, error)

	// Close releases the store's resources. Further calls fail.
	Close() error
}
