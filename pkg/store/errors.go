package store

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
)

// StatusError is a non-OK NFSv3 status returned by the server for an
// accepted call.
type StatusError struct {
	// Op is the procedure name, e.g. "LOOKUP".
	Op string

	// Path is the logical path involved, when known.
	Path string

	// Status is the nfsstat3 value.
	Status uint32
}

func (e *StatusError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("nfs3 %s %s: %s", e.Op, e.Path, types.StatusString(e.Status))
	}
	return fmt.Sprintf("nfs3 %s: %s", e.Op, types.StatusString(e.Status))
}

// Is maps statuses onto the io/fs sentinels, so errors.Is(err,
// fs.ErrNotExist) works on NFS errors.
func (e *StatusError) Is(target error) bool {
	switch target {
	case fs.ErrNotExist:
		return e.Status == types.NFS3ErrNoEnt
	case fs.ErrExist:
		return e.Status == types.NFS3ErrExist || e.Status == types.NFS3ErrNotEmpty
	case fs.ErrPermission:
		return e.Status == types.NFS3ErrPerm || e.Status == types.NFS3ErrAcces
	}
	return false
}

// CheckStatus returns nil for NFS3OK and a *StatusError otherwise.
func CheckStatus(op, path string, status uint32) error {
	if status == types.NFS3OK {
		return nil
	}
	return &StatusError{Op: op, Path: path, Status: status}
}

// StatusOf extracts the NFSv3 status wrapped in err, if any.
func StatusOf(err error) (uint32, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, true
	}
	return 0, false
}

// IsStatus reports whether err carries the given NFSv3 status.
func IsStatus(err error, status uint32) bool {
	got, ok := StatusOf(err)
	return ok && got == status
}

// IsStale reports whether err means the handle is no longer valid on the
// server. BADHANDLE is treated like STALE since both require re-resolution.
func IsStale(err error) bool {
	return IsStatus(err, types.NFS3ErrStale) || IsStatus(err, types.NFS3ErrBadHandle)
}

func IsNotFound(err error) bool { return IsStatus(err, types.NFS3ErrNoEnt) }

func IsExist(err error) bool { return IsStatus(err, types.NFS3ErrExist) }

func IsNotDir(err error) bool { return IsStatus(err, types.NFS3ErrNotDir) }
