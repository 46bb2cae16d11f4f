package filesystem

import (
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
)

// FileStatus describes a remote file or directory.
type FileStatus struct {
	Path       string
	Size       int64
	IsDir      bool
	Mode       uint32
	ModTime    time.Time
	AccessTime time.Time
	UID        uint32
	GID        uint32
	FileID     uint64
}

func newFileStatus(p string, attr *types.NFSFileAttr) FileStatus {
	return FileStatus{
		Path:       p,
		Size:       int64(attr.Size),
		IsDir:      attr.IsDir(),
		Mode:       attr.Mode,
		ModTime:    attr.Mtime.Time(),
		AccessTime: attr.Atime.Time(),
		UID:        attr.UID,
		GID:        attr.GID,
		FileID:     attr.Fileid,
	}
}

// Name returns the last element of the path.
func (s FileStatus) Name() string { return path.Base(s.Path) }

// FileMode converts Mode to an fs.FileMode, with fs.ModeDir set for
// directories.
func (s FileStatus) FileMode() fs.FileMode {
	mode := fs.FileMode(s.Mode & 0o777)
	if s.Mode&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if s.Mode&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if s.Mode&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	if s.IsDir {
		mode |= fs.ModeDir
	}
	return mode
}

func (s FileStatus) String() string {
	return fmt.Sprintf("%s %10d %s %s", s.FileMode(), s.Size, s.ModTime.Format(time.DateTime), s.Path)
}
