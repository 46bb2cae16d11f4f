// Package types holds the NFSv3 wire structures and enumerations shared by
// the codec, the stores and the stream engine.
package types

import "time"

// TimeVal represents an NFS timestamp (nfstime3 in RFC 1813 Section 2.5.2).
type TimeVal struct {
	Seconds  uint32
	Nseconds uint32
}

// TimeValFrom converts a Go time to nfstime3.
func TimeValFrom(t time.Time) TimeVal {
	return TimeVal{
		Seconds:  uint32(t.Unix()),
		Nseconds: uint32(t.Nanosecond()),
	}
}

// Time converts the timestamp to a Go time.
func (tv TimeVal) Time() time.Time {
	return time.Unix(int64(tv.Seconds), int64(tv.Nseconds))
}

// ============================================================================
// NFS Protocol Types - RFC 1813 Wire Format Structures
// ============================================================================

// NFSFileAttr represents the NFS fattr3 structure per RFC 1813 Section 2.3.1.
type NFSFileAttr struct {
	Type   uint32   // File type (NF3REG, NF3DIR, etc.)
	Mode   uint32   // Unix permission bits
	Nlink  uint32   // Number of hard links
	UID    uint32   // Owner user ID
	GID    uint32   // Owner group ID
	Size   uint64   // File size in bytes
	Used   uint64   // Disk space used in bytes
	Rdev   SpecData // Device number for special files
	Fsid   uint64   // Filesystem identifier
	Fileid uint64   // File identifier (inode number)
	Atime  TimeVal  // Last access time
	Mtime  TimeVal  // Last modification time
	Ctime  TimeVal  // Last metadata change time
}

// IsDir reports whether the attributes describe a directory.
func (a *NFSFileAttr) IsDir() bool {
	return a != nil && a.Type == FileTypeDirectory
}

// IsRegular reports whether the attributes describe a regular file.
func (a *NFSFileAttr) IsRegular() bool {
	return a != nil && a.Type == FileTypeRegular
}

// SpecData represents device numbers for special files (RFC 1813 Section 2.5.5).
type SpecData struct {
	Major uint32
	Minor uint32
}

// WccAttr is the pre-operation subset of attributes (wcc_attr).
type WccAttr struct {
	Size  uint64
	Mtime TimeVal
	Ctime TimeVal
}

// WccData is weak cache consistency data (wcc_data): optional pre-op and
// post-op attributes around a modifying operation.
type WccData struct {
	Before *WccAttr
	After  *NFSFileAttr
}

// WccAttrOf captures the wcc_attr subset of attr.
func WccAttrOf(attr *NFSFileAttr) *WccAttr {
	if attr == nil {
		return nil
	}
	return &WccAttr{Size: attr.Size, Mtime: attr.Mtime, Ctime: attr.Ctime}
}

// DirEntry represents a directory entry returned by READDIR.
type DirEntry struct {
	Fileid uint64
	Name   string
	Cookie uint64
}

// SetAttrs is the client-side view of sattr3. Nil pointers are left
// unchanged on the server.
type SetAttrs struct {
	Mode *uint32
	UID  *uint32
	GID  *uint32
	Size *uint64

	// AtimeHow and MtimeHow take one of the Time* constants. When set to
	// TimeSetToClient the matching Atime/Mtime value is sent.
	AtimeHow uint32
	Atime    TimeVal
	MtimeHow uint32
	Mtime    TimeVal
}

// Uint32 returns a pointer to v, for building SetAttrs literals.
func Uint32(v uint32) *uint32 { return &v }

// Uint64 returns a pointer to v, for building SetAttrs literals.
func Uint64(v uint64) *uint64 { return &v }
