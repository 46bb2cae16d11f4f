package types

// NFSv3 procedure numbers (RFC 1813 Section 3)
const (
	NFSProcNull        = 0
	NFSProcGetAttr     = 1
	NFSProcSetAttr     = 2
	NFSProcLookup      = 3
	NFSProcAccess      = 4
	NFSProcReadLink    = 5
	NFSProcRead        = 6
	NFSProcWrite       = 7
	NFSProcCreate      = 8
	NFSProcMkdir       = 9
	NFSProcSymlink     = 10
	NFSProcMknod       = 11
	NFSProcRemove      = 12
	NFSProcRmdir       = 13
	NFSProcRename      = 14
	NFSProcLink        = 15
	NFSProcReadDir     = 16
	NFSProcReadDirPlus = 17
	NFSProcFsStat      = 18
	NFSProcFsInfo      = 19
	NFSProcPathConf    = 20
	NFSProcCommit      = 21
)

// NFSv3 status codes (nfsstat3)
const (
	NFS3OK             uint32 = 0
	NFS3ErrPerm        uint32 = 1
	NFS3ErrNoEnt       uint32 = 2
	NFS3ErrIO          uint32 = 5
	NFS3ErrNXIO        uint32 = 6
	NFS3ErrAcces       uint32 = 13
	NFS3ErrExist       uint32 = 17
	NFS3ErrXDev        uint32 = 18
	NFS3ErrNoDev       uint32 = 19
	NFS3ErrNotDir      uint32 = 20
	NFS3ErrIsDir       uint32 = 21
	NFS3ErrInval       uint32 = 22
	NFS3ErrFBig        uint32 = 27
	NFS3ErrNoSpc       uint32 = 28
	NFS3ErrRofs        uint32 = 30
	NFS3ErrMLink       uint32 = 31
	NFS3ErrNameTooLong uint32 = 63
	NFS3ErrNotEmpty    uint32 = 66
	NFS3ErrDQuot       uint32 = 69
	NFS3ErrStale       uint32 = 70
	NFS3ErrRemote      uint32 = 71
	NFS3ErrBadHandle   uint32 = 10001
	NFS3ErrNotSync     uint32 = 10002
	NFS3ErrBadCookie   uint32 = 10003
	NFS3ErrNotSupp     uint32 = 10004
	NFS3ErrTooSmall    uint32 = 10005
	NFS3ErrServerFault uint32 = 10006
	NFS3ErrBadType     uint32 = 10007
	NFS3ErrJukebox     uint32 = 10008
)

// File types (ftype3)
const (
	FileTypeRegular   uint32 = 1
	FileTypeDirectory uint32 = 2
	FileTypeBlock     uint32 = 3
	FileTypeChar      uint32 = 4
	FileTypeSymlink   uint32 = 5
	FileTypeSocket    uint32 = 6
	FileTypeFifo      uint32 = 7
)

// Write stability (stable_how)
const (
	WriteUnstable uint32 = 0
	WriteDataSync uint32 = 1
	WriteFileSync uint32 = 2
)

// CREATE modes (createmode3)
const (
	CreateUnchecked uint32 = 0
	CreateGuarded   uint32 = 1
	CreateExclusive uint32 = 2
)

// time_how discriminants for sattr3 atime/mtime.
const (
	TimeDontChange  uint32 = 0
	TimeSetToServer uint32 = 1
	TimeSetToClient uint32 = 2
)

// FSINFO properties bits
const (
	FSFLink        = 0x0001
	FSFSymlink     = 0x0002
	FSFHomogeneous = 0x0008
	FSFCanSetTime  = 0x0010
)

// MaxFileHandleSize is the largest NFSv3 file handle (NFS3_FHSIZE).
const MaxFileHandleSize = 64

// CookieVerfSize is the size of a cookieverf3 / writeverf3.
const CookieVerfSize = 8
