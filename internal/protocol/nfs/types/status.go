package types

import "fmt"

var statusNames = map[uint32]string{
	NFS3OK:             "NFS3_OK",
	NFS3ErrPerm:        "NFS3ERR_PERM",
	NFS3ErrNoEnt:       "NFS3ERR_NOENT",
	NFS3ErrIO:          "NFS3ERR_IO",
	NFS3ErrNXIO:        "NFS3ERR_NXIO",
	NFS3ErrAcces:       "NFS3ERR_ACCES",
	NFS3ErrExist:       "NFS3ERR_EXIST",
	NFS3ErrXDev:        "NFS3ERR_XDEV",
	NFS3ErrNoDev:       "NFS3ERR_NODEV",
	NFS3ErrNotDir:      "NFS3ERR_NOTDIR",
	NFS3ErrIsDir:       "NFS3ERR_ISDIR",
	NFS3ErrInval:       "NFS3ERR_INVAL",
	NFS3ErrFBig:        "NFS3ERR_FBIG",
	NFS3ErrNoSpc:       "NFS3ERR_NOSPC",
	NFS3ErrRofs:        "NFS3ERR_ROFS",
	NFS3ErrMLink:       "NFS3ERR_MLINK",
	NFS3ErrNameTooLong: "NFS3ERR_NAMETOOLONG",
	NFS3ErrNotEmpty:    "NFS3ERR_NOTEMPTY",
	NFS3ErrDQuot:       "NFS3ERR_DQUOT",
	NFS3ErrStale:       "NFS3ERR_STALE",
	NFS3ErrRemote:      "NFS3ERR_REMOTE",
	NFS3ErrBadHandle:   "NFS3ERR_BADHANDLE",
	NFS3ErrNotSync:     "NFS3ERR_NOT_SYNC",
	NFS3ErrBadCookie:   "NFS3ERR_BAD_COOKIE",
	NFS3ErrNotSupp:     "NFS3ERR_NOTSUPP",
	NFS3ErrTooSmall:    "NFS3ERR_TOOSMALL",
	NFS3ErrServerFault: "NFS3ERR_SERVERFAULT",
	NFS3ErrBadType:     "NFS3ERR_BADTYPE",
	NFS3ErrJukebox:     "NFS3ERR_JUKEBOX",
}

// StatusString returns the RFC 1813 name of an nfsstat3 value.
func StatusString(status uint32) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", status)
}

var procNames = [...]string{
	NFSProcNull:        "NULL",
	NFSProcGetAttr:     "GETATTR",
	NFSProcSetAttr:     "SETATTR",
	NFSProcLookup:      "LOOKUP",
	NFSProcAccess:      "ACCESS",
	NFSProcReadLink:    "READLINK",
	NFSProcRead:        "READ",
	NFSProcWrite:       "WRITE",
	NFSProcCreate:      "CREATE",
	NFSProcMkdir:       "MKDIR",
	NFSProcSymlink:     "SYMLINK",
	NFSProcMknod:       "MKNOD",
	NFSProcRemove:      "REMOVE",
	NFSProcRmdir:       "RMDIR",
	NFSProcRename:      "RENAME",
	NFSProcLink:        "LINK",
	NFSProcReadDir:     "READDIR",
	NFSProcReadDirPlus: "READDIRPLUS",
	NFSProcFsStat:      "FSSTAT",
	NFSProcFsInfo:      "FSINFO",
	NFSProcPathConf:    "PATHCONF",
	NFSProcCommit:      "COMMIT",
}

// ProcedureName returns the NFSv3 procedure name, used as a metrics label.
func ProcedureName(proc uint32) string {
	if int(proc) < len(procNames) {
		return procNames[proc]
	}
	return fmt.Sprintf("PROC_%d", proc)
}
