package metrics

import (
	"strconv"

	"github.com/marmos91/nfsgate/internal/protocol/mount"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
)

func programName(program uint32) string {
	switch program {
	case rpc.ProgramNFS:
		return "nfs"
	case rpc.ProgramMount:
		return "mount"
	case rpc.ProgramPortmap:
		return "portmap"
	}
	return strconv.FormatUint(uint64(program), 10)
}

func procedureName(program, procedure uint32) string {
	switch program {
	case rpc.ProgramNFS:
		return types.ProcedureName(procedure)
	case rpc.ProgramMount:
		switch procedure {
		case mount.MountProcNull:
			return "NULL"
		case mount.MountProcMnt:
			return "MNT"
		case mount.MountProcUmnt:
			return "UMNT"
		case mount.MountProcUmntAll:
			return "UMNTALL"
		}
	case rpc.ProgramPortmap:
		switch procedure {
		case mount.PortmapProcNull:
			return "NULL"
		case mount.PortmapProcGetPort:
			return "GETPORT"
		}
	}
	return "PROC_" + strconv.FormatUint(uint64(procedure), 10)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
