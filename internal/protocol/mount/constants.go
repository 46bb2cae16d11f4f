// Package mount holds the MOUNT v3 (RFC 1813 Appendix I) and portmapper v2
// (RFC 1833) codecs used to bootstrap an NFS session.
package mount

// Mount Protocol Procedure Numbers
const (
	MountProcNull    = 0
	MountProcMnt     = 1
	MountProcDump    = 2
	MountProcUmnt    = 3
	MountProcUmntAll = 4
	MountProcExport  = 5
)

// Mount Status Codes (mountstat3)
const (
	MountOK             uint32 = 0
	MountErrPerm        uint32 = 1
	MountErrNoEnt       uint32 = 2
	MountErrIO          uint32 = 5
	MountErrAccess      uint32 = 13
	MountErrNotDir      uint32 = 20
	MountErrInval       uint32 = 22
	MountErrNameTooLong uint32 = 63
	MountErrNotSupp     uint32 = 10004
	MountErrServerFault uint32 = 10006
)

// Portmapper procedures
const (
	PortmapProcNull    = 0
	PortmapProcSet     = 1
	PortmapProcUnset   = 2
	PortmapProcGetPort = 3
	PortmapProcDump    = 4
)

// IP protocol numbers used in GETPORT mappings.
const (
	ProtoTCP uint32 = 6
	ProtoUDP uint32 = 17
)

// PortmapPort is the well-known portmapper port.
const PortmapPort = 111

// MaxPathLen bounds dirpath (MNTPATHLEN).
const MaxPathLen = 1024
