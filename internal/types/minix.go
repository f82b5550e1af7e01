// Package types holds the on-disk layout constants and pure data
// structures of the MINIX v1/v2/v3 filesystem (spec.md §3, §6). It mirrors
// the teacher repo's internal/types package: no behavior, only the shapes
// bytes on disk take and the constants that describe them.
package types

// Version identifies which MINIX on-disk layout a mounted instance uses.
type Version int

const (
	V1 Version = iota + 1
	V2
	V3
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	case V3:
		return "v3"
	default:
		return "unknown"
	}
}

// Recognized on-disk magic values (spec.md §6). Each maps to a
// (version, native, long_names) triple.
const (
	MagicV1             uint16 = 0x137F
	MagicV1Rev          uint16 = 0x7F13
	MagicV1L            uint16 = 0x138F
	MagicV1LRev         uint16 = 0x8F13
	MagicV2             uint16 = 0x2468
	MagicV2Rev          uint16 = 0x6824
	MagicV2L            uint16 = 0x2478
	MagicV2LRev         uint16 = 0x7824
	MagicV3             uint32 = 0x4d5a
	MagicV3Rev          uint32 = 0x5a4d
)

// SuperblockV1V2 is the on-disk layout at block 1 for MINIX v1 and v2
// images (spec.md §6, 16-bit fields).
type SuperblockV1V2 struct {
	SNinodes       uint16
	SNzones        uint16 // v1 only; ignored for v2
	SIbmapBlocks   uint16
	SZbmapBlocks   uint16
	SFirstDataZone uint16
	SLog2ZoneSize  uint16
	SMaxFileSize   uint32
	SMagic         uint16
	SState         uint16
	SNzones2       uint32 // v2 only; ignored for v1
}

// SuperblockV3 is the on-disk layout for MINIX v3 images: 32-bit counts
// and an explicit block size field (spec.md §6).
type SuperblockV3 struct {
	SNinodes       uint32
	SPad0          uint16
	SIbmapBlocks   uint16
	SZbmapBlocks   uint16
	SFirstDataZone uint16
	SLog2ZoneSize  uint16
	SPad1          uint16
	SMaxFileSize   uint32
	SNzones        uint32
	SMagic         uint32
	SState         uint16
	SPad2          uint16
	SBlockSize     uint16
	SDiskVersion   byte
}

// Raw v1 (16-bit) on-disk inode: mode/nlinks/uid/size/mtime/gid + 9 zones
// (7 direct, single indirect, double indirect).
type RawInodeV1 struct {
	Mode   uint16
	Uid    uint16
	Size   uint32
	Mtime  uint32
	Gid    byte
	Nlinks byte
	Zone   [9]uint16
}

// Raw v2/v3 on-disk inode: full timestamps, 32-bit nlinks-adjacent fields,
// and 9 32-bit zone pointers.
type RawInodeV2V3 struct {
	Mode    uint16
	Nlinks  uint16
	Uid     uint16
	Gid     uint16
	Size    uint32
	Atime   uint32
	Mtime   uint32
	Ctime   uint32
	Zone    [9]uint32
}

// File mode bits MFS cares about (spec.md §4.6 create()).
const (
	ModeFmt  uint16 = 0170000
	ModeDir  uint16 = 0040000
	ModeReg  uint16 = 0100000
)

// DirEntrySize returns the on-disk size of one directory entry for the
// given version and long-names flag (spec.md §6).
func DirEntrySize(version Version, longNames bool) int {
	switch version {
	case V3:
		return 64
	default:
		if longNames {
			return 32
		}
		return 16
	}
}

// MaxNameLen returns the maximum directory entry name length for the
// given version/long-names combination (spec.md §3, §6).
func MaxNameLen(version Version, longNames bool) int {
	switch version {
	case V3:
		return 60
	default:
		if longNames {
			return 30
		}
		return 14
	}
}

// ZonePtrSize returns sizeof(zone_ptr) on disk: 2 bytes for v1, 4 for
// v2/v3 (spec.md §4.3).
func ZonePtrSize(version Version) int {
	if version == V1 {
		return 2
	}
	return 4
}

// RawInodeSize returns the on-disk size of one inode table slot: 32 bytes
// for v1 (RawInodeV1), 64 for v2/v3 (RawInodeV2V3 plus trailing padding to
// the traditional 64-byte record).
func RawInodeSize(version Version) uint32 {
	if version == V1 {
		return 32
	}
	return 64
}

const (
	// NumDirectZones is the number of direct zone pointers per inode.
	NumDirectZones = 7
	// IndirectZoneIdx is the index of the single indirect pointer inside
	// the raw inodes' Zone arrays (direct zones occupy 0..6).
	IndirectZoneIdx = 7
	// DIndirectZoneIdx is the index of the double indirect pointer.
	DIndirectZoneIdx = 8

	// RootInode is the always-present root directory inode number.
	RootInode = 1

	// BootBlock and Superblock occupy the first two blocks of every
	// MINIX image (spec.md §6).
	BootBlockNum  = 0
	SuperBlockNum = 1
	FirstMetaBlock = 2
)
