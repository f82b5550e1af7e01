// Package superblock loads and verifies a MINIX superblock and derives
// the layout constants the rest of MFS needs (spec.md §3 "Superblock
// (in-memory, SbInfo)", §4.1, §6).
package superblock

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/mendian"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// Info is the in-memory superblock, SbInfo in spec.md §3.
type Info struct {
	Ninodes       uint32
	Nzones        uint32
	IbmapBlocks   uint32
	ZbmapBlocks   uint32
	Firstdatazone uint32
	Log2ZoneSize uint32
	BlockSize    uint32
	InoPerBlock  uint32
	Dirsize      int
	MaxNameLen   int
	Version      types.Version
	Native       bool
	LongNames    bool
	MaxFileSize  uint32

	// ItableOff is the first block of the inode table, 2+ibmap+zbmap.
	ItableOff uint32

	// Isearch/Zsearch are rolling allocator cursors (spec.md §3, §4.2).
	Isearch uint32
	Zsearch uint32

	// Dirty is the mount-state flag: mfs sets it at mount (warning if it
	// is already set) and clears it at clean unmount. Load never reads it
	// from disk and Encode does not write it, so it lives only in memory
	// and is always false on a freshly loaded image.
	Dirty bool
}

// magicInfo is what a recognized magic value tells us about the image.
type magicInfo struct {
	version   types.Version
	native    bool
	longNames bool
}

var magicTable = map[uint32]magicInfo{
	uint32(types.MagicV1):     {types.V1, true, false},
	uint32(types.MagicV1Rev):  {types.V1, false, false},
	uint32(types.MagicV1L):    {types.V1, true, true},
	uint32(types.MagicV1LRev): {types.V1, false, true},
	uint32(types.MagicV2):     {types.V2, true, false},
	uint32(types.MagicV2Rev):  {types.V2, false, false},
	uint32(types.MagicV2L):    {types.V2, true, true},
	uint32(types.MagicV2LRev): {types.V2, false, true},
	types.MagicV3:             {types.V3, true, false},
	types.MagicV3Rev:          {types.V3, false, false},
}

// Load reads block 1 from dev, identifies the magic, and builds Info. The
// device must be opened with a block size of at least 1024 bytes — the
// smallest MINIX superblock — which is true of every v1/v2/v3 image.
// Fails KindNotSupported on an unrecognized magic (spec.md §3), KindIO on
// short reads.
func Load(dev blockdev.BlockDev) (*Info, error) {
	if dev.BSize() < 1024 {
		return nil, mfserrors.New("superblock.load", mfserrors.KindInvalidArg)
	}
	buf := make([]byte, dev.BSize())
	if err := dev.Read(types.SuperBlockNum, 1, buf); err != nil {
		return nil, mfserrors.Wrap("superblock.load", mfserrors.KindIO, err)
	}

	// Try the v1/v2 magic position (offset 16) first, then the v3
	// position (offset 24) — the two layouts don't share a magic offset.
	// A byte-swapped image stores the already-reversed magic constant at
	// the same offset, so a single little-endian read suffices: the
	// table itself carries both the native and reversed values.
	if mi, ok := magicTable[uint32(binary.LittleEndian.Uint16(buf[16:18]))]; ok {
		return loadV1V2(dev, buf, mi)
	}
	if len(buf) >= 28 {
		if mi, ok := magicTable[binary.LittleEndian.Uint32(buf[24:28])]; ok {
			return loadV3(dev, buf, mi)
		}
	}

	return nil, mfserrors.New("superblock.load", mfserrors.KindNotSupported)
}

func loadV1V2(dev blockdev.BlockDev, buf []byte, mi magicInfo) (*Info, error) {
	order := mendian.ByteOrder(mi.native)

	ninodes := order.Uint16(buf[0:2])
	nzones := order.Uint16(buf[2:4])
	ibmap := order.Uint16(buf[4:6])
	zbmap := order.Uint16(buf[6:8])
	firstData := order.Uint16(buf[8:10])
	log2zone := order.Uint16(buf[10:12])
	maxFileSize := order.Uint32(buf[12:16])
	nzones2 := order.Uint32(buf[20:24])

	info := &Info{
		Ninodes:       uint32(ninodes),
		IbmapBlocks:   uint32(ibmap),
		ZbmapBlocks:   uint32(zbmap),
		Firstdatazone: uint32(firstData),
		Log2ZoneSize:  uint32(log2zone),
		BlockSize:     1024,
		Version:       mi.version,
		Native:        mi.native,
		LongNames:     mi.longNames,
		MaxFileSize:   maxFileSize,
	}

	if mi.version == types.V2 && nzones2 != 0 {
		info.Nzones = nzones2
	} else {
		info.Nzones = uint32(nzones)
	}

	info.Dirsize = types.DirEntrySize(mi.version, mi.longNames)
	info.MaxNameLen = types.MaxNameLen(mi.version, mi.longNames)
	info.InoPerBlock = info.BlockSize / types.RawInodeSize(mi.version)
	info.ItableOff = types.FirstMetaBlock + info.IbmapBlocks + info.ZbmapBlocks

	if err := validate(info); err != nil {
		return nil, err
	}
	return info, nil
}

func loadV3(dev blockdev.BlockDev, buf []byte, mi magicInfo) (*Info, error) {
	order := mendian.ByteOrder(mi.native)

	ninodes := order.Uint32(buf[0:4])
	ibmap := order.Uint16(buf[6:8])
	zbmap := order.Uint16(buf[8:10])
	firstData := order.Uint16(buf[10:12])
	log2zone := order.Uint16(buf[12:14])
	maxFileSize := order.Uint32(buf[16:20])
	nzones := order.Uint32(buf[20:24])
	blockSize := order.Uint16(buf[32:34])

	info := &Info{
		Ninodes:       ninodes,
		Nzones:        nzones,
		IbmapBlocks:   uint32(ibmap),
		ZbmapBlocks:   uint32(zbmap),
		Firstdatazone: uint32(firstData),
		Log2ZoneSize:  uint32(log2zone),
		BlockSize:     uint32(blockSize),
		Version:       mi.version,
		Native:        mi.native,
		LongNames:     false,
		MaxFileSize:   maxFileSize,
	}

	if info.BlockSize == 0 {
		return nil, mfserrors.New("superblock.load", mfserrors.KindIO)
	}

	info.Dirsize = types.DirEntrySize(mi.version, false)
	info.MaxNameLen = types.MaxNameLen(mi.version, false)
	info.InoPerBlock = info.BlockSize / types.RawInodeSize(mi.version)
	info.ItableOff = types.FirstMetaBlock + info.IbmapBlocks + info.ZbmapBlocks

	if err := validate(info); err != nil {
		return nil, err
	}
	return info, nil
}

func validate(info *Info) error {
	if info.Ninodes == 0 {
		return mfserrors.Wrap("superblock.validate", mfserrors.KindIO, fmt.Errorf("ninodes is zero"))
	}
	if info.InoPerBlock == 0 {
		return mfserrors.Wrap("superblock.validate", mfserrors.KindIO, fmt.Errorf("ino_per_block is zero"))
	}
	if info.Nzones <= info.Firstdatazone {
		return mfserrors.Wrap("superblock.validate", mfserrors.KindIO,
			fmt.Errorf("firstdatazone %d >= nzones %d", info.Firstdatazone, info.Nzones))
	}
	return nil
}

// Encode serializes info back into a raw v1/v2 or v3 superblock block, for
// use by mkfs and by tests constructing fixture images.
func Encode(info *Info) []byte {
	buf := make([]byte, info.BlockSize)
	order := mendian.ByteOrder(info.Native)

	if info.Version == types.V3 {
		order.PutUint32(buf[0:4], info.Ninodes)
		order.PutUint16(buf[6:8], uint16(info.IbmapBlocks))
		order.PutUint16(buf[8:10], uint16(info.ZbmapBlocks))
		order.PutUint16(buf[10:12], uint16(info.Firstdatazone))
		order.PutUint16(buf[12:14], uint16(info.Log2ZoneSize))
		order.PutUint32(buf[16:20], info.MaxFileSize)
		order.PutUint32(buf[20:24], info.Nzones)
		binary.LittleEndian.PutUint32(buf[24:28], magicFor(info))
		order.PutUint16(buf[32:34], uint16(info.BlockSize))
		return buf
	}

	order.PutUint16(buf[0:2], uint16(info.Ninodes))
	order.PutUint16(buf[2:4], uint16(info.Nzones))
	order.PutUint16(buf[4:6], uint16(info.IbmapBlocks))
	order.PutUint16(buf[6:8], uint16(info.ZbmapBlocks))
	order.PutUint16(buf[8:10], uint16(info.Firstdatazone))
	order.PutUint16(buf[10:12], uint16(info.Log2ZoneSize))
	order.PutUint32(buf[12:16], info.MaxFileSize)
	binary.LittleEndian.PutUint16(buf[16:18], magicFor16(info))
	if info.Version == types.V2 {
		order.PutUint32(buf[20:24], info.Nzones)
	}
	return buf
}

func magicFor16(info *Info) uint16 {
	switch {
	case info.Version == types.V1 && info.LongNames:
		if info.Native {
			return types.MagicV1L
		}
		return types.MagicV1LRev
	case info.Version == types.V1:
		if info.Native {
			return types.MagicV1
		}
		return types.MagicV1Rev
	case info.Version == types.V2 && info.LongNames:
		if info.Native {
			return types.MagicV2L
		}
		return types.MagicV2LRev
	default:
		if info.Native {
			return types.MagicV2
		}
		return types.MagicV2Rev
	}
}

func magicFor(info *Info) uint32 {
	if info.Native {
		return types.MagicV3
	}
	return types.MagicV3Rev
}
