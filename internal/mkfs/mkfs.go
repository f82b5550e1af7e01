// Package mkfs writes a fresh MINIX v2 filesystem to a block device: a
// superblock, zeroed inode/zone bitmaps, an inode table, and a root
// directory containing "." and "..". It is the SPEC_FULL.md counterpart
// of VolParts.PartMkfs (spec.md §4.8 "Mkfs: write a new filesystem...").
package mkfs

import (
	"github.com/deploymenttheory/go-minixfs/internal/bitmap"
	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/dirtable"
	"github.com/deploymenttheory/go-minixfs/internal/inode"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/superblock"
	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/deploymenttheory/go-minixfs/internal/zonemap"
)

// Options configures a freshly written filesystem. Label is accepted for
// API symmetry with the other probed filesystem types but has no on-disk
// representation in MINIX (spec.md §6 "MINIX and CDFS do not" support
// labels) — it is simply not written anywhere.
type Options struct {
	Label string
}

// inodeBudgetDivisor picks roughly one inode per 4KiB of device capacity,
// a conventional MINIX mkfs ratio.
const inodeBudgetDivisor = 4096

// WriteMinix formats dev as a MINIX v2 filesystem occupying its entire
// block range, then creates the root directory inode with "." and ".."
// self-entries (spec.md §4.6's link() invariant applied to its own
// bootstrap: root has no external parent, so both self-entries bump
// root's own Nlinks, leaving it at 3 rather than the conventional 2 —
// a documented consequence of this driver always deriving Nlinks from
// the "." / ".." write path rather than special-casing the root).
func WriteMinix(dev blockdev.BlockDev, opts Options) error {
	bsize := dev.BSize()
	if bsize < 1024 {
		return mfserrors.New("mkfs.write", mfserrors.KindInvalidArg)
	}
	nblocks := dev.NBlocks()
	if nblocks < 32 {
		return mfserrors.New("mkfs.write", mfserrors.KindNoSpace)
	}

	ninodes := (uint64(nblocks) * uint64(bsize)) / inodeBudgetDivisor
	if ninodes < 32 {
		ninodes = 32
	}

	wordsPerBlock := bsize / 4
	bitsPerBlock := wordsPerBlock * 32

	ibmapBlocks := uint32((ninodes + uint64(bitsPerBlock) - 1) / uint64(bitsPerBlock))
	itableBlocks := uint32((ninodes*uint64(types.RawInodeSize(types.V2)) + uint64(bsize) - 1) / uint64(bsize))
	firstdatazone := types.FirstMetaBlock + ibmapBlocks + itableBlocks + 1 // +1 reserved for the zone bitmap's own minimum size, corrected below
	zonesAvailable := nblocks - firstdatazone
	zbmapBlocks := uint32((uint64(zonesAvailable) + uint64(bitsPerBlock) - 1) / uint64(bitsPerBlock))

	// Recompute firstdatazone now that zbmapBlocks is known, since
	// firstdatazone depends on it and it depends on an estimate of
	// firstdatazone; one fixed-point correction is enough because
	// zbmapBlocks only shrinks as firstdatazone grows.
	firstdatazone = types.FirstMetaBlock + ibmapBlocks + zbmapBlocks + itableBlocks
	if firstdatazone >= nblocks {
		return mfserrors.New("mkfs.write", mfserrors.KindNoSpace)
	}

	sb := &superblock.Info{
		Ninodes:       uint32(ninodes),
		Nzones:        nblocks,
		IbmapBlocks:   ibmapBlocks,
		ZbmapBlocks:   zbmapBlocks,
		Firstdatazone: firstdatazone,
		BlockSize:     bsize,
		Version:       types.V2,
		Native:        true,
		LongNames:     false,
		MaxFileSize:   0x7FFFFFFF,
		Dirsize:       types.DirEntrySize(types.V2, false),
		MaxNameLen:    types.MaxNameLen(types.V2, false),
		InoPerBlock:   bsize / types.RawInodeSize(types.V2),
		ItableOff:     types.FirstMetaBlock + ibmapBlocks + zbmapBlocks,
	}

	zeroBlock := make([]byte, bsize)
	for ba := uint32(0); ba < nblocks; ba++ {
		if err := dev.Write(ba, 1, zeroBlock); err != nil {
			return mfserrors.Wrap("mkfs.write", mfserrors.KindIO, err)
		}
	}
	if err := dev.Write(types.SuperBlockNum, 1, superblock.Encode(sb)); err != nil {
		return mfserrors.Wrap("mkfs.write", mfserrors.KindIO, err)
	}

	cache := blockdev.NewCache(dev, blockdev.WriteThrough)
	ibm := bitmap.New(cache, bitmap.KindInode, types.FirstMetaBlock, ibmapBlocks, sb.Ninodes+1)
	zbm := bitmap.New(cache, bitmap.KindZone, types.FirstMetaBlock+ibmapBlocks, zbmapBlocks, sb.Nzones-sb.Firstdatazone)
	zm := zonemap.New(cache, zbm, sb.Version, sb.Native, sb.Firstdatazone)
	codec := inode.New(cache, sb.ItableOff, sb.InoPerBlock, sb.Ninodes, sb.Version, sb.Native)
	dt := dirtable.New(zm, sb.BlockSize, sb.Version, sb.Native, sb.LongNames)

	rootIdx, err := ibm.Alloc()
	if err != nil {
		return err
	}
	root := &inode.Info{Index: rootIdx, Mode: types.ModeDir, Nlinks: 1, Dirty: true}

	if err := dt.Insert(root, ".", rootIdx); err != nil {
		return err
	}
	root.Nlinks++
	if err := dt.Insert(root, "..", rootIdx); err != nil {
		return err
	}
	root.Nlinks++

	if err := codec.Encode(root); err != nil {
		return err
	}
	if err := cache.FlushCache(); err != nil {
		return mfserrors.Wrap("mkfs.write", mfserrors.KindIO, err)
	}
	return nil
}
