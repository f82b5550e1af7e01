// Package zonemap translates an inode's logical zone numbers into physical
// zone numbers through the direct, single-indirect and double-indirect
// zone pointers (spec.md §4.3 "ZoneMap"). log2_zone_size is always 0 in
// this driver (spec.md Non-goals), so a zone and a block are the same
// size and the two terms are used interchangeably below.
package zonemap

import (
	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/bitmap"
	"github.com/deploymenttheory/go-minixfs/internal/inode"
	"github.com/deploymenttheory/go-minixfs/internal/mendian"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// ZoneMap resolves an inode's logical zone numbers into physical ones,
// growing the indirect zone tree on write and shrinking it on truncate.
type ZoneMap struct {
	cache         *blockdev.Cache
	zones         *bitmap.Bitmap
	version       types.Version
	native        bool
	ptrSize       int    // bytes per zone pointer on disk: 2 for v1, 4 for v2/v3
	perZone       uint32 // zone pointers per indirect zone
	firstdatazone uint32 // physical zone number that zone-bitmap bit 0 represents
}

// New builds a ZoneMap over cache, allocating new zones from zones. Zone
// bitmap bit 0 represents physical zone firstdatazone (spec.md §4.2 edge
// case), so every allocation/free translates through that offset.
func New(cache *blockdev.Cache, zones *bitmap.Bitmap, version types.Version, native bool, firstdatazone uint32) *ZoneMap {
	ptrSize := types.ZonePtrSize(version)
	return &ZoneMap{
		cache:         cache,
		zones:         zones,
		version:       version,
		native:        native,
		ptrSize:       ptrSize,
		perZone:       cache.BSize() / uint32(ptrSize),
		firstdatazone: firstdatazone,
	}
}

// allocZone allocates a bit from the zone bitmap and translates it into a
// physical zone number.
func (z *ZoneMap) allocZone() (uint32, error) {
	bit, err := z.zones.Alloc()
	if err != nil {
		return 0, err
	}
	return z.firstdatazone + bit, nil
}

// freeZone translates a physical zone number back into a zone-bitmap bit
// and frees it.
func (z *ZoneMap) freeZone(zoneNum uint32) error {
	if zoneNum < z.firstdatazone {
		return mfserrors.New("zonemap.freeZone", mfserrors.KindInvalidArg)
	}
	return z.zones.Free(zoneNum - z.firstdatazone)
}

func (z *ZoneMap) readPtr(buf []byte, slot uint32) uint32 {
	off := slot * uint32(z.ptrSize)
	order := mendian.ByteOrder(z.native)
	if z.ptrSize == 2 {
		return uint32(order.Uint16(buf[off : off+2]))
	}
	return order.Uint32(buf[off : off+4])
}

func (z *ZoneMap) writePtr(buf []byte, slot uint32, val uint32) {
	off := slot * uint32(z.ptrSize)
	order := mendian.ByteOrder(z.native)
	if z.ptrSize == 2 {
		order.PutUint16(buf[off:off+2], uint16(val))
		return
	}
	order.PutUint32(buf[off:off+4], val)
}

// capacity reports the number of zones a layout this shape can address:
// 7 direct + perZone single-indirect + perZone*perZone double-indirect.
func (z *ZoneMap) capacity() uint64 {
	return uint64(types.NumDirectZones) + uint64(z.perZone) + uint64(z.perZone)*uint64(z.perZone)
}

// Resolve returns the physical zone for logical zone number rel, without
// allocating. A hole (never-written zone) returns physical zone 0 and a
// nil error — callers must special-case 0 as "read as zero" (spec.md
// §4.3 read-mode sparse semantics).
func (z *ZoneMap) Resolve(info *inode.Info, rel uint32) (uint32, error) {
	return z.walk(info, rel, false)
}

// Allocate returns the physical zone for logical zone number rel,
// allocating a fresh zone (and any indirect zones needed to address it)
// if it doesn't exist yet (spec.md §4.3 write-mode lazy allocation).
func (z *ZoneMap) Allocate(info *inode.Info, rel uint32) (uint32, error) {
	return z.walk(info, rel, true)
}

func (z *ZoneMap) walk(info *inode.Info, rel uint32, alloc bool) (uint32, error) {
	if uint64(rel) >= z.capacity() {
		return 0, mfserrors.New("zonemap.walk", mfserrors.KindFileTooLarge)
	}

	if rel < types.NumDirectZones {
		if info.Dzone[rel] == 0 && alloc {
			newZone, err := z.allocZone()
			if err != nil {
				return 0, mfserrors.Wrap("zonemap.walk", mfserrors.KindNoSpace, err)
			}
			if err := z.zeroZone(newZone); err != nil {
				return 0, err
			}
			info.Dzone[rel] = newZone
			info.Dirty = true
		}
		return info.Dzone[rel], nil
	}
	rel -= types.NumDirectZones

	if rel < z.perZone {
		return z.walkIndirect(&info.Izone[0], rel, alloc, info)
	}
	rel -= z.perZone

	if rel >= z.perZone*z.perZone {
		return 0, mfserrors.New("zonemap.walk", mfserrors.KindFileTooLarge)
	}
	outer := rel / z.perZone
	inner := rel % z.perZone

	if info.Izone[1] == 0 {
		if !alloc {
			return 0, nil
		}
		newZone, err := z.allocZone()
		if err != nil {
			return 0, mfserrors.Wrap("zonemap.walk", mfserrors.KindNoSpace, err)
		}
		if err := z.zeroZone(newZone); err != nil {
			return 0, err
		}
		info.Izone[1] = newZone
		info.Dirty = true
	}

	outerBuf, err := z.cache.GetBlock(info.Izone[1])
	if err != nil {
		return 0, mfserrors.Wrap("zonemap.walk", mfserrors.KindIO, err)
	}
	midZone := z.readPtr(outerBuf, outer)
	if midZone == 0 {
		if !alloc {
			return 0, nil
		}
		newZone, err := z.allocZone()
		if err != nil {
			return 0, mfserrors.Wrap("zonemap.walk", mfserrors.KindNoSpace, err)
		}
		if err := z.zeroZone(newZone); err != nil {
			return 0, err
		}
		z.writePtr(outerBuf, outer, newZone)
		if err := z.cache.MarkDirty(info.Izone[1]); err != nil {
			return 0, err
		}
		midZone = newZone
	}

	midBuf, err := z.cache.GetBlock(midZone)
	if err != nil {
		return 0, mfserrors.Wrap("zonemap.walk", mfserrors.KindIO, err)
	}
	phys := z.readPtr(midBuf, inner)
	if phys == 0 && alloc {
		newZone, err := z.allocZone()
		if err != nil {
			return 0, mfserrors.Wrap("zonemap.walk", mfserrors.KindNoSpace, err)
		}
		if err := z.zeroZone(newZone); err != nil {
			return 0, err
		}
		z.writePtr(midBuf, inner, newZone)
		if err := z.cache.MarkDirty(midZone); err != nil {
			return 0, err
		}
		phys = newZone
	}
	return phys, nil
}

func (z *ZoneMap) walkIndirect(ptr *uint32, slot uint32, alloc bool, info *inode.Info) (uint32, error) {
	if *ptr == 0 {
		if !alloc {
			return 0, nil
		}
		newZone, err := z.allocZone()
		if err != nil {
			return 0, mfserrors.Wrap("zonemap.walkIndirect", mfserrors.KindNoSpace, err)
		}
		if err := z.zeroZone(newZone); err != nil {
			return 0, err
		}
		*ptr = newZone
		info.Dirty = true
	}

	buf, err := z.cache.GetBlock(*ptr)
	if err != nil {
		return 0, mfserrors.Wrap("zonemap.walkIndirect", mfserrors.KindIO, err)
	}
	phys := z.readPtr(buf, slot)
	if phys == 0 && alloc {
		newZone, err := z.allocZone()
		if err != nil {
			return 0, mfserrors.Wrap("zonemap.walkIndirect", mfserrors.KindNoSpace, err)
		}
		if err := z.zeroZone(newZone); err != nil {
			return 0, err
		}
		z.writePtr(buf, slot, newZone)
		if err := z.cache.MarkDirty(*ptr); err != nil {
			return 0, err
		}
		phys = newZone
	}
	return phys, nil
}

func (z *ZoneMap) zeroZone(zoneNum uint32) error {
	buf := make([]byte, z.cache.BSize())
	return z.cache.PutBlock(zoneNum, buf)
}

// GetZoneBytes returns the cached contents of physical zone zoneNum.
// Since log2_zone_size is always 0, a zone and a block are the same unit
// and this delegates straight to the cache.
func (z *ZoneMap) GetZoneBytes(zoneNum uint32) ([]byte, error) {
	buf, err := z.cache.GetBlock(zoneNum)
	if err != nil {
		return nil, mfserrors.Wrap("zonemap.getZoneBytes", mfserrors.KindIO, err)
	}
	return buf, nil
}

// MarkZoneDirty flags zoneNum as modified in the underlying cache.
func (z *ZoneMap) MarkZoneDirty(zoneNum uint32) error {
	return z.cache.MarkDirty(zoneNum)
}

// BSize exposes the underlying block/zone size in bytes.
func (z *ZoneMap) BSize() uint32 { return z.cache.BSize() }

// Shrink frees every zone at logical index >= keepZones, including
// indirect zones that become wholly empty, and clears the corresponding
// pointers in info (spec.md §4.3 shrink/truncate path, §4.6 truncate()).
func (z *ZoneMap) Shrink(info *inode.Info, keepZones uint32) error {
	for i := uint32(types.NumDirectZones); i > keepZones && i > 0; i-- {
		idx := i - 1
		if idx >= types.NumDirectZones {
			continue
		}
		if info.Dzone[idx] != 0 {
			if err := z.freeZone(info.Dzone[idx]); err != nil {
				return err
			}
			info.Dzone[idx] = 0
			info.Dirty = true
		}
	}

	singleStart := uint32(types.NumDirectZones)
	singleEnd := singleStart + z.perZone
	if info.Izone[0] != 0 {
		keepInSingle := uint32(0)
		if keepZones > singleStart {
			keepInSingle = keepZones - singleStart
			if keepInSingle > z.perZone {
				keepInSingle = z.perZone
			}
		}
		empty, err := z.shrinkIndirect(info.Izone[0], keepInSingle)
		if err != nil {
			return err
		}
		if empty {
			if err := z.freeZone(info.Izone[0]); err != nil {
				return err
			}
			info.Izone[0] = 0
			info.Dirty = true
		}
	}

	if info.Izone[1] != 0 {
		if err := z.shrinkDoubleIndirect(info, keepZones, singleEnd); err != nil {
			return err
		}
	}
	return nil
}

// shrinkIndirect frees every pointer in the indirect zone at index >=
// keep, returning true if the whole zone is now empty.
func (z *ZoneMap) shrinkIndirect(zoneNum uint32, keep uint32) (bool, error) {
	buf, err := z.cache.GetBlock(zoneNum)
	if err != nil {
		return false, mfserrors.Wrap("zonemap.shrinkIndirect", mfserrors.KindIO, err)
	}
	dirty := false
	for slot := keep; slot < z.perZone; slot++ {
		phys := z.readPtr(buf, slot)
		if phys == 0 {
			continue
		}
		if err := z.freeZone(phys); err != nil {
			return false, err
		}
		z.writePtr(buf, slot, 0)
		dirty = true
	}
	if dirty {
		if err := z.cache.MarkDirty(zoneNum); err != nil {
			return false, err
		}
	}
	for slot := uint32(0); slot < z.perZone; slot++ {
		if z.readPtr(buf, slot) != 0 {
			return false, nil
		}
	}
	return true, nil
}

func (z *ZoneMap) shrinkDoubleIndirect(info *inode.Info, keepZones, singleEnd uint32) error {
	doubleStart := singleEnd
	keepOuter := uint32(0)
	keepInnerOfPartial := uint32(0)
	if keepZones > doubleStart {
		rel := keepZones - doubleStart
		keepOuter = rel / z.perZone
		keepInnerOfPartial = rel % z.perZone
	}

	outerBuf, err := z.cache.GetBlock(info.Izone[1])
	if err != nil {
		return mfserrors.Wrap("zonemap.shrinkDoubleIndirect", mfserrors.KindIO, err)
	}

	if keepInnerOfPartial > 0 && keepOuter < z.perZone {
		midZone := z.readPtr(outerBuf, keepOuter)
		if midZone != 0 {
			if _, err := z.shrinkIndirect(midZone, keepInnerOfPartial); err != nil {
				return err
			}
		}
		keepOuter++ // partial mid zone is preserved even if fully freed above
	}

	outerDirty := false
	for slot := keepOuter; slot < z.perZone; slot++ {
		midZone := z.readPtr(outerBuf, slot)
		if midZone == 0 {
			continue
		}
		empty, err := z.shrinkIndirect(midZone, 0)
		if err != nil {
			return err
		}
		if empty {
			if err := z.freeZone(midZone); err != nil {
				return err
			}
		}
		z.writePtr(outerBuf, slot, 0)
		outerDirty = true
	}
	if outerDirty {
		if err := z.cache.MarkDirty(info.Izone[1]); err != nil {
			return err
		}
	}

	if keepOuter == 0 {
		for slot := uint32(0); slot < z.perZone; slot++ {
			if z.readPtr(outerBuf, slot) != 0 {
				return nil
			}
		}
		if err := z.freeZone(info.Izone[1]); err != nil {
			return err
		}
		info.Izone[1] = 0
		info.Dirty = true
	}
	return nil
}
