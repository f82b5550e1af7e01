// Package dirtable implements DirTable: the fixed-size directory entry
// reader/writer MfsOps uses for lookup, link, unlink and directory reads
// (spec.md §4.4).
package dirtable

import (
	"bytes"

	"github.com/deploymenttheory/go-minixfs/internal/inode"
	"github.com/deploymenttheory/go-minixfs/internal/mendian"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/deploymenttheory/go-minixfs/internal/zonemap"
)

// Entry is one directory slot. Inum == 0 marks the slot free.
type Entry struct {
	Inum uint32
	Name string
}

// DirTable reads and writes dirsize-byte entries inside a directory
// inode's data zones.
type DirTable struct {
	zm             *zonemap.ZoneMap
	version        types.Version
	native         bool
	dirsize        uint32
	maxNameLen     int
	inumSize       int // 2 bytes for v1/v2, 4 for v3
	entriesPerZone uint32
}

// New builds a DirTable for the given on-disk layout.
func New(zm *zonemap.ZoneMap, bsize uint32, version types.Version, native, longNames bool) *DirTable {
	dirsize := uint32(types.DirEntrySize(version, longNames))
	inumSize := 2
	if version == types.V3 {
		inumSize = 4
	}
	return &DirTable{
		zm:             zm,
		version:        version,
		native:         native,
		dirsize:        dirsize,
		maxNameLen:     types.MaxNameLen(version, longNames),
		inumSize:       inumSize,
		entriesPerZone: bsize / dirsize,
	}
}

// count returns the number of entry slots currently allocated to dir,
// derived from its size.
func (d *DirTable) count(dir *inode.Info) uint32 {
	return dir.Size / d.dirsize
}

// Read returns the entry at slot index, resolving (but not allocating)
// its backing zone. A zone that was never allocated reads as an all-free
// slot (Inum 0), matching sparse-hole semantics.
func (d *DirTable) Read(dir *inode.Info, index uint32) (Entry, error) {
	zoneIdx := index / d.entriesPerZone
	offInZone := (index % d.entriesPerZone) * d.dirsize

	phys, err := d.zm.Resolve(dir, zoneIdx)
	if err != nil {
		return Entry{}, err
	}
	if phys == 0 {
		return Entry{}, nil
	}

	buf, err := d.zm.GetZoneBytes(phys)
	if err != nil {
		return Entry{}, err
	}
	return d.decode(buf[offInZone : offInZone+d.dirsize]), nil
}

// Write stores entry at slot index, allocating a backing zone if needed
// and growing dir.Size when index is at or beyond the current entry
// count (spec.md §4.4 insert()).
func (d *DirTable) Write(dir *inode.Info, index uint32, entry Entry) error {
	zoneIdx := index / d.entriesPerZone
	offInZone := (index % d.entriesPerZone) * d.dirsize

	phys, err := d.zm.Allocate(dir, zoneIdx)
	if err != nil {
		return err
	}
	buf, err := d.zm.GetZoneBytes(phys)
	if err != nil {
		return err
	}
	d.encode(buf[offInZone:offInZone+d.dirsize], entry)
	if err := d.zm.MarkZoneDirty(phys); err != nil {
		return err
	}

	if newSize := (index + 1) * d.dirsize; newSize > dir.Size {
		dir.Size = newSize
		dir.Dirty = true
	}
	return nil
}

func (d *DirTable) decode(raw []byte) Entry {
	order := mendian.ByteOrder(d.native)
	var inum uint32
	if d.inumSize == 2 {
		inum = uint32(order.Uint16(raw[0:2]))
	} else {
		inum = order.Uint32(raw[0:4])
	}
	nameBytes := raw[d.inumSize:]
	if i := bytes.IndexByte(nameBytes, 0); i >= 0 {
		nameBytes = nameBytes[:i]
	}
	return Entry{Inum: inum, Name: string(nameBytes)}
}

func (d *DirTable) encode(raw []byte, entry Entry) {
	order := mendian.ByteOrder(d.native)
	if d.inumSize == 2 {
		order.PutUint16(raw[0:2], uint16(entry.Inum))
	} else {
		order.PutUint32(raw[0:4], entry.Inum)
	}
	nameBytes := raw[d.inumSize:]
	for i := range nameBytes {
		nameBytes[i] = 0
	}
	copy(nameBytes, entry.Name)
}

// Lookup scans dir for name, returning its entry and slot index.
// Fails NoEntry if not found, NotDir if dir isn't a directory.
func (d *DirTable) Lookup(dir *inode.Info, name string) (Entry, uint32, error) {
	if !dir.IsDir() {
		return Entry{}, 0, mfserrors.New("dirtable.lookup", mfserrors.KindNotDir)
	}
	n := d.count(dir)
	for i := uint32(0); i < n; i++ {
		e, err := d.Read(dir, i)
		if err != nil {
			return Entry{}, 0, err
		}
		if e.Inum != 0 && e.Name == name {
			return e, i, nil
		}
	}
	return Entry{}, 0, mfserrors.New("dirtable.lookup", mfserrors.KindNoEntry)
}

// Insert adds (name, inum) to dir, reusing the first free slot if any,
// otherwise appending a new one. Fails NameTooLong if name exceeds the
// layout's max_name_len, Exists if name is already present.
func (d *DirTable) Insert(dir *inode.Info, name string, inum uint32) error {
	if len(name) > d.maxNameLen {
		return mfserrors.New("dirtable.insert", mfserrors.KindNameTooLong)
	}

	n := d.count(dir)
	freeSlot := n
	for i := uint32(0); i < n; i++ {
		e, err := d.Read(dir, i)
		if err != nil {
			return err
		}
		if e.Inum != 0 {
			if e.Name == name {
				return mfserrors.New("dirtable.insert", mfserrors.KindExists)
			}
			continue
		}
		if freeSlot == n {
			freeSlot = i
		}
	}
	return d.Write(dir, freeSlot, Entry{Inum: inum, Name: name})
}

// Remove clears the entry named name, leaving its name bytes intact but
// zeroing Inum so the slot is reusable. Fails NoEntry if not found.
func (d *DirTable) Remove(dir *inode.Info, name string) error {
	_, idx, err := d.Lookup(dir, name)
	if err != nil {
		return err
	}
	entry, err := d.Read(dir, idx)
	if err != nil {
		return err
	}
	entry.Inum = 0
	return d.Write(dir, idx, entry)
}

// Count exposes the current entry-slot count, for callers building
// directory listings (MfsOps.read on a directory node).
func (d *DirTable) Count(dir *inode.Info) uint32 { return d.count(dir) }

// Dirsize exposes the on-disk entry size for this layout.
func (d *DirTable) Dirsize() uint32 { return d.dirsize }

// MaxNameLen exposes the maximum on-disk name length for this layout.
func (d *DirTable) MaxNameLen() int { return d.maxNameLen }
