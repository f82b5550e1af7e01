// Package mfs ties together the superblock, bitmaps, zone map, directory
// table and node cache into the VFS-facing operations a mounted MINIX
// volume exposes (spec.md §4.1 "MfsInstance", §4.6 "MfsOps").
package mfs

import (
	"io"
	"sync"

	"github.com/deploymenttheory/go-minixfs/internal/bitmap"
	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/dirtable"
	"github.com/deploymenttheory/go-minixfs/internal/inode"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/mlog"
	"github.com/deploymenttheory/go-minixfs/internal/nodecache"
	"github.com/deploymenttheory/go-minixfs/internal/superblock"
	"github.com/deploymenttheory/go-minixfs/internal/types"
	"github.com/deploymenttheory/go-minixfs/internal/zonemap"
)

var log = mlog.For(mlog.SubsystemMFS)

// LDirectory is the create() flag bit requesting a directory inode rather
// than a regular file (spec.md §4.6 create()).
const LDirectory uint32 = 1

// Instance holds everything MfsOps needs for one mounted device: the
// superblock, the two bitmaps, the zone map, the directory table and the
// node cache (spec.md §3 "MfsInstance").
type Instance struct {
	DevID   uint64
	Dev     blockdev.BlockDev
	Cache   *blockdev.Cache
	SB      *superblock.Info
	Codec   *inode.Codec
	IBitmap *bitmap.Bitmap
	ZBitmap *bitmap.Bitmap
	Zones   *zonemap.ZoneMap
	Dirs    *dirtable.DirTable
	Nodes   *nodecache.Cache
}

// Ops is the registry of mounted instances, the VFS-facing entry point
// spec.md §4.6 calls MfsOps.
type Ops struct {
	mu        sync.Mutex
	instances map[uint64]*Instance
}

// NewOps builds an empty MfsOps registry.
func NewOps() *Ops {
	return &Ops{instances: make(map[uint64]*Instance)}
}

// Mount reads dev's superblock, verifies its magic, and registers a new
// Instance under devID. opts selects the buffer cache mode via the
// "wtcache" literal (spec.md §4.6 mount(), §7).
func (o *Ops) Mount(devID uint64, dev blockdev.BlockDev, opts string) (*Instance, error) {
	o.mu.Lock()
	_, already := o.instances[devID]
	o.mu.Unlock()
	if already {
		return nil, mfserrors.New("mfs.mount", mfserrors.KindBusy)
	}

	sb, err := superblock.Load(dev)
	if err != nil {
		return nil, err
	}
	if sb.Dirty {
		log.WithField("dev", devID).Warn("mounting image with dirty state flag set")
	}
	sb.Dirty = true

	cache := blockdev.NewCache(dev, blockdev.ModeFromOption(opts))
	ibaseBlock := types.FirstMetaBlock
	zbaseBlock := ibaseBlock + sb.IbmapBlocks

	ibm := bitmap.New(cache, bitmap.KindInode, ibaseBlock, sb.IbmapBlocks, sb.Ninodes+1)
	zoneBits := sb.Nzones - sb.Firstdatazone
	zbm := bitmap.New(cache, bitmap.KindZone, zbaseBlock, sb.ZbmapBlocks, zoneBits)

	zm := zonemap.New(cache, zbm, sb.Version, sb.Native, sb.Firstdatazone)
	codec := inode.New(cache, sb.ItableOff, sb.InoPerBlock, sb.Ninodes, sb.Version, sb.Native)
	dt := dirtable.New(zm, sb.BlockSize, sb.Version, sb.Native, sb.LongNames)
	nc := nodecache.New(codec, zm, ibm)

	inst := &Instance{
		DevID:   devID,
		Dev:     dev,
		Cache:   cache,
		SB:      sb,
		Codec:   codec,
		IBitmap: ibm,
		ZBitmap: zbm,
		Zones:   zm,
		Dirs:    dt,
		Nodes:   nc,
	}

	o.mu.Lock()
	o.instances[devID] = inst
	o.mu.Unlock()
	return inst, nil
}

// Get returns the mounted Instance for devID, if any.
func (o *Ops) Get(devID uint64) (*Instance, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.instances[devID]
	return inst, ok
}

// Unmount refuses with Busy if any node for devID still has an
// outstanding reference, otherwise flushes the cache and releases the
// instance (spec.md §4.6 unmount()).
func (o *Ops) Unmount(devID uint64) error {
	o.mu.Lock()
	inst, ok := o.instances[devID]
	o.mu.Unlock()
	if !ok {
		return mfserrors.New("mfs.unmount", mfserrors.KindInvalidArg)
	}

	if inst.Nodes.Busy(devID) {
		return mfserrors.New("mfs.unmount", mfserrors.KindBusy)
	}

	inst.SB.Dirty = false
	if err := inst.Cache.PutBlock(types.SuperBlockNum, superblock.Encode(inst.SB)); err != nil {
		return mfserrors.Wrap("mfs.unmount", mfserrors.KindIO, err)
	}
	if err := inst.Cache.FlushCache(); err != nil {
		return mfserrors.Wrap("mfs.unmount", mfserrors.KindIO, err)
	}

	o.mu.Lock()
	delete(o.instances, devID)
	o.mu.Unlock()
	return nil
}

// RootGet returns the node for the always-present root directory inode.
func RootGet(inst *Instance) (*nodecache.Node, error) {
	return inst.Nodes.Get(inst.DevID, types.RootInode)
}

// NodeGet hits the node cache or decodes the inode from disk.
func NodeGet(inst *Instance, idx uint32) (*nodecache.Node, error) {
	return inst.Nodes.Get(inst.DevID, idx)
}

// NodePut releases a reference obtained from RootGet/NodeGet/Match/
// Create.
func NodePut(inst *Instance, n *nodecache.Node) error {
	return inst.Nodes.Put(n)
}

// Match scans parent's directory entries for name, returning the
// matching child node. Fails NotDir if parent isn't a directory, NoEntry
// if name isn't present (spec.md §4.6 match()).
func Match(inst *Instance, parent *nodecache.Node, name string) (*nodecache.Node, error) {
	if !parent.Info.IsDir() {
		return nil, mfserrors.New("mfs.match", mfserrors.KindNotDir)
	}
	entry, _, err := inst.Dirs.Lookup(parent.Info, name)
	if err != nil {
		return nil, err
	}
	return inst.Nodes.Get(inst.DevID, entry.Inum)
}

// Create allocates a fresh inode, directory if flags carries LDirectory
// otherwise a regular file, with nlinks=1 and zero size (spec.md §4.6
// create()). The returned node's refcount is 1 and it is marked dirty;
// the caller must eventually NodePut it.
func Create(inst *Instance, flags uint32) (*nodecache.Node, error) {
	idx, err := inst.IBitmap.Alloc()
	if err != nil {
		return nil, mfserrors.Wrap("mfs.create", mfserrors.KindNoSpace, err)
	}

	mode := types.ModeReg
	if flags&LDirectory != 0 {
		mode = types.ModeDir
	}
	info := &inode.Info{Index: idx, Mode: mode, Nlinks: 1, Dirty: true}

	node := &nodecache.Node{Dev: inst.DevID, Info: info}
	inst.Nodes.Insert(inst.DevID, node)
	return node, nil
}

// Link appends (name, child.Info.Index) to parent's directory. If child
// is a directory, it also writes "." and ".." inside child, incrementing
// child.Nlinks for "." and parent.Nlinks for ".." (spec.md §4.6 link()).
func Link(inst *Instance, parent, child *nodecache.Node, name string) error {
	if !parent.Info.IsDir() {
		return mfserrors.New("mfs.link", mfserrors.KindNotDir)
	}
	if err := inst.Dirs.Insert(parent.Info, name, child.Info.Index); err != nil {
		return err
	}
	parent.Info.Dirty = true

	if child.Info.IsDir() {
		if err := inst.Dirs.Insert(child.Info, ".", child.Info.Index); err != nil {
			return err
		}
		child.Info.Nlinks++
		if err := inst.Dirs.Insert(child.Info, "..", parent.Info.Index); err != nil {
			return err
		}
		parent.Info.Nlinks++
		child.Info.Dirty = true
	}
	return nil
}

// Unlink removes name from parent, decrementing child.Nlinks (and
// parent.Nlinks too if child is a directory). Rejects a non-empty
// directory with NotEmpty (spec.md §4.6 unlink()).
func Unlink(inst *Instance, parent, child *nodecache.Node, name string) error {
	if !parent.Info.IsDir() {
		return mfserrors.New("mfs.unlink", mfserrors.KindNotDir)
	}
	if child.Info.IsDir() {
		has, err := dirHasChildren(inst.Dirs, child.Info)
		if err != nil {
			return err
		}
		if has {
			return mfserrors.New("mfs.unlink", mfserrors.KindNotEmpty)
		}
	}

	if err := inst.Dirs.Remove(parent.Info, name); err != nil {
		return err
	}
	child.Info.Nlinks--
	child.Info.Dirty = true
	parent.Info.Dirty = true
	if child.Info.IsDir() {
		parent.Info.Nlinks--
	}
	return nil
}

// dirHasChildren reports whether dir has any real entry beyond its "."
// and ".." slots (always slots 0 and 1, written by Link).
func dirHasChildren(dt *dirtable.DirTable, dir *inode.Info) (bool, error) {
	n := dt.Count(dir)
	for i := uint32(2); i < n; i++ {
		e, err := dt.Read(dir, i)
		if err != nil {
			return false, err
		}
		if e.Inum != 0 {
			return true, nil
		}
	}
	return false, nil
}

// Destroy frees node's zones and inode bit. Only meaningful when
// node.Info.Nlinks == 0 (spec.md §4.6 destroy()).
func Destroy(inst *Instance, node *nodecache.Node) error {
	if node.Info.Nlinks != 0 {
		return mfserrors.New("mfs.destroy", mfserrors.KindInvalidArg)
	}
	return inst.Nodes.Destroy(node.Info)
}

// Read copies up to len(buf) bytes starting at pos from a regular file's
// content, stopping at EOF. Sparse holes read back as zero bytes. Returns
// (0, io.EOF) when pos is at or past the end of the file, and rejects a
// directory with InvalidArg — use ReadDirEntry for those (spec.md §4.6
// read()).
func Read(inst *Instance, node *nodecache.Node, pos uint32, buf []byte) (int, error) {
	info := node.Info
	if info.IsDir() {
		return 0, mfserrors.New("mfs.read", mfserrors.KindInvalidArg)
	}
	if pos >= info.Size {
		return 0, io.EOF
	}

	bs := inst.SB.BlockSize
	end := pos + uint32(len(buf))
	if end > info.Size {
		end = info.Size
	}

	total := uint32(0)
	cur := pos
	for cur < end {
		zoneIdx := cur / bs
		offInZone := cur % bs
		n := bs - offInZone
		if remaining := end - cur; n > remaining {
			n = remaining
		}

		phys, err := inst.Zones.Resolve(info, zoneIdx)
		if err != nil {
			return int(total), err
		}
		if phys == 0 {
			for i := uint32(0); i < n; i++ {
				buf[total+i] = 0
			}
		} else {
			zbuf, err := inst.Zones.GetZoneBytes(phys)
			if err != nil {
				return int(total), err
			}
			copy(buf[total:total+n], zbuf[offInZone:offInZone+n])
		}
		cur += n
		total += n
	}
	return int(total), nil
}

// ReadDirEntry returns the directory entry at pos and the position the
// next call should use. Positions 0 and 1 synthesize "." and ".." (spec.md
// §4.6 "directory read semantics"); "." never touches disk, ".." reads
// the real dirent link() wrote at slot 1 to recover its target inode.
// Positions >= 2 read dirtable slot pos directly, skipping cleared slots.
// Returns io.EOF once no slot remains.
func ReadDirEntry(inst *Instance, node *nodecache.Node, pos uint32) (dirtable.Entry, uint32, error) {
	if !node.Info.IsDir() {
		return dirtable.Entry{}, pos, mfserrors.New("mfs.readdir", mfserrors.KindNotDir)
	}
	if pos == 0 {
		return dirtable.Entry{Inum: node.Info.Index, Name: "."}, 1, nil
	}
	if pos == 1 {
		e, err := inst.Dirs.Read(node.Info, 1)
		if err != nil {
			return dirtable.Entry{}, pos, err
		}
		return dirtable.Entry{Inum: e.Inum, Name: ".."}, 2, nil
	}

	n := inst.Dirs.Count(node.Info)
	for pos < n {
		e, err := inst.Dirs.Read(node.Info, pos)
		if err != nil {
			return dirtable.Entry{}, pos, err
		}
		pos++
		if e.Inum != 0 {
			return e, pos, nil
		}
	}
	return dirtable.Entry{}, pos, io.EOF
}

// Write stores up to len(buf) bytes at pos, growing the file and
// allocating zones lazily. It writes into at most one zone per call —
// up to block_size - pos%block_size bytes — matching the reference
// implementation's per-call growth limit (spec.md §4.6 write()).
func Write(inst *Instance, node *nodecache.Node, pos uint32, buf []byte) (int, error) {
	info := node.Info
	bs := inst.SB.BlockSize
	offInZone := pos % bs

	n := bs - offInZone
	if uint32(len(buf)) < n {
		n = uint32(len(buf))
	}
	if uint64(pos)+uint64(n) > uint64(inst.SB.MaxFileSize) {
		return 0, mfserrors.New("mfs.write", mfserrors.KindFileTooLarge)
	}

	zoneIdx := pos / bs
	phys, err := inst.Zones.Allocate(info, zoneIdx)
	if err != nil {
		return 0, err
	}
	zbuf, err := inst.Zones.GetZoneBytes(phys)
	if err != nil {
		return 0, err
	}
	copy(zbuf[offInZone:offInZone+n], buf[:n])
	if err := inst.Zones.MarkZoneDirty(phys); err != nil {
		return 0, err
	}

	if newEnd := pos + n; newEnd > info.Size {
		info.Size = newEnd
	}
	info.Dirty = true
	return int(n), nil
}

// Truncate shrinks node to newsize, freeing every zone beyond it.
// Growing a file only ever happens through Write (spec.md §4.6
// truncate()).
func Truncate(inst *Instance, node *nodecache.Node, newsize uint32) error {
	info := node.Info
	if newsize >= info.Size {
		return nil
	}
	bs := inst.SB.BlockSize
	keepZones := (newsize + bs - 1) / bs
	if err := inst.Zones.Shrink(info, keepZones); err != nil {
		return err
	}
	info.Size = newsize
	info.Dirty = true
	return nil
}

// Stat is the externally visible subset of an inode's metadata.
type Stat struct {
	Dev    uint64
	Index  uint32
	Mode   uint16
	Nlinks uint16
	Size   uint32
	Atime  uint32
	Mtime  uint32
	Ctime  uint32
}

// GetStat reports node's size, nlinks, mode, times and device/index
// (spec.md §4.6 stat()).
func GetStat(inst *Instance, node *nodecache.Node) Stat {
	info := node.Info
	return Stat{
		Dev:    inst.DevID,
		Index:  info.Index,
		Mode:   info.Mode,
		Nlinks: info.Nlinks,
		Size:   info.Size,
		Atime:  info.Atime,
		Mtime:  info.Mtime,
		Ctime:  info.Ctime,
	}
}
