// Package inode implements InodeCodec: encode/decode of v1 (16-bit) and
// v2/v3 (32-bit) on-disk inodes (spec.md §3 "Inode (in-memory,
// InodeInfo)", §4.1).
package inode

import (
	"fmt"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/mendian"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

// Info is the uniform in-memory inode representation. Fields missing on
// disk for a given version (v1 has no atime/ctime) are zeroed.
type Info struct {
	Mode   uint16
	Nlinks uint16
	Uid    uint16
	Gid    uint16
	Size   uint32
	Atime  uint32
	Mtime  uint32
	Ctime  uint32
	Dzone  [types.NumDirectZones]uint32
	Izone  [2]uint32 // [0] single indirect, [1] double indirect

	Index uint32 // 1-based inode number
	Dirty bool
}

// IsDir reports whether the inode describes a directory.
func (i *Info) IsDir() bool { return i.Mode&types.ModeFmt == types.ModeDir }

// Codec encodes/decodes inodes against a cache at a known table offset.
type Codec struct {
	cache       *blockdev.Cache
	itableOff   uint32
	inoPerBlock uint32
	ninodes     uint32
	version     types.Version
	native      bool
}

// New builds a Codec for the given superblock layout.
func New(cache *blockdev.Cache, itableOff, inoPerBlock, ninodes uint32, version types.Version, native bool) *Codec {
	return &Codec{cache: cache, itableOff: itableOff, inoPerBlock: inoPerBlock, ninodes: ninodes, version: version, native: native}
}

func (c *Codec) slot(index uint32) (block uint32, rawSize, offset uint32, err error) {
	if index == 0 || index > c.ninodes {
		return 0, 0, 0, mfserrors.New("inode.slot", mfserrors.KindInvalidArg)
	}
	rawSize = types.RawInodeSize(c.version)
	block = c.itableOff + (index-1)/c.inoPerBlock
	offset = ((index - 1) % c.inoPerBlock) * rawSize
	return block, rawSize, offset, nil
}

// Decode reads and decodes the inode at index.
func (c *Codec) Decode(index uint32) (*Info, error) {
	block, rawSize, offset, err := c.slot(index)
	if err != nil {
		return nil, err
	}

	buf, err := c.cache.GetBlock(block)
	if err != nil {
		return nil, mfserrors.Wrap("inode.decode", mfserrors.KindIO, err)
	}
	if offset+rawSize > uint32(len(buf)) {
		return nil, mfserrors.Wrap("inode.decode", mfserrors.KindIO, fmt.Errorf("inode slot out of block bounds"))
	}
	raw := buf[offset : offset+rawSize]
	order := mendian.ByteOrder(c.native)

	info := &Info{Index: index}
	if c.version == types.V1 {
		info.Mode = order.Uint16(raw[0:2])
		info.Uid = order.Uint16(raw[2:4])
		info.Size = order.Uint32(raw[4:8])
		info.Mtime = order.Uint32(raw[8:12])
		info.Gid = uint16(raw[12])
		info.Nlinks = uint16(raw[13])
		for i := 0; i < 7; i++ {
			info.Dzone[i] = uint32(order.Uint16(raw[14+i*2 : 16+i*2]))
		}
		info.Izone[0] = uint32(order.Uint16(raw[28:30]))
		info.Izone[1] = uint32(order.Uint16(raw[30:32]))
		return info, nil
	}

	info.Mode = order.Uint16(raw[0:2])
	info.Nlinks = order.Uint16(raw[2:4])
	info.Uid = order.Uint16(raw[4:6])
	info.Gid = order.Uint16(raw[6:8])
	info.Size = order.Uint32(raw[8:12])
	info.Atime = order.Uint32(raw[12:16])
	info.Mtime = order.Uint32(raw[16:20])
	info.Ctime = order.Uint32(raw[20:24])
	for i := 0; i < 7; i++ {
		info.Dzone[i] = order.Uint32(raw[24+i*4 : 28+i*4])
	}
	info.Izone[0] = order.Uint32(raw[52:56])
	info.Izone[1] = order.Uint32(raw[56:60])
	return info, nil
}

// Encode writes info back to its on-disk slot and marks the block dirty.
func (c *Codec) Encode(info *Info) error {
	block, rawSize, offset, err := c.slot(info.Index)
	if err != nil {
		return err
	}

	buf, err := c.cache.GetBlock(block)
	if err != nil {
		return mfserrors.Wrap("inode.encode", mfserrors.KindIO, err)
	}
	if offset+rawSize > uint32(len(buf)) {
		return mfserrors.Wrap("inode.encode", mfserrors.KindIO, fmt.Errorf("inode slot out of block bounds"))
	}
	raw := buf[offset : offset+rawSize]
	order := mendian.ByteOrder(c.native)

	if c.version == types.V1 {
		order.PutUint16(raw[0:2], info.Mode)
		order.PutUint16(raw[2:4], info.Uid)
		order.PutUint32(raw[4:8], info.Size)
		order.PutUint32(raw[8:12], info.Mtime)
		raw[12] = byte(info.Gid)
		raw[13] = byte(info.Nlinks)
		for i := 0; i < 7; i++ {
			order.PutUint16(raw[14+i*2:16+i*2], uint16(info.Dzone[i]))
		}
		order.PutUint16(raw[28:30], uint16(info.Izone[0]))
		order.PutUint16(raw[30:32], uint16(info.Izone[1]))
		return c.cache.MarkDirty(block)
	}

	order.PutUint16(raw[0:2], info.Mode)
	order.PutUint16(raw[2:4], info.Nlinks)
	order.PutUint16(raw[4:6], info.Uid)
	order.PutUint16(raw[6:8], info.Gid)
	order.PutUint32(raw[8:12], info.Size)
	order.PutUint32(raw[12:16], info.Atime)
	order.PutUint32(raw[16:20], info.Mtime)
	order.PutUint32(raw[20:24], info.Ctime)
	for i := 0; i < 7; i++ {
		order.PutUint32(raw[24+i*4:28+i*4], info.Dzone[i])
	}
	order.PutUint32(raw[52:56], info.Izone[0])
	order.PutUint32(raw[56:60], info.Izone[1])
	return c.cache.MarkDirty(block)
}

// Free zeroes an inode's on-disk slot, used when destroying a node whose
// link count has reached zero (spec.md §4.5).
func (c *Codec) Free(index uint32) error {
	block, rawSize, offset, err := c.slot(index)
	if err != nil {
		return err
	}
	buf, err := c.cache.GetBlock(block)
	if err != nil {
		return mfserrors.Wrap("inode.free", mfserrors.KindIO, err)
	}
	for i := offset; i < offset+rawSize; i++ {
		buf[i] = 0
	}
	return c.cache.MarkDirty(block)
}
