package blockdev

import "github.com/deploymenttheory/go-minixfs/internal/mfserrors"

// MemDevice is an in-memory BlockDev, the ramdisk-equivalent used to build
// MINIX images in tests without touching the filesystem.
type MemDevice struct {
	bsize uint32
	data  []byte
}

// NewMemDevice allocates an all-zero device of nblocks blocks of bsize
// bytes each.
func NewMemDevice(bsize, nblocks uint32) *MemDevice {
	return &MemDevice{bsize: bsize, data: make([]byte, uint64(bsize)*uint64(nblocks))}
}

func (d *MemDevice) BSize() uint32   { return d.bsize }
func (d *MemDevice) NBlocks() uint32 { return uint32(uint64(len(d.data)) / uint64(d.bsize)) }

func (d *MemDevice) Read(ba uint32, cnt uint32, buf []byte) error {
	if err := validateRange(d, ba, cnt); err != nil {
		return err
	}
	need := int(cnt) * int(d.bsize)
	if len(buf) < need {
		return mfserrors.New("blockdev.read", mfserrors.KindInvalidArg)
	}
	start := int64(ba) * int64(d.bsize)
	copy(buf[:need], d.data[start:start+int64(need)])
	return nil
}

func (d *MemDevice) Write(ba uint32, cnt uint32, buf []byte) error {
	if err := validateRange(d, ba, cnt); err != nil {
		return err
	}
	need := int(cnt) * int(d.bsize)
	if len(buf) < need {
		return mfserrors.New("blockdev.write", mfserrors.KindInvalidArg)
	}
	start := int64(ba) * int64(d.bsize)
	copy(d.data[start:start+int64(need)], buf[:need])
	return nil
}

func (d *MemDevice) Sync() error { return nil }
