// Package blockdev implements the BlockDev collaborator spec.md §1 treats
// as external ("block device access layer... out of scope"), plus the
// buffered cache spec.md calls for. MFS and volsrv only ever talk to the
// BlockDev interface; this package's *FileDevice backs real images and
// devices, and *MemDevice is the in-memory device the tests mount against.
package blockdev

import (
	"fmt"

	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
)

// BlockDev is the block-granular device contract named in spec.md §1.
type BlockDev interface {
	// Read reads cnt blocks starting at block address ba into buf, which
	// must be at least cnt*BSize() bytes.
	Read(ba uint32, cnt uint32, buf []byte) error

	// Write writes cnt blocks starting at block address ba from buf.
	Write(ba uint32, cnt uint32, buf []byte) error

	// BSize returns the device's block size in bytes.
	BSize() uint32

	// NBlocks returns the total number of blocks on the device.
	NBlocks() uint32

	// Sync flushes any device-level buffering (not the MFS cache — that
	// is a separate concern, see Cache).
	Sync() error
}

func validateRange(bd BlockDev, ba, cnt uint32) error {
	if cnt == 0 {
		return mfserrors.New("blockdev.range", mfserrors.KindInvalidArg)
	}
	if uint64(ba)+uint64(cnt) > uint64(bd.NBlocks()) {
		return mfserrors.Wrap("blockdev.range", mfserrors.KindInvalidArg,
			fmt.Errorf("block range [%d,%d) exceeds device size %d", ba, ba+cnt, bd.NBlocks()))
	}
	return nil
}
