package volparts

import "github.com/deploymenttheory/go-minixfs/internal/blockdev"

// readBytes reads the byte range [offset, offset+length) from dev,
// spanning as many blocks as needed. Probers work from standard on-disk
// byte offsets (boot sector fields, superblock fields) that rarely align
// to a device's block size, so every prober goes through this instead of
// assuming BSize() == 512.
func readBytes(dev blockdev.BlockDev, offset, length uint32) ([]byte, error) {
	bs := dev.BSize()
	firstBlock := offset / bs
	lastBlock := (offset + length - 1) / bs
	cnt := lastBlock - firstBlock + 1

	if firstBlock+cnt > dev.NBlocks() {
		return nil, errShortDevice
	}

	buf := make([]byte, cnt*bs)
	if err := dev.Read(firstBlock, cnt, buf); err != nil {
		return nil, err
	}

	start := offset - firstBlock*bs
	return buf[start : start+length], nil
}
