package volparts

import (
	"bytes"
	"encoding/binary"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
)

// errShortDevice marks a device too small to hold the structure a prober
// is looking for — treated as "not recognized", not a real I/O failure.
var errShortDevice = mfserrors.New("volparts.probe", mfserrors.KindInvalidArg)

func notRecognized(err error) (ProbeInfo, bool, error) {
	if err == errShortDevice {
		return ProbeInfo{}, false, nil
	}
	return ProbeInfo{}, false, mfserrors.Wrap("volparts.probe", mfserrors.KindIO, err)
}

// fatProber recognizes FAT12/16/32 by the boot sector signature (0x55AA
// at offset 510) plus the BPB's filesystem-type string, and extracts the
// volume label spec.md §6 says FAT supports.
type fatProber struct{}

func (fatProber) Probe(dev blockdev.BlockDev) (ProbeInfo, bool, error) {
	boot, err := readBytes(dev, 0, 512)
	if err != nil {
		return notRecognized(err)
	}
	if boot[510] != 0x55 || boot[511] != 0xAA {
		return ProbeInfo{}, false, nil
	}

	if fsType := bytes.TrimRight(boot[0x36:0x36+8], " "); isFAT1216(fsType) {
		label := string(bytes.TrimRight(boot[0x2B:0x2B+11], " "))
		return ProbeInfo{FSType: FSFAT, Label: label}, true, nil
	}
	if fsType := bytes.TrimRight(boot[0x52:0x52+8], " "); isFAT32(fsType) {
		label := string(bytes.TrimRight(boot[0x47:0x47+11], " "))
		return ProbeInfo{FSType: FSFAT, Label: label}, true, nil
	}
	return ProbeInfo{}, false, nil
}

func isFAT1216(b []byte) bool {
	s := string(b)
	return s == "FAT12" || s == "FAT16"
}

func isFAT32(b []byte) bool {
	return string(b) == "FAT32"
}

// exFATProber recognizes exFAT's fixed 8-byte "EXFAT   " signature at
// offset 3. exFAT labels live in the root directory's label entry, which
// this driver never walks (MFS is the only filesystem this module writes
// to; exFAT is recognized for volume-management purposes only per
// spec.md §1's probing-but-not-mounting carve-out), so Label is always
// empty here.
type exFATProber struct{}

func (exFATProber) Probe(dev blockdev.BlockDev) (ProbeInfo, bool, error) {
	sig, err := readBytes(dev, 3, 8)
	if err != nil {
		return notRecognized(err)
	}
	if string(sig) != "EXFAT   " {
		return ProbeInfo{}, false, nil
	}
	return ProbeInfo{FSType: FSExFAT}, true, nil
}

// ext4Prober recognizes ext2/3/4 by the superblock magic 0xEF53 at byte
// offset 1024+56, and extracts s_volume_name at 1024+120.
type ext4Prober struct{}

func (ext4Prober) Probe(dev blockdev.BlockDev) (ProbeInfo, bool, error) {
	magicBytes, err := readBytes(dev, 1024+56, 2)
	if err != nil {
		return notRecognized(err)
	}
	if binary.LittleEndian.Uint16(magicBytes) != 0xEF53 {
		return ProbeInfo{}, false, nil
	}

	nameBytes, err := readBytes(dev, 1024+120, 16)
	if err != nil {
		return notRecognized(err)
	}
	label := string(bytes.TrimRight(nameBytes, "\x00"))
	return ProbeInfo{FSType: FSExt4, Label: label}, true, nil
}

// cdfsProber recognizes ISO9660 by the "CD001" standard identifier at
// sector 16 (offset 32768), byte 1. CDFS carries no user-settable label
// surface here (spec.md §6 "MINIX and CDFS do not" support labels): the
// Volume Identifier field is reported as the partition's label (and so
// names its /vol/ auto-mount path), but it cannot be changed.
type cdfsProber struct{}

func (cdfsProber) Probe(dev blockdev.BlockDev) (ProbeInfo, bool, error) {
	ident, err := readBytes(dev, 32768+1, 5)
	if err != nil {
		return notRecognized(err)
	}
	if string(ident) != "CD001" {
		return ProbeInfo{}, false, nil
	}

	volID, err := readBytes(dev, 32768+40, 32)
	if err != nil {
		return notRecognized(err)
	}
	label := string(bytes.TrimRight(volID, " "))
	return ProbeInfo{FSType: FSCDFS, Label: label}, true, nil
}
