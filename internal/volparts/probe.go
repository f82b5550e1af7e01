// Package volparts implements VolParts: partition discovery, filesystem
// probing, auto-mount policy, and the eject/insert/mkfs/set-mountpoint
// operations volsrv exposes over its wire surface (spec.md §4.8, §6).
package volparts

import (
	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/superblock"
)

// FSType is one of the filesystem kinds VolParts can recognize during a
// probe (spec.md §3 "Part.fstype").
type FSType int

const (
	FSUnknown FSType = iota
	FSExFAT
	FSFAT
	FSMinix
	FSExt4
	FSCDFS
)

func (f FSType) String() string {
	switch f {
	case FSExFAT:
		return "exfat"
	case FSFAT:
		return "fat"
	case FSMinix:
		return "minix"
	case FSExt4:
		return "ext4"
	case FSCDFS:
		return "cdfs"
	default:
		return "unknown"
	}
}

// SupportsLabel reports whether fstype's wire surface supports setting a
// volume label (spec.md §6 "Label support per FS").
func (f FSType) SupportsLabel() bool {
	switch f {
	case FSExFAT, FSFAT, FSExt4:
		return true
	default:
		return false
	}
}

// ProbeInfo is what a successful prober returns: the recognized
// filesystem kind and, when present, its on-disk volume label.
type ProbeInfo struct {
	FSType FSType
	Label  string
}

// Prober is one filesystem recognizer in the fixed probe order (spec.md
// §4.8 "Probe order... the order is fixed and... the first successful
// prober wins", §9 "Model as a table of implementations of a FsProber
// capability").
type Prober interface {
	// Probe inspects dev and reports whether it recognizes the
	// filesystem. ok is false (not an error) when the device simply
	// isn't this filesystem; err is reserved for genuine I/O failures.
	Probe(dev blockdev.BlockDev) (info ProbeInfo, ok bool, err error)
}

// proberOrder is the fixed sequence spec.md §4.8 mandates: "the order is
// fixed... {exFAT, FAT, MINIX, EXT4, cdfs}".
var proberOrder = []Prober{
	exFATProber{},
	fatProber{},
	minixProber{},
	ext4Prober{},
	cdfsProber{},
}

// Probe tries every registered prober in proberOrder until one recognizes
// dev. If none do, Probe distinguishes an all-zero device (Empty) from
// anything else (Unknown) per spec.md §4.8's "emptiness test".
func Probe(dev blockdev.BlockDev) (ProbeInfo, PartContent, error) {
	for _, p := range proberOrder {
		info, ok, err := p.Probe(dev)
		if err != nil {
			return ProbeInfo{}, PartUnknown, err
		}
		if ok {
			return info, PartFs, nil
		}
	}

	empty, err := isEmpty(dev)
	if err != nil {
		return ProbeInfo{}, PartUnknown, err
	}
	if empty {
		return ProbeInfo{}, PartEmpty, nil
	}
	return ProbeInfo{}, PartUnknown, nil
}

// PartContent classifies what Probe found on a partition (spec.md §3
// "Part.pcnt").
type PartContent int

const (
	PartEmpty PartContent = iota
	PartUnknown
	PartFs
)

// isEmpty reads the first block and reports whether it is all zero bytes,
// the "no recognizable structure at all" case spec.md §4.8 separates from
// "recognizable-but-unsupported structure" (Unknown).
func isEmpty(dev blockdev.BlockDev) (bool, error) {
	buf := make([]byte, dev.BSize())
	if err := dev.Read(0, 1, buf); err != nil {
		return false, mfserrors.Wrap("volparts.probe.empty", mfserrors.KindIO, err)
	}
	for _, b := range buf {
		if b != 0 {
			return false, nil
		}
	}
	return true, nil
}

// minixProber recognizes MINIX v1/v2/v3 by delegating to the real
// superblock loader (the same magic table MfsOps.Mount uses) — MINIX
// does not carry a volume label (spec.md §6 "MINIX and CDFS do not"
// support labels).
type minixProber struct{}

func (minixProber) Probe(dev blockdev.BlockDev) (ProbeInfo, bool, error) {
	if _, err := superblock.Load(dev); err != nil {
		if mfserrors.Is(err, mfserrors.KindNotSupported) {
			return ProbeInfo{}, false, nil
		}
		if mfserrors.Is(err, mfserrors.KindIO) || mfserrors.Is(err, mfserrors.KindInvalidArg) {
			// A short or too-small device isn't a MINIX image; let
			// later probers (or the emptiness test) decide.
			return ProbeInfo{}, false, nil
		}
		return ProbeInfo{}, false, err
	}
	return ProbeInfo{FSType: FSMinix}, true, nil
}
