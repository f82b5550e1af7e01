package volparts

import (
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/mkfs"
	"github.com/deploymenttheory/go-minixfs/internal/volcfg"
)

// PartMkfs writes a fresh filesystem of fstype to svcID's device, then
// re-probes the device (rather than trusting label as given) and sets
// the new mountpoint — the reference mkfs.c always re-probes afterward
// because the underlying mkfs utility may canonicalize the label (e.g.
// case-folding for FAT), per spec.md §4.8 and SPEC_FULL.md supplemented
// feature #7. Only FSMinix is actually formatted; every other requested
// fstype fails KindNotSupported (spec.md §1's "filesystems other than
// MINIX" non-goal applies to write support, not probing).
func (m *Manager) PartMkfs(svcID uint64, fstype FSType, label, mountp string) error {
	m.mu.Lock()
	p, ok := m.parts[svcID]
	m.mu.Unlock()
	if !ok {
		return mfserrors.New("volparts.mkfs", mfserrors.KindNoEntry)
	}
	if fstype != FSMinix {
		return mfserrors.New("volparts.mkfs", mfserrors.KindNotSupported)
	}

	if err := mkfs.WriteMinix(p.Dev, mkfs.Options{Label: label}); err != nil {
		return err
	}

	if err := m.PartInsert(svcID); err != nil {
		return err
	}
	return m.PartSetMountp(svcID, mountp)
}

// loadMergeEntries is volcfg.Load under the name MergeBootConfig calls,
// kept in its own small function so the merge call site reads as one
// step.
func loadMergeEntries(path string) ([]volcfg.Entry, error) {
	return volcfg.Load(path)
}
