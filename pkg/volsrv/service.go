// Package volsrv wires VolParts, VolVolumes and MfsOps into the single
// wire-surface interface spec.md §6 names (SPEC_FULL.md supplemented
// feature #4: "volsrv.c's synchronous method surface... implemented as a
// Go interface with one method per wire call; no actual RPC transport is
// implemented"). It plays the role the teacher's pkg/services.
// ServiceFactory plays for APFS: a small top-level constructor wiring
// managers into one orchestration surface.
package volsrv

import (
	"github.com/deploymenttheory/go-minixfs/internal/driverconfig"
	"github.com/deploymenttheory/go-minixfs/internal/mfs"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/volparts"
	"github.com/deploymenttheory/go-minixfs/internal/volumes"
)

// PartInfoResult is the decoded reply to a PartInfo call (spec.md §6).
type PartInfoResult struct {
	SvcID     uint64
	PCnt      volparts.PartContent
	FSType    volparts.FSType
	Label     string
	CurMP     string
	CurMPAuto bool
}

// VolInfoResult is the decoded reply to a VolInfo call (spec.md §6).
type VolInfoResult struct {
	ID    uint64
	Label string
	Path  string
}

// Service is the full wire-surface contract spec.md §6 enumerates by
// method name.
type Service interface {
	GetParts() []uint64
	PartAdd(svcID uint64, svcName string, dev blockDev) error
	PartInfo(svcID uint64) (PartInfoResult, error)
	PartEject(svcID uint64) error
	PartEmpty(svcID uint64) error
	PartInsert(svcID uint64) error
	PartInsertByPath(path string) error
	PartLabelSupport(fstype volparts.FSType) bool
	PartMkfs(svcID uint64, fstype volparts.FSType, label, mountp string) error
	PartSetMountp(svcID uint64, mountp string) error
	GetVolumes() []uint64
	VolInfo(volumeID uint64) (VolInfoResult, error)

	// MergeBootConfig loads the post-root-mount /w configuration
	// document and merges previously-unknown labels into the live
	// volume registry (spec.md §4.8's boot-time second pass).
	MergeBootConfig(path string) error
}

// blockDev is a local alias so this package's public signatures don't
// force every caller to import internal/blockdev directly; the concrete
// type is always internal/blockdev.BlockDev.
type blockDev = interface {
	Read(ba uint32, cnt uint32, buf []byte) error
	Write(ba uint32, cnt uint32, buf []byte) error
	BSize() uint32
	NBlocks() uint32
	Sync() error
}

// impl is the process-wide volume service instance spec.md §9 "Global
// state" describes: one VolParts manager, one VolVolumes registry, one
// MfsOps mount registry.
type impl struct {
	parts *volparts.Manager
	vols  *volumes.Registry
	mfs   *mfs.Ops
}

// New builds the volume service over a freshly loaded volume registry at
// cfgPath and a fresh MfsOps mount registry, using cfg for driver
// tunables (cache mode, auto-mount policy defaults).
func New(cfgPath string, cfg *driverconfig.Config) (Service, error) {
	vols, err := volumes.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	ops := mfs.NewOps()
	parts := volparts.NewManager(vols, ops, cfg)
	return &impl{parts: parts, vols: vols, mfs: ops}, nil
}

func (s *impl) GetParts() []uint64 { return s.parts.GetParts() }

func (s *impl) PartAdd(svcID uint64, svcName string, dev blockDev) error {
	_, err := s.parts.PartAdd(svcID, svcName, dev)
	return err
}

func (s *impl) PartInfo(svcID uint64) (PartInfoResult, error) {
	p, err := s.parts.PartInfo(svcID)
	if err != nil {
		return PartInfoResult{}, err
	}
	return PartInfoResult{
		SvcID:     p.SvcID,
		PCnt:      p.Content,
		FSType:    p.FSType,
		Label:     p.Label,
		CurMP:     p.CurMP,
		CurMPAuto: p.CurMPAuto,
	}, nil
}

func (s *impl) PartEject(svcID uint64) error { return s.parts.PartEject(svcID) }
func (s *impl) PartEmpty(svcID uint64) error { return s.parts.PartEmpty(svcID) }
func (s *impl) PartInsert(svcID uint64) error { return s.parts.PartInsert(svcID) }

func (s *impl) PartInsertByPath(path string) error { return s.parts.PartInsertByPath(path) }

func (s *impl) PartLabelSupport(fstype volparts.FSType) bool {
	return volparts.PartLabelSupport(fstype)
}

func (s *impl) PartMkfs(svcID uint64, fstype volparts.FSType, label, mountp string) error {
	return s.parts.PartMkfs(svcID, fstype, label, mountp)
}

func (s *impl) PartSetMountp(svcID uint64, mountp string) error {
	return s.parts.PartSetMountp(svcID, mountp)
}

func (s *impl) GetVolumes() []uint64 {
	persistent := s.vols.PersistentVolumes()
	out := make([]uint64, len(persistent))
	for i, v := range persistent {
		out[i] = v.ID
	}
	return out
}

func (s *impl) VolInfo(volumeID uint64) (VolInfoResult, error) {
	v, ok := s.vols.ByID(volumeID)
	if !ok {
		return VolInfoResult{}, mfserrors.New("volsrv.vol_info", mfserrors.KindNoEntry)
	}
	return VolInfoResult{ID: v.ID, Label: v.Label, Path: v.Mountp}, nil
}

// MergeBootConfig loads the post-root-mount /w configuration document and
// merges previously-unknown labels into the live volume registry (spec.md
// §4.8's boot-time second pass).
func (s *impl) MergeBootConfig(path string) error {
	return s.parts.MergeBootConfig(path)
}
