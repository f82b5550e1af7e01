package volparts

import (
	"os"
	"sync"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/driverconfig"
	"github.com/deploymenttheory/go-minixfs/internal/locsvc"
	"github.com/deploymenttheory/go-minixfs/internal/mfs"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/mlog"
	"github.com/deploymenttheory/go-minixfs/internal/volumes"
)

var log = mlog.For(mlog.SubsystemVolsrv)

// Part is one discovered partition (spec.md §3 "Partition (Part)").
type Part struct {
	SvcID     uint64
	SvcName   string
	Dev       blockdev.BlockDev
	Content   PartContent
	FSType    FSType
	Label     string
	CurMP     string
	CurMPAuto bool
	Volume    *volumes.Volume
}

// Manager is VolParts: the partition registry plus the collaborators it
// needs to probe, mount and persist (spec.md §4.8, §5 "VolParts list").
type Manager struct {
	mu    sync.Mutex
	parts map[uint64]*Part

	vols *volumes.Registry
	mfs  *mfs.Ops
	cfg  *driverconfig.Config
}

// NewManager wires a VolParts manager over the shared volume registry,
// MfsOps mount registry and driver configuration.
func NewManager(vols *volumes.Registry, ops *mfs.Ops, cfg *driverconfig.Config) *Manager {
	return &Manager{parts: make(map[uint64]*Part), vols: vols, mfs: ops, cfg: cfg}
}

// PartAdd registers dev under svcID/svcName and probes it, applying the
// auto-mount policy to any recognized filesystem (spec.md §6 "PartAdd",
// §4.8 discovery+policy).
func (m *Manager) PartAdd(svcID uint64, svcName string, dev blockdev.BlockDev) (*Part, error) {
	info, content, err := Probe(dev)
	if err != nil {
		return nil, err
	}

	p := &Part{SvcID: svcID, SvcName: svcName, Dev: dev, Content: content, FSType: info.FSType, Label: info.Label}

	m.mu.Lock()
	m.parts[svcID] = p
	m.mu.Unlock()

	if content == PartFs {
		if err := m.autoMount(p); err != nil {
			log.WithField("svc_id", svcID).WithError(err).Warn("auto-mount failed")
		}
	}
	return p, nil
}

// GetParts lists every registered partition's service id (spec.md §6
// "GetParts").
func (m *Manager) GetParts() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint64, 0, len(m.parts))
	for id := range m.parts {
		out = append(out, id)
	}
	return out
}

// PartInfo reports a partition's probed/mount state (spec.md §6
// "PartInfo").
func (m *Manager) PartInfo(svcID uint64) (*Part, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parts[svcID]
	if !ok {
		return nil, mfserrors.New("volparts.info", mfserrors.KindNoEntry)
	}
	return p, nil
}

// PartLabelSupport reports whether fstype supports a user-set volume
// label (spec.md §6 "PartLabelSupport").
func PartLabelSupport(fstype FSType) bool {
	return fstype.SupportsLabel()
}

// autoMount applies spec.md §4.8's policy using the partition's current
// Volume binding (looked up/created by label) to decide the configured
// mountpoint, then mounts at the computed path.
func (m *Manager) autoMount(p *Part) error {
	vol := m.vols.LookupRef(p.Label)
	p.Volume = vol

	return m.applyMount(p)
}

// applyMount decides and applies a mount for p using its already-bound
// Volume's configured mountpoint. Split out from autoMount so
// PartSetMountp can remount a partition whose Volume reference must stay
// bound (and therefore must not go through a fresh label lookup, which
// would mint a brand new Volume for an empty-label partition instead of
// reusing the one it just reconfigured).
func (m *Manager) applyMount(p *Part) error {
	decision := Decide(p.Volume.Mountp, p.Label, p.SvcName, p.FSType, m.cfg)
	if !decision.Mount {
		return nil
	}
	return m.mountAt(p, decision.Path, decision.Auto)
}

// mountAt creates path if auto-derived, mounts p.Dev there (through
// MfsOps for MINIX; as a recorded stub for every other recognized
// filesystem, since only MFS's on-disk semantics are implemented here
// per spec.md §1), and records the result on p.
func (m *Manager) mountAt(p *Part, path string, auto bool) error {
	if auto {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return mfserrors.Wrap("volparts.mount", mfserrors.KindIO, err)
		}
	} else if _, err := os.Stat(path); err != nil {
		return mfserrors.Wrap("volparts.mount", mfserrors.KindInvalidArg, err)
	}

	if p.FSType == FSMinix {
		mode := m.cfg.DefaultCacheMode
		if _, err := m.mfs.Mount(p.SvcID, p.Dev, mode); err != nil {
			return err
		}
	} else {
		log.WithField("fstype", p.FSType.String()).Warn("mounting a non-MINIX filesystem is a recorded stub, not a real mount")
	}

	p.CurMP = path
	p.CurMPAuto = auto
	return nil
}

// unmountOnly reverses mountAt without touching p's Volume binding: it
// unmounts through MfsOps (for MINIX) and removes an auto-created
// mountpoint directory, leaving refcounting to the caller. PartEject
// calls this and then releases the Volume reference; PartSetMountp calls
// this to remount the same Volume at a new path without dropping it.
func (m *Manager) unmountOnly(p *Part) error {
	if p.CurMP == "" {
		return nil
	}
	if p.FSType == FSMinix {
		if err := m.mfs.Unmount(p.SvcID); err != nil {
			return err
		}
	}
	if p.CurMPAuto {
		if err := os.Remove(p.CurMP); err != nil {
			log.WithField("path", p.CurMP).WithError(err).Warn("failed to remove auto-created mountpoint")
		}
	}
	p.CurMP = ""
	p.CurMPAuto = false
	return nil
}

// PartEject unmounts p (if mounted) and removes an auto-created
// mountpoint directory (spec.md §6 "PartEject", §4.8 "Eject").
func (m *Manager) PartEject(svcID uint64) error {
	m.mu.Lock()
	p, ok := m.parts[svcID]
	m.mu.Unlock()
	if !ok {
		return mfserrors.New("volparts.eject", mfserrors.KindNoEntry)
	}

	if err := m.unmountOnly(p); err != nil {
		return err
	}

	if p.Volume != nil {
		m.vols.Release(p.Volume)
		p.Volume = nil
	}
	return nil
}

// PartEmpty marks svcID's registry entry as holding no recognized
// filesystem, ejecting it first if currently mounted. This models the
// wire surface's "declare a partition empty" call distinct from a
// physical eject (spec.md §6 "PartEmpty").
func (m *Manager) PartEmpty(svcID uint64) error {
	if err := m.PartEject(svcID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parts[svcID]
	if !ok {
		return mfserrors.New("volparts.empty", mfserrors.KindNoEntry)
	}
	p.Content = PartEmpty
	p.FSType = FSUnknown
	p.Label = ""
	return nil
}

// PartInsert re-runs the probe+mount sequence for svcID — the reaction
// to a physical media re-insertion (spec.md §4.8 "Eject... On any
// subsequent re-insert the probe+mount sequence runs again").
func (m *Manager) PartInsert(svcID uint64) error {
	m.mu.Lock()
	p, ok := m.parts[svcID]
	m.mu.Unlock()
	if !ok {
		return mfserrors.New("volparts.insert", mfserrors.KindNoEntry)
	}

	info, content, err := Probe(p.Dev)
	if err != nil {
		return err
	}
	m.mu.Lock()
	p.Content = content
	p.FSType = info.FSType
	p.Label = info.Label
	m.mu.Unlock()

	if content == PartFs {
		return m.autoMount(p)
	}
	return nil
}

// PartInsertByPath resolves a device path to a registered partition and
// runs PartInsert against it (spec.md §6 "PartInsertByPath").
func (m *Manager) PartInsertByPath(path string) error {
	m.mu.Lock()
	var found *Part
	for _, p := range m.parts {
		if p.SvcName == path {
			found = p
			break
		}
	}
	m.mu.Unlock()
	if found == nil {
		return mfserrors.New("volparts.insert_by_path", mfserrors.KindNoEntry)
	}
	return m.PartInsert(found.SvcID)
}

// PartSetMountp changes svcID's configured mountpoint: it updates the
// bound Volume's persisted mountp (which re-serializes the config store,
// spec.md §4.7) and, if the partition currently holds a recognized
// filesystem, re-applies the mount policy immediately (spec.md §6
// "PartSetMountp", scenario 4 in §8).
func (m *Manager) PartSetMountp(svcID uint64, mountp string) error {
	m.mu.Lock()
	p, ok := m.parts[svcID]
	m.mu.Unlock()
	if !ok {
		return mfserrors.New("volparts.set_mountp", mfserrors.KindNoEntry)
	}
	if p.Volume == nil {
		p.Volume = m.vols.LookupRef(p.Label)
	}
	if err := m.vols.SetMountp(p.Volume, mountp); err != nil {
		return err
	}

	if p.Content != PartFs {
		return nil
	}
	if err := m.unmountOnly(p); err != nil {
		return err
	}
	return m.applyMount(p)
}

// MergeBootConfig loads a second VolCfg document (the post-root-mount /w
// configuration, spec.md §4.8's "boot-time second pass") and merges
// previously-unknown labels into the live volume registry.
func (m *Manager) MergeBootConfig(path string) error {
	entries, err := loadMergeEntries(path)
	if err != nil {
		return err
	}
	m.vols.Merge(entries)
	return nil
}

// classifyDevice exposes locsvc's ATA substring rule for callers building
// Part records outside PartAdd (e.g. discovery fan-out).
func classifyDevice(name string) locsvc.DeviceKind {
	return locsvc.ClassifyDevice(name)
}
