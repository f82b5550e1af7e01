// Package volumes implements VolVolumes: the labeled, refcounted volume
// registry that persists user-configured label->mountpoint bindings
// (spec.md §4.7, §3 "Volume (config entry, Volume)").
package volumes

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/deploymenttheory/go-minixfs/internal/mlog"
	"github.com/deploymenttheory/go-minixfs/internal/volcfg"
)

var log = mlog.For(mlog.SubsystemVolsrv)

// Volume is one registry entry (spec.md §3 "Volume").
type Volume struct {
	ID     uint64
	Label  string
	Mountp string

	refcnt atomic.Int32
}

// Refcount reports the volume's current reference count.
func (v *Volume) Refcount() int32 { return v.refcnt.Load() }

// Persistent reports whether v survives a partition removal: it has a
// non-empty mountpoint (spec.md §3 invariant on Volume.refcnt/mountp).
func (v *Volume) Persistent() bool { return v.Mountp != "" }

// Registry is the in-memory VolVolumes set plus its persisted backing
// store path (spec.md §4.7, §5 "VolVolumes list + config doc" guarded by
// one mutex).
type Registry struct {
	mu      sync.Mutex
	cfgPath string
	nextID  uint64
	vols    []*Volume
}

// New builds an empty registry that will persist to cfgPath.
func New(cfgPath string) *Registry {
	return &Registry{cfgPath: cfgPath}
}

// Load builds a registry from cfgPath's persisted entries, tolerating a
// missing file as an empty set (spec.md §4.7, §6).
func Load(cfgPath string) (*Registry, error) {
	entries, err := volcfg.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	r := New(cfgPath)
	for _, e := range entries {
		r.nextID++
		r.vols = append(r.vols, &Volume{ID: r.nextID, Label: e.Label, Mountp: e.Mountp})
	}
	return r, nil
}

// LookupRef scans for a volume whose label matches a non-empty label and
// adds a reference to it; otherwise it creates a new volume with that
// label at refcount 1 (spec.md §4.7 "lookup_ref(label) semantics").
func (r *Registry) LookupRef(label string) *Volume {
	r.mu.Lock()
	defer r.mu.Unlock()

	if label != "" {
		for _, v := range r.vols {
			if v.Label == label {
				v.refcnt.Inc()
				return v
			}
		}
	}

	r.nextID++
	v := &Volume{ID: r.nextID, Label: label}
	v.refcnt.Store(1)
	r.vols = append(r.vols, v)
	return v
}

// Release drops a reference obtained from LookupRef. A volume at
// refcount 0 with an empty mountpoint is removed from the registry
// (spec.md §3 invariant 5 "A Volume is eligible for deletion when its
// refcnt reaches 0 AND mountp is empty").
func (r *Registry) Release(v *Volume) {
	if v.refcnt.Dec() > 0 {
		return
	}
	if v.Mountp != "" {
		return
	}
	r.remove(v)
}

// remove drops v from the live set, regardless of its refcount — callers
// have already established it's eligible for deletion.
func (r *Registry) remove(v *Volume) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cand := range r.vols {
		if cand == v {
			r.vols = append(r.vols[:i], r.vols[i+1:]...)
			return
		}
	}
}

// SetMountp replaces v's mountpoint. Crossing the empty<->non-empty edge
// pins or releases the extra "persistence" reference described in
// spec.md §4.7 ("take an extra reference so the entry survives its
// partition being removed. The reverse transition drops that
// reference."); after any successful change the whole persistent set is
// serialized to cfgPath (spec.md §4.7, §8 invariant 4).
func (r *Registry) SetMountp(v *Volume, mountp string) error {
	wasEmpty := v.Mountp == ""
	nowEmpty := mountp == ""

	v.Mountp = mountp
	switch {
	case wasEmpty && !nowEmpty:
		v.refcnt.Inc()
	case !wasEmpty && nowEmpty:
		if v.refcnt.Dec() <= 0 {
			r.remove(v)
		}
	}

	return r.persist()
}

// persist serializes every persistent (non-empty mountpoint) volume with
// a non-empty label to cfgPath (spec.md §8 invariant 4: "re-loading the
// config produces a volume set equal to the live set restricted to its
// persistent entries"). An empty-label volume is left out, since a
// reload could never match it by label.
func (r *Registry) persist() error {
	r.mu.Lock()
	entries := make([]volcfg.Entry, 0, len(r.vols))
	for _, v := range r.vols {
		if v.Persistent() && v.Label != "" {
			entries = append(entries, volcfg.Entry{Label: v.Label, Mountp: v.Mountp})
		}
	}
	r.mu.Unlock()

	if err := volcfg.Save(r.cfgPath, entries); err != nil {
		log.WithField("path", r.cfgPath).WithError(err).Warn("failed to persist volume config")
		return err
	}
	return nil
}

// All returns every volume currently in the registry, for diagnostics
// and for PartInfo/GetVolumes style enumeration.
func (r *Registry) All() []*Volume {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Volume, len(r.vols))
	copy(out, r.vols)
	return out
}

// PersistentVolumes returns only the volumes with a non-empty
// mountpoint, matching the wire surface's GetVolumes contract (spec.md
// §6 "list of volume IDs (persistent only)").
func (r *Registry) PersistentVolumes() []*Volume {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Volume
	for _, v := range r.vols {
		if v.Persistent() {
			out = append(out, v)
		}
	}
	return out
}

// ByID looks up a volume by its session-scoped integer id (spec.md §6
// VolInfo).
func (r *Registry) ByID(id uint64) (*Volume, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vols {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// Merge adds entries from a second config document (e.g. the post-root-
// mount /w merge pass, spec.md §4.8) whose labels are not already
// present in the live registry. Matching SPEC_FULL.md supplemented
// feature #6, a merged entry starts at refcount 0 and is persistence-only
// until a partition actually probes to that label.
func (r *Registry) Merge(entries []volcfg.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	known := make(map[string]bool, len(r.vols))
	for _, v := range r.vols {
		known[v.Label] = true
	}
	for _, e := range entries {
		if e.Label == "" || known[e.Label] {
			continue
		}
		r.nextID++
		r.vols = append(r.vols, &Volume{ID: r.nextID, Label: e.Label, Mountp: e.Mountp})
		known[e.Label] = true
	}
}
