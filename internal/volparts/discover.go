package volparts

import (
	"github.com/sourcegraph/conc"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/locsvc"
)

// Discover enumerates every device Loc currently knows about and probes
// each one, fanning the probes out concurrently (spec.md §4.8 discovery,
// §5 "VolParts list... held during discovery scan, released before
// mount"). The fixed per-device prober order from Probe is unaffected —
// only the devices themselves are probed in parallel, not the probers
// within one device.
func (m *Manager) Discover(reg locsvc.Registry, open func(locsvc.Device) (blockdev.BlockDev, error)) []error {
	devices := reg.Devices()
	errs := make([]error, len(devices))

	var wg conc.WaitGroup
	for i, d := range devices {
		i, d := i, d
		wg.Go(func() {
			bd, err := open(d)
			if err != nil {
				errs[i] = err
				return
			}
			if _, err := m.PartAdd(d.SvcID, d.SvcName, bd); err != nil {
				errs[i] = err
			}
		})
	}
	wg.Wait()

	out := errs[:0]
	for _, e := range errs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
