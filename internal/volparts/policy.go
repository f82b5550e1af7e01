package volparts

import (
	"github.com/deploymenttheory/go-minixfs/internal/driverconfig"
	"github.com/deploymenttheory/go-minixfs/internal/locsvc"
)

// MountDecision is the outcome of applying spec.md §4.8's auto-mount
// policy to one probed partition.
type MountDecision struct {
	Mount bool
	Path  string
	// Auto marks a path VolParts must create (and later remove on
	// eject) rather than one the caller is required to already have.
	Auto bool
}

// Decide applies spec.md §4.8's auto-mount policy:
//  1. configuredMountp == "Auto", or "" with the device class's default
//     being auto-mount: path = "/vol/" + label, skipped if label is
//     empty.
//  2. configuredMountp == "None": never mount.
//  3. Otherwise: mount at the literal configuredMountp (caller must
//     ensure it exists).
//
// CDFS always auto-mounts regardless of device class (spec.md §4.8).
func Decide(configuredMountp, label, svcName string, fstype FSType, cfg *driverconfig.Config) MountDecision {
	switch configuredMountp {
	case "None":
		return MountDecision{Mount: false}
	case "Auto":
		return autoPath(label)
	case "":
		if !DefaultAutoMount(svcName, fstype, cfg.AutoMountATA, cfg.AutoMountOther) {
			return MountDecision{Mount: false}
		}
		return autoPath(label)
	default:
		return MountDecision{Mount: true, Path: configuredMountp, Auto: false}
	}
}

func autoPath(label string) MountDecision {
	if label == "" {
		return MountDecision{Mount: false}
	}
	return MountDecision{Mount: true, Path: "/vol/" + label, Auto: true}
}

// DefaultAutoMount is the per-device-class default spec.md §4.8 "Default
// policy per device class" describes: ATA devices don't auto-mount by
// default, everything else does, and CDFS always does regardless of
// class (the physical-media case the reference implementation always
// wants visible without configuration).
func DefaultAutoMount(svcName string, fstype FSType, autoMountATA, autoMountOther bool) bool {
	if fstype == FSCDFS {
		return true
	}
	if locsvc.ClassifyDevice(svcName) == locsvc.KindATA {
		return autoMountATA
	}
	return autoMountOther
}
