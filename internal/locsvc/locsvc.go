// Package locsvc describes the observable contract of Loc, the
// service/location registry spec.md §1 treats as an external collaborator
// ("Service/location registry (Loc): partition enumeration and change
// notifications. Only its observable contract is specified."). volsrv
// depends on this interface, never on a concrete discovery mechanism —
// the registry that drives real block-device enumeration lives outside
// this module's scope.
package locsvc

import "strings"

// DeviceKind distinguishes the device classes volsrv's default auto-mount
// policy treats differently (spec.md §4.8 "Default policy per device
// class").
type DeviceKind int

const (
	// KindOther covers every device class besides ATA (auto-mounted by
	// default).
	KindOther DeviceKind = iota
	// KindATA marks a device whose service name matches spec.md §4.8's
	// ATA substring rule (not auto-mounted by default).
	KindATA
)

// Device is one block device Loc has enumerated.
type Device struct {
	SvcID   uint64
	SvcName string
}

// EventKind classifies a Loc change notification.
type EventKind int

const (
	EventAppeared EventKind = iota
	EventRemoved
)

// Event is a single partition-appeared/removed notification from Loc,
// spec.md §2's "Loc emits partition-appeared events".
type Event struct {
	Kind EventKind
	Dev  Device
}

// Registry is the contract VolParts discovers devices and subscribes to
// change notifications through. A concrete implementation backed by the
// real service/location registry lives outside this module (spec.md §1);
// tests and internal/volparts use a fake or a static slice.
type Registry interface {
	// Devices lists every currently known block device.
	Devices() []Device

	// Subscribe returns a channel of future appear/remove events. The
	// channel is closed when the registry itself shuts down.
	Subscribe() <-chan Event
}

// ClassifyDevice reports whether name matches the ATA substring rule
// carried from the reference implementation's part.c (spec.md §4.8,
// SPEC_FULL.md supplemented feature #5): a case-insensitive "ata"
// substring of the service name.
func ClassifyDevice(name string) DeviceKind {
	if strings.Contains(strings.ToLower(name), "ata") {
		return KindATA
	}
	return KindOther
}
