// Package volsess generates short-lived session correlation tags, kept
// apart from the persistent, monotonic Volume.id of spec.md §3 (a small
// per-session integer clients hand back verbatim over the wire surface).
// No other package in this module calls New, so log lines and
// PartInfo/VolInfo output carry no session tag.
package volsess

import "github.com/google/uuid"

// New returns a fresh session correlation tag.
func New() string {
	return uuid.NewString()
}
