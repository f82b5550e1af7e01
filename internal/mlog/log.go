// Package mlog provides the subsystem loggers MFS and volsrv log through.
// It follows the same shape lima-vm-lima's daemons use logrus in: a single
// entry point per process that library code never calls Fatal/Exit on —
// only cmd/ is allowed to terminate the process.
package mlog

import (
	"github.com/sirupsen/logrus"
)

// Subsystem names used as the "subsystem" structured field.
const (
	SubsystemMFS    = "mfs"
	SubsystemVolsrv = "volsrv"
)

var base = logrus.New()

// SetLevel adjusts the base logger's verbosity. cmd/ calls this once at
// startup from the --verbose/--quiet flags.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// For returns a logger scoped to subsystem, ready to have per-call fields
// chained onto it with WithField/WithFields.
func For(subsystem string) *logrus.Entry {
	return base.WithField("subsystem", subsystem)
}
