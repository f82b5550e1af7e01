// Package mfserrors defines the error taxonomy MFS and volsrv surface to
// their callers (spec.md §4.6, §7). Every operation that can fail returns
// one of these kinds wrapped in an *Error, so callers can switch on Kind
// instead of matching error strings.
package mfserrors

import "fmt"

// Kind classifies a failure the way BlockDeviceIssueType classifies device
// problems: a small enum a caller can switch on without string matching.
type Kind int

const (
	// KindNone marks "no specific kind" — used only as a zero value.
	KindNone Kind = iota
	KindIO
	KindNoSpace
	KindNoMemory
	KindInvalidArg
	KindNotDir
	KindNoEntry
	KindExists
	KindNotEmpty
	KindBusy
	KindNameTooLong
	KindNotSupported
	KindFileTooLarge
	KindOverflow
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindNoSpace:
		return "no_space"
	case KindNoMemory:
		return "no_memory"
	case KindInvalidArg:
		return "invalid_arg"
	case KindNotDir:
		return "not_dir"
	case KindNoEntry:
		return "no_entry"
	case KindExists:
		return "exists"
	case KindNotEmpty:
		return "not_empty"
	case KindBusy:
		return "busy"
	case KindNameTooLong:
		return "name_too_long"
	case KindNotSupported:
		return "not_supported"
	case KindFileTooLarge:
		return "file_too_large"
	case KindOverflow:
		return "overflow"
	default:
		return "none"
	}
}

// Error is a kinded error: Op names the failing operation, Kind classifies
// it, and Err (optional) carries the underlying cause for Unwrap.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind with no underlying cause.
func New(op string, kind Kind) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap builds an *Error of the given kind wrapping err.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, walking Unwrap chains. Returns
// KindNone if nothing in err's chain is an *Error.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindNone
}

// Is reports whether err's kind (anywhere in its Unwrap chain) is kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
