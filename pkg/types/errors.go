package types

import (
	"errors"
	"fmt"
)

// Store lifecycle errors.
var (
	ErrDetached        = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Name validation errors. All of them classify as KindInvalid.
var (
	ErrEmptyName    = errors.New("name must not be empty")
	ErrInvalidName  = errors.New("invalid name")
	ErrReservedName = errors.New("name is reserved")
)

// Schema and row operation errors.
var (
	ErrConflict     = errors.New("already exists")
	ErrNotFound     = errors.New("not found")
	ErrEmptyPayload = errors.New("no fields to write")
	ErrInvalidData  = errors.New("invalid field value")
	ErrUnknownField = errors.New("unknown column")
	ErrInvalidPath  = errors.New("invalid file path")
	ErrFatal        = errors.New("schema rebuild failed")
)

// ErrorKind groups errors into the classes callers react to.
type ErrorKind int

// Error kinds, in the order a caller usually checks them.
const (
	KindInternal ErrorKind = iota
	KindInvalid
	KindConflict
	KindNotFound
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindFatal:
		return "fatal"
	default:
		return "internal"
	}
}

// Kind classifies err. Unknown errors, including raw engine errors, are
// KindInternal.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrFatal):
		return KindFatal
	case errors.Is(err, ErrEmptyName),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrReservedName),
		errors.Is(err, ErrEmptyPayload),
		errors.Is(err, ErrInvalidData),
		errors.Is(err, ErrUnknownField),
		errors.Is(err, ErrInvalidPath):
		return KindInvalid
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// Rebuild steps of a column drop, in execution order.
const (
	StepSnapshot = "snapshot"
	StepRebuild  = "rebuild"
	StepCopy     = "copy"
	StepDrop     = "drop"
	StepSwap     = "swap"
	StepMetadata = "metadata"
	StepCommit   = "commit"
)

// RebuildError reports a failure in the middle of a table rebuild.
// ManualRepair is set when the store could not be returned to its state
// before the rebuild started.
type RebuildError struct {
	Table        string
	Column       string
	Step         string
	ManualRepair bool
	Err          error
}

func (e *RebuildError) Error() string {
	msg := fmt.Sprintf("dropping column %q from %q: %s step failed: %v", e.Column, e.Table, e.Step, e.Err)
	if e.ManualRepair {
		msg += "; table may be in an inconsistent state, manual intervention may be required"
	}
	return msg
}

// Unwrap exposes both ErrFatal and the underlying engine error.
func (e *RebuildError) Unwrap() []error {
	return []error{ErrFatal, e.Err}
}
