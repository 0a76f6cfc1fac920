// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prefstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNilDB is returned when a store is created without a database
	// handle.
	ErrNilDB = errors.New("nil database")
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrDatabase indicates an error reading or writing the backend.
	ErrDatabase ErrorCode = iota

	// ErrCorruptRecord indicates a stored preference that cannot be
	// decoded.
	ErrCorruptRecord

	// ErrUnknownBackend indicates an unsupported store backend.
	ErrUnknownBackend
)

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	switch e {
	case ErrDatabase:
		return "ErrDatabase"

	case ErrCorruptRecord:
		return "ErrCorruptRecord"

	case ErrUnknownBackend:
		return "ErrUnknownBackend"

	default:
		return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
	}
}

// Error identifies a preference store error. It has an error code and a
// descriptive message.
type Error struct {
	Code ErrorCode
	Desc string
	Err  error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}

	return e.Desc
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// newError creates an Error given a set of arguments.
func newError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// IsError returns whether the error is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	var e Error

	return errors.As(err, &e) && e.Code == code
}
