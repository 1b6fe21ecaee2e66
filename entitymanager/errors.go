// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"errors"
	"fmt"
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

type ErrorCode int

const (
	ErrEntityExists ErrorCode = iota
	ErrEntityMissing
	ErrEntityDeleted
	ErrNotOwner
	ErrInvalidID
	ErrFieldLimit
	ErrInvalidField
	ErrHandleTaken
	ErrInvalidTransition
	ErrSelfAction
	ErrUserMissing
	ErrSignerMismatch
	ErrGrantInactive
	ErrNotVerifier
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrEntityExists:      "ErrEntityExists",
	ErrEntityMissing:     "ErrEntityMissing",
	ErrEntityDeleted:     "ErrEntityDeleted",
	ErrNotOwner:          "ErrNotOwner",
	ErrInvalidID:         "ErrInvalidID",
	ErrFieldLimit:        "ErrFieldLimit",
	ErrInvalidField:      "ErrInvalidField",
	ErrHandleTaken:       "ErrHandleTaken",
	ErrInvalidTransition: "ErrInvalidTransition",
	ErrSelfAction:        "ErrSelfAction",
	ErrUserMissing:       "ErrUserMissing",
	ErrSignerMismatch:    "ErrSignerMismatch",
	ErrGrantInactive:     "ErrGrantInactive",
	ErrNotVerifier:       "ErrNotVerifier",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ValidationError identifies a business rule rejection of one request.
// The request is skipped and recorded in the audit log; the block carries
// on.
type ValidationError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human-readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e ValidationError) Error() string {
	return e.Description
}

// AuthorizationError is a ValidationError raised because the signer may
// not act for the user. errors.As matches it as a ValidationError too.
type AuthorizationError struct {
	ValidationError
}

// Unwrap exposes the underlying ValidationError.
func (e AuthorizationError) Unwrap() error {
	return e.ValidationError
}

func validationError(c ErrorCode, format string, args ...interface{}) ValidationError {
	return ValidationError{ErrorCode: c, Description: fmt.Sprintf(format, args...)}
}

func authorizationError(c ErrorCode, format string, args ...interface{}) AuthorizationError {
	return AuthorizationError{ValidationError: validationError(c, format, args...)}
}

// ErrorIs reports whether err is a ValidationError with the given code.
func ErrorIs(err error, code ErrorCode) bool {
	var ve ValidationError
	if errors.As(err, &ve) && ve.ErrorCode == code {
		return true
	}
	return false
}

// DecodeError identifies a malformed instruction or metadata payload.
// Only the offending instruction is skipped.
type DecodeError struct {
	Description string
	Err         error
}

func (e DecodeError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

func (e DecodeError) Unwrap() error {
	return e.Err
}

func decodeError(err error, format string, args ...interface{}) DecodeError {
	return DecodeError{Description: fmt.Sprintf(format, args...), Err: err}
}

// StorageError identifies an infrastructure failure while reading or
// committing a block. The whole block must be retried.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err calls for a retry of the block.
func IsStorageError(err error) bool {
	var se StorageError
	return errors.As(err, &se)
}

// IsFatal reports whether err must halt indexing.
func IsFatal(err error) bool {
	var ae AssertError
	return errors.As(err, &ae)
}

// storageOrAssert preserves an AssertError raised inside an atomic unit
// and classifies everything else as a StorageError.
func storageOrAssert(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsFatal(err) {
		return err
	}
	return StorageError{Op: op, Err: err}
}
