// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bbserr defines the error taxonomy shared by every core component,
// generalized from the teacher's per-route error-code constants
// (internal/api/handlers/response.go) into a typed kind usable outside HTTP.
package bbserr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories named in spec §7.
type Kind string

const (
	Transport     Kind = "transport"
	Protocol      Kind = "protocol"
	Auth          Kind = "auth"
	Crypto        Kind = "crypto"
	Storage       Kind = "storage"
	NotFound      Kind = "not_found"
	Validation    Kind = "validation"
	Capacity      Kind = "capacity"
	Configuration Kind = "configuration"
)

// Error wraps an underlying cause with a Kind so callers can branch on
// category without string-matching messages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error with a wrapped cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// Well-known sentinel causes used by Auth and concurrency-sensitive paths.
var (
	ErrDuplicateSession = errors.New("user already has a live session")
	ErrLockedOut        = errors.New("account temporarily locked out")
	ErrExpiredToken     = errors.New("auth token expired")
	ErrInvalidCredentials = errors.New("invalid handle or password")
)
