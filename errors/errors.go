// Package errors provides error handling for the update worker.
//
// It re-exports github.com/cockroachdb/errors for stack traces and
// wrapping, and layers a closed Kind enum (kind.go) on top so a
// transport failure, a protocol violation, or a drift ambiguity can be
// told apart by callers without string matching.
//
// Usage:
//
//	// Create new error
//	err := errors.New("capability negotiation failed")
//
//	// Wrap with context and tag its kind
//	if _, err := sess.Negotiate(ctx, caps); err != nil {
//	    return errors.WithKind(errors.Wrapf(err, "negotiating with %s", host), errors.TransportFailure)
//	}
//
//	// Branch on kind upstream
//	if errors.IsKind(err, errors.NoSpoolfetchData) {
//	    // benign, nothing new to stream
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New       = crdb.New
	Newf      = crdb.Newf
	Wrap      = crdb.Wrap
	Wrapf     = crdb.Wrapf
	WithStack = crdb.WithStack
)

// User-facing hints, surfaced in operator-facing log output.
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	GetAllHints = crdb.GetAllHints
)

// Error inspection
var (
	Is  = crdb.Is
	As  = crdb.As
	Unwrap = crdb.Unwrap
)
