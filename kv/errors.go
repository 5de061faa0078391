// Copyright 2025 The kvview Authors
// This file is part of kvview.
//
// kvview is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kvview is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kvview. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"fmt"

	"github.com/pkg/errors"
)

// StorageError wraps a failure from the underlying KV engine (I/O,
// corruption, a failed commit). A StorageError on a materialized view's
// propagation worker marks that view degraded: see DegradedError.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("kvview: storage error during %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: errors.WithStack(err)}
}

// DecodeError means the bytes stored under a key could not be deserialized
// into the declared K or V type. During iteration the failing row is
// surfaced as that item's error and the next call continues past it; a
// decode error during propagation causes that single row to be skipped
// (logged, not fatal).
type DecodeError struct {
	Namespace string
	Key       []byte
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("kvview: decode error in %q for key %x: %v", e.Namespace, e.Key, e.Err)
}
func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError means a value could not be serialized before being written.
type EncodeError struct {
	Namespace string
	Err       error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("kvview: encode error in %q: %v", e.Namespace, e.Err)
}
func (e *EncodeError) Unwrap() error { return e.Err }

// AutoIncOverflowError is returned by push when the current maximum key is
// already the AutoInc capability's maximum representable value.
type AutoIncOverflowError struct {
	Namespace string
}

func (e *AutoIncOverflowError) Error() string {
	return fmt.Sprintf("kvview: push on %q would overflow the auto-increment key space", e.Namespace)
}

// CompositionError is returned when a caller tries to chain a further
// operation onto a view that has multiple sources (chain, zip) before that
// view has been materialized via Store or Load, and by Push on a tree
// opened without an AutoInc capability. Transform and index produce a
// view.TransformSpec, which is not a View, so chaining on one before
// materialization is rejected by the compiler rather than by this error.
type CompositionError struct {
	Op     string
	Reason string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("kvview: cannot %s: %s", e.Op, e.Reason)
}

// SubscriptionLaggedError is delivered to a Watch reader that could not
// keep up; N events were dropped before the next delta it receives.
type SubscriptionLaggedError struct {
	N uint64
}

func (e *SubscriptionLaggedError) Error() string {
	return fmt.Sprintf("kvview: subscription lagged, %d event(s) dropped", e.N)
}

// DegradedError is returned by all subsequent reads/writes on a
// materialized view whose propagation worker stopped after a StorageError.
type DegradedError struct {
	Sink  string
	Cause error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("kvview: materialized view %q is degraded: %v", e.Sink, e.Cause)
}
func (e *DegradedError) Unwrap() error { return e.Cause }

// errClosedEngine is wrapped into a StorageError by memEngine once Close
// has run: every subsequent View/Update call fails deterministically
// rather than operating on a dropped in-memory store.
var errClosedEngine = errors.New("engine is closed")
