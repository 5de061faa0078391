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

package view

import "github.com/erigontech/kvview/kv"

// View is the read-only capability set: a polymorphic ordered (K,V)
// sequence backed by a base Tree, another View, or a materialized
// sink. Every combinator in this package, and kv.Tree itself, satisfies
// View structurally.
type View[K, V any] interface {
	IsEmpty() (bool, error)
	ContainsKey(k K) (bool, error)
	Get(k K) (V, bool, error)
	GetLT(k K) (kv.KV[K, V], bool, error)
	GetGT(k K) (kv.KV[K, V], bool, error)
	First() (kv.KV[K, V], bool, error)
	Last() (kv.KV[K, V], bool, error)
	Iter() kv.Iterator[K, V]
	Range(lo, hi kv.Bound[K]) (kv.Iterator[K, V], error)
	DB() *kv.Database

	// Subscribe is the reliable, typed delta stream materialize's
	// propagation workers consume, and the primitive Watch (watch.go)
	// builds its lossy broadcast reader on top of: every View offers
	// Subscribe, not just base Trees, so the watch bus works over any
	// composed view. A non-nil s is threaded down to the base tree(s), so
	// it counts each delta from the writer's enqueue until the consumer
	// (or a combinator that drops the delta on the way) completes it;
	// Watch readers pass nil.
	Subscribe(s *kv.Sync) (<-chan kv.Delta[K, V], func())

	// RequiresMaterialization reports whether this View has more than one
	// source (chain, zip): such a view must be store()d or load()ed before
	// anything can chain a further operation on it. Composing on top of one
	// that reports true is a CompositionError rather than a compile error,
	// so the failure surfaces at the operate layer. Transform and index
	// never reach this check: they yield a TransformSpec, which is not a
	// View at all.
	RequiresMaterialization() bool
}

// Change is the write-side capability set: Insert/Remove/Clear (Push is
// a kv.Tree method outside this interface). kv.Tree implements it; the
// write-side adapters (reducer, inserter) offer only Insert and Remove,
// and the read-only combinators deliberately offer none of it, so that
// e.g. a Filter view cannot be inserted into directly.
type Change[K, V any] interface {
	Insert(k K, v V) (V, bool, error)
	Remove(k K) (V, bool, error)
	Clear() error
}
