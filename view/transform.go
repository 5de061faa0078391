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

// TransformSpec is transform/index's lazy description. Unlike every
// other combinator here, it is not itself a View: its key space has
// diverged from its source, so a value at K2 may be contributed by
// several source rows, and correctly applying a source Remove requires
// a materialized contribution map. Only
// materialize.StoreTransform/LoadTransform can turn a TransformSpec into a
// real View; reading or subscribing to one directly is not offered.
type TransformSpec[K, V, K2, V2 any] struct {
	Src  View[K, V]
	F    func(K, V) []kv.KV[K2, V2]
	Less func(x, y K2) bool
}

// Transform builds a TransformSpec. f may return zero, one, or many
// (K2,V2) pairs per source row; the sink's value at each K2 is the
// multiset of V2 contributed by every source row that produced it.
func Transform[K, V, K2, V2 any](src View[K, V], f func(K, V) []kv.KV[K2, V2], less func(x, y K2) bool) (TransformSpec[K, V, K2, V2], error) {
	if src.RequiresMaterialization() {
		return TransformSpec[K, V, K2, V2]{}, &kv.CompositionError{Op: "transform", Reason: "source view must be store()d or load()ed before further operations chain on it"}
	}
	return TransformSpec[K, V, K2, V2]{Src: src, F: f, Less: less}, nil
}

// Index is transform(|k,v| f(k,v).map(|k2| (k2,v))): each source row
// contributes its unchanged value under every K2 the index function
// names for it.
func Index[K, V, K2 any](src View[K, V], f func(K, V) []K2, less func(x, y K2) bool) (TransformSpec[K, V, K2, V], error) {
	return Transform[K, V, K2, V](src, func(k K, v V) []kv.KV[K2, V] {
		keys := f(k, v)
		out := make([]kv.KV[K2, V], len(keys))
		for i, k2 := range keys {
			out[i] = kv.KV[K2, V]{Key: k2, Value: v}
		}
		return out
	}, less)
}
