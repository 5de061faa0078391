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

// Inserter transforms the value being inserted through f before writing
// to t; remove passes through unchanged.
type Inserter[K, V, V2 any] struct {
	t Writable[K, V2]
	f func(V) V2
}

func NewInserter[K, V, V2 any](t Writable[K, V2], f func(V) V2) *Inserter[K, V, V2] {
	return &Inserter[K, V, V2]{t: t, f: f}
}

func (in *Inserter[K, V, V2]) Insert(k K, v V) (V2, bool, error) { return in.t.Insert(k, in.f(v)) }

func (in *Inserter[K, V, V2]) Remove(k K) (V2, bool, error) { return in.t.Remove(k) }

// FilterInserter is Inserter's skip-on-none variant: f returning false
// performs no write at all.
type FilterInserter[K, V, V2 any] struct {
	t Writable[K, V2]
	f func(V) (V2, bool)
}

func NewFilterInserter[K, V, V2 any](t Writable[K, V2], f func(V) (V2, bool)) *FilterInserter[K, V, V2] {
	return &FilterInserter[K, V, V2]{t: t, f: f}
}

func (in *FilterInserter[K, V, V2]) Insert(k K, v V) (V2, bool, error) {
	v2, keep := in.f(v)
	if !keep {
		var zero V2
		return zero, false, nil
	}
	return in.t.Insert(k, v2)
}

func (in *FilterInserter[K, V, V2]) Remove(k K) (V2, bool, error) { return in.t.Remove(k) }
