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

// Writable is the narrow write surface a Reducer/FilterReducer/Inserter
// wraps: any kv.Tree[K,V], never a read-only View.
type Writable[K, V any] interface {
	Get(k K) (V, bool, error)
	Insert(k K, v V) (V, bool, error)
	Remove(k K) (V, bool, error)
}

// Reducer is a write-side combinator: it is not a new tree, only a
// reshaping of inserts into the underlying Writable.
// insert(k,a) becomes insert(k, r(get(k), a)) on t; remove passes through
// unchanged.
type Reducer[K, V, A any] struct {
	t Writable[K, V]
	r func(old V, hasOld bool, add A) V
}

func NewReducer[K, V, A any](t Writable[K, V], r func(old V, hasOld bool, add A) V) *Reducer[K, V, A] {
	return &Reducer[K, V, A]{t: t, r: r}
}

func (rd *Reducer[K, V, A]) Insert(k K, a A) (V, bool, error) {
	cur, has, err := rd.t.Get(k)
	if err != nil {
		var zero V
		return zero, false, err
	}
	return rd.t.Insert(k, rd.r(cur, has, a))
}

func (rd *Reducer[K, V, A]) Remove(k K) (V, bool, error) { return rd.t.Remove(k) }

// FilterReducer is Reducer's none-removes variant: r returning false as
// its second result performs a remove instead of an insert.
type FilterReducer[K, V, A any] struct {
	t Writable[K, V]
	r func(old V, hasOld bool, add A) (V, bool)
}

func NewFilterReducer[K, V, A any](t Writable[K, V], r func(old V, hasOld bool, add A) (V, bool)) *FilterReducer[K, V, A] {
	return &FilterReducer[K, V, A]{t: t, r: r}
}

func (rd *FilterReducer[K, V, A]) Insert(k K, a A) (V, bool, error) {
	cur, has, err := rd.t.Get(k)
	if err != nil {
		var zero V
		return zero, false, err
	}
	next, keep := rd.r(cur, has, a)
	if !keep {
		return rd.t.Remove(k)
	}
	return rd.t.Insert(k, next)
}

func (rd *FilterReducer[K, V, A]) Remove(k K) (V, bool, error) { return rd.t.Remove(k) }
