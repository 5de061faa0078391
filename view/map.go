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

// Map applies f to every value read through src, leaving the key space
// unchanged. It is lazy: every read traverses src and applies f on the
// fly, and it never needs materialization since its key space matches
// its source's exactly. Chaining onto a multi-source view (chain, zip)
// before that source is materialized is a CompositionError.
func Map[K, V, V2 any](src View[K, V], f func(K, V) V2) (View[K, V2], error) {
	if src.RequiresMaterialization() {
		return nil, &kv.CompositionError{Op: "map", Reason: "source view must be store()d or load()ed before further operations chain on it"}
	}
	return &mapView[K, V, V2]{src: src, f: f}, nil
}

type mapView[K, V, V2 any] struct {
	src View[K, V]
	f   func(K, V) V2
}

func (m *mapView[K, V, V2]) IsEmpty() (bool, error) { return m.src.IsEmpty() }

func (m *mapView[K, V, V2]) ContainsKey(k K) (bool, error) { return m.src.ContainsKey(k) }

func (m *mapView[K, V, V2]) Get(k K) (V2, bool, error) {
	var zero V2
	v, ok, err := m.src.Get(k)
	if err != nil || !ok {
		return zero, ok, err
	}
	return m.f(k, v), true, nil
}

func (m *mapView[K, V, V2]) GetLT(k K) (kv.KV[K, V2], bool, error) {
	kv1, ok, err := m.src.GetLT(k)
	return m.mapKV(kv1, ok, err)
}

func (m *mapView[K, V, V2]) GetGT(k K) (kv.KV[K, V2], bool, error) {
	kv1, ok, err := m.src.GetGT(k)
	return m.mapKV(kv1, ok, err)
}

func (m *mapView[K, V, V2]) First() (kv.KV[K, V2], bool, error) {
	kv1, ok, err := m.src.First()
	return m.mapKV(kv1, ok, err)
}

func (m *mapView[K, V, V2]) Last() (kv.KV[K, V2], bool, error) {
	kv1, ok, err := m.src.Last()
	return m.mapKV(kv1, ok, err)
}

func (m *mapView[K, V, V2]) mapKV(kv1 kv.KV[K, V], ok bool, err error) (kv.KV[K, V2], bool, error) {
	if err != nil || !ok {
		return kv.KV[K, V2]{}, ok, err
	}
	return kv.KV[K, V2]{Key: kv1.Key, Value: m.f(kv1.Key, kv1.Value)}, true, nil
}

func (m *mapView[K, V, V2]) Iter() kv.Iterator[K, V2] {
	return &mapIter[K, V, V2]{src: m.src.Iter(), f: m.f}
}

func (m *mapView[K, V, V2]) Range(lo, hi kv.Bound[K]) (kv.Iterator[K, V2], error) {
	it, err := m.src.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	return &mapIter[K, V, V2]{src: it, f: m.f}, nil
}

func (m *mapView[K, V, V2]) DB() *kv.Database { return m.src.DB() }

func (m *mapView[K, V, V2]) RequiresMaterialization() bool { return false }

// Subscribe translates the source's Delta under map's event rule:
// Insert(k,vN,vO?) -> Insert(k, f(k,vN), f(k,vO)?); Remove(k,vO) ->
// Remove(k, f(k,vO)); Clear -> Clear.
func (m *mapView[K, V, V2]) Subscribe(s *kv.Sync) (<-chan kv.Delta[K, V2], func()) {
	src, cancel := m.src.Subscribe(s)
	out := make(chan kv.Delta[K, V2])
	go func() {
		defer close(out)
		for d := range src {
			var d2 kv.Delta[K, V2]
			d2.Kind, d2.Key = d.Kind, d.Key
			if d.Kind == kv.Insert {
				d2.New = m.f(d.Key, d.New)
			}
			if d.HasOld {
				d2.Old, d2.HasOld = m.f(d.Key, d.Old), true
			}
			out <- d2
		}
	}()
	return out, cancel
}

type mapIter[K, V, V2 any] struct {
	src kv.Iterator[K, V]
	f   func(K, V) V2
}

func (it *mapIter[K, V, V2]) Next() (kv.KV[K, V2], bool, error) {
	item, ok, err := it.src.Next()
	if !ok || err != nil {
		return kv.KV[K, V2]{}, ok, err
	}
	return kv.KV[K, V2]{Key: item.Key, Value: it.f(item.Key, item.Value)}, true, nil
}

func (it *mapIter[K, V, V2]) Close() { it.src.Close() }
