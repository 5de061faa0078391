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

// FilterMap combines Map and Filter: the sink value is present iff f
// returns ok. Key space is unchanged.
func FilterMap[K, V, V2 any](src View[K, V], f func(K, V) (V2, bool)) (View[K, V2], error) {
	if src.RequiresMaterialization() {
		return nil, &kv.CompositionError{Op: "filter_map", Reason: "source view must be store()d or load()ed before further operations chain on it"}
	}
	return &filterMapView[K, V, V2]{src: src, f: f}, nil
}

type filterMapView[K, V, V2 any] struct {
	src View[K, V]
	f   func(K, V) (V2, bool)
}

func (m *filterMapView[K, V, V2]) Get(k K) (V2, bool, error) {
	var zero V2
	v, ok, err := m.src.Get(k)
	if err != nil || !ok {
		return zero, false, err
	}
	v2, keep := m.f(k, v)
	if !keep {
		return zero, false, nil
	}
	return v2, true, nil
}

func (m *filterMapView[K, V, V2]) ContainsKey(k K) (bool, error) {
	_, ok, err := m.Get(k)
	return ok, err
}

func (m *filterMapView[K, V, V2]) GetLT(k K) (kv.KV[K, V2], bool, error) {
	cur := k
	for {
		item, ok, err := m.src.GetLT(cur)
		if err != nil || !ok {
			return kv.KV[K, V2]{}, false, err
		}
		if v2, keep := m.f(item.Key, item.Value); keep {
			return kv.KV[K, V2]{Key: item.Key, Value: v2}, true, nil
		}
		cur = item.Key
	}
}

func (m *filterMapView[K, V, V2]) GetGT(k K) (kv.KV[K, V2], bool, error) {
	cur := k
	for {
		item, ok, err := m.src.GetGT(cur)
		if err != nil || !ok {
			return kv.KV[K, V2]{}, false, err
		}
		if v2, keep := m.f(item.Key, item.Value); keep {
			return kv.KV[K, V2]{Key: item.Key, Value: v2}, true, nil
		}
		cur = item.Key
	}
}

func (m *filterMapView[K, V, V2]) First() (kv.KV[K, V2], bool, error) {
	item, ok, err := m.src.First()
	if err != nil || !ok {
		return kv.KV[K, V2]{}, false, err
	}
	if v2, keep := m.f(item.Key, item.Value); keep {
		return kv.KV[K, V2]{Key: item.Key, Value: v2}, true, nil
	}
	return m.GetGT(item.Key)
}

func (m *filterMapView[K, V, V2]) Last() (kv.KV[K, V2], bool, error) {
	item, ok, err := m.src.Last()
	if err != nil || !ok {
		return kv.KV[K, V2]{}, false, err
	}
	if v2, keep := m.f(item.Key, item.Value); keep {
		return kv.KV[K, V2]{Key: item.Key, Value: v2}, true, nil
	}
	return m.GetLT(item.Key)
}

func (m *filterMapView[K, V, V2]) IsEmpty() (bool, error) {
	_, ok, err := m.First()
	return !ok, err
}

func (m *filterMapView[K, V, V2]) Iter() kv.Iterator[K, V2] {
	return &filterMapIter[K, V, V2]{src: m.src.Iter(), f: m.f}
}

func (m *filterMapView[K, V, V2]) Range(lo, hi kv.Bound[K]) (kv.Iterator[K, V2], error) {
	it, err := m.src.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	return &filterMapIter[K, V, V2]{src: it, f: m.f}, nil
}

func (m *filterMapView[K, V, V2]) DB() *kv.Database { return m.src.DB() }

func (m *filterMapView[K, V, V2]) RequiresMaterialization() bool { return false }

func (m *filterMapView[K, V, V2]) Subscribe(s *kv.Sync) (<-chan kv.Delta[K, V2], func()) {
	src, cancel := m.src.Subscribe(s)
	out := make(chan kv.Delta[K, V2])
	go func() {
		defer close(out)
		for d := range src {
			if d.Kind == kv.Clear {
				out <- kv.Delta[K, V2]{Kind: kv.Clear}
				continue
			}
			oldV2, wasVisible := zeroV2[V2](), false
			if d.HasOld {
				oldV2, wasVisible = m.f(d.Key, d.Old)
			}
			if d.Kind == kv.Remove {
				if wasVisible {
					out <- kv.Delta[K, V2]{Kind: kv.Remove, Key: d.Key, Old: oldV2, HasOld: true}
				} else {
					s.Complete()
				}
				continue
			}
			newV2, nowVisible := m.f(d.Key, d.New)
			switch {
			case nowVisible:
				out <- kv.Delta[K, V2]{Kind: kv.Insert, Key: d.Key, New: newV2, Old: oldV2, HasOld: wasVisible}
			case wasVisible:
				out <- kv.Delta[K, V2]{Kind: kv.Remove, Key: d.Key, Old: oldV2, HasOld: true}
			default:
				s.Complete()
			}
		}
	}()
	return out, cancel
}

func zeroV2[V2 any]() V2 {
	var z V2
	return z
}

type filterMapIter[K, V, V2 any] struct {
	src kv.Iterator[K, V]
	f   func(K, V) (V2, bool)
}

func (it *filterMapIter[K, V, V2]) Next() (kv.KV[K, V2], bool, error) {
	for {
		item, ok, err := it.src.Next()
		if !ok || err != nil {
			return kv.KV[K, V2]{}, ok, err
		}
		if v2, keep := it.f(item.Key, item.Value); keep {
			return kv.KV[K, V2]{Key: item.Key, Value: v2}, true, nil
		}
	}
}

func (it *filterMapIter[K, V, V2]) Close() { it.src.Close() }
