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

// Filter keeps only entries for which p holds, leaving the key space
// unchanged.
func Filter[K, V any](src View[K, V], p func(K, V) bool) (View[K, V], error) {
	if src.RequiresMaterialization() {
		return nil, &kv.CompositionError{Op: "filter", Reason: "source view must be store()d or load()ed before further operations chain on it"}
	}
	return &filterView[K, V]{src: src, p: p}, nil
}

type filterView[K, V any] struct {
	src View[K, V]
	p   func(K, V) bool
}

func (f *filterView[K, V]) Get(k K) (V, bool, error) {
	v, ok, err := f.src.Get(k)
	if err != nil || !ok || !f.p(k, v) {
		var zero V
		if err != nil || !ok {
			return zero, false, err
		}
		return zero, false, nil
	}
	return v, true, nil
}

func (f *filterView[K, V]) ContainsKey(k K) (bool, error) {
	_, ok, err := f.Get(k)
	return ok, err
}

func (f *filterView[K, V]) GetLT(k K) (kv.KV[K, V], bool, error) {
	cur := k
	for {
		item, ok, err := f.src.GetLT(cur)
		if err != nil || !ok {
			return kv.KV[K, V]{}, false, err
		}
		if f.p(item.Key, item.Value) {
			return item, true, nil
		}
		cur = item.Key
	}
}

func (f *filterView[K, V]) GetGT(k K) (kv.KV[K, V], bool, error) {
	cur := k
	for {
		item, ok, err := f.src.GetGT(cur)
		if err != nil || !ok {
			return kv.KV[K, V]{}, false, err
		}
		if f.p(item.Key, item.Value) {
			return item, true, nil
		}
		cur = item.Key
	}
}

func (f *filterView[K, V]) First() (kv.KV[K, V], bool, error) {
	item, ok, err := f.src.First()
	if err != nil || !ok {
		return kv.KV[K, V]{}, false, err
	}
	if f.p(item.Key, item.Value) {
		return item, true, nil
	}
	return f.GetGT(item.Key)
}

func (f *filterView[K, V]) Last() (kv.KV[K, V], bool, error) {
	item, ok, err := f.src.Last()
	if err != nil || !ok {
		return kv.KV[K, V]{}, false, err
	}
	if f.p(item.Key, item.Value) {
		return item, true, nil
	}
	return f.GetLT(item.Key)
}

func (f *filterView[K, V]) IsEmpty() (bool, error) {
	_, ok, err := f.First()
	return !ok, err
}

func (f *filterView[K, V]) Iter() kv.Iterator[K, V] {
	return &filterIter[K, V]{src: f.src.Iter(), p: f.p}
}

func (f *filterView[K, V]) Range(lo, hi kv.Bound[K]) (kv.Iterator[K, V], error) {
	it, err := f.src.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	return &filterIter[K, V]{src: it, p: f.p}, nil
}

func (f *filterView[K, V]) DB() *kv.Database { return f.src.DB() }

func (f *filterView[K, V]) RequiresMaterialization() bool { return false }

// Subscribe retains or drops per p; an update flipping p from true to
// false becomes a Remove on the sink. Deltas dropped here are completed
// on the consumer's behalf so a quiescence Wait does not count them.
func (f *filterView[K, V]) Subscribe(s *kv.Sync) (<-chan kv.Delta[K, V], func()) {
	src, cancel := f.src.Subscribe(s)
	out := make(chan kv.Delta[K, V])
	go func() {
		defer close(out)
		for d := range src {
			if d.Kind == kv.Clear {
				out <- d
				continue
			}
			wasVisible := d.HasOld && f.p(d.Key, d.Old)
			if d.Kind == kv.Remove {
				if wasVisible {
					out <- d
				} else {
					s.Complete()
				}
				continue
			}
			nowVisible := f.p(d.Key, d.New)
			switch {
			case nowVisible:
				out <- d
			case wasVisible:
				out <- kv.Delta[K, V]{Kind: kv.Remove, Key: d.Key, Old: d.Old, HasOld: true}
			default:
				s.Complete()
			}
		}
	}()
	return out, cancel
}

type filterIter[K, V any] struct {
	src kv.Iterator[K, V]
	p   func(K, V) bool
}

func (it *filterIter[K, V]) Next() (kv.KV[K, V], bool, error) {
	for {
		item, ok, err := it.src.Next()
		if !ok || err != nil {
			return kv.KV[K, V]{}, ok, err
		}
		if it.p(item.Key, item.Value) {
			return item, true, nil
		}
	}
}

func (it *filterIter[K, V]) Close() { it.src.Close() }
