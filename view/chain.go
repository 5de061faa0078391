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

// Chain concatenates a and b by merge in key order; on key collision a
// wins. The result can be read directly but, since its key space has
// two sources, must be store()d or load()ed before a further combinator
// can chain on top of it.
func Chain[K, V any](a, b View[K, V], less func(x, y K) bool) View[K, V] {
	return &chainView[K, V]{a: a, b: b, less: less}
}

type chainView[K, V any] struct {
	a, b View[K, V]
	less func(x, y K) bool
}

func (c *chainView[K, V]) RequiresMaterialization() bool { return true }

func (c *chainView[K, V]) DB() *kv.Database { return c.a.DB() }

func (c *chainView[K, V]) Get(k K) (V, bool, error) {
	v, ok, err := c.a.Get(k)
	if err != nil {
		var zero V
		return zero, false, err
	}
	if ok {
		return v, true, nil
	}
	return c.b.Get(k)
}

func (c *chainView[K, V]) ContainsKey(k K) (bool, error) {
	_, ok, err := c.Get(k)
	return ok, err
}

func (c *chainView[K, V]) IsEmpty() (bool, error) {
	_, ok, err := c.First()
	return !ok, err
}

func (c *chainView[K, V]) First() (kv.KV[K, V], bool, error) {
	it := c.Iter()
	defer it.Close()
	return it.Next()
}

func (c *chainView[K, V]) Last() (kv.KV[K, V], bool, error) {
	it := c.Iter()
	defer it.Close()
	var last kv.KV[K, V]
	var any bool
	for {
		item, ok, err := it.Next()
		if err != nil {
			return kv.KV[K, V]{}, false, err
		}
		if !ok {
			return last, any, nil
		}
		last, any = item, true
	}
}

func (c *chainView[K, V]) GetLT(k K) (kv.KV[K, V], bool, error) {
	it, err := c.Range(kv.Unbound[K](), kv.Excl(k))
	if err != nil {
		return kv.KV[K, V]{}, false, err
	}
	defer it.Close()
	var last kv.KV[K, V]
	var any bool
	for {
		item, ok, err := it.Next()
		if err != nil {
			return kv.KV[K, V]{}, false, err
		}
		if !ok {
			return last, any, nil
		}
		last, any = item, true
	}
}

func (c *chainView[K, V]) GetGT(k K) (kv.KV[K, V], bool, error) {
	it, err := c.Range(kv.Excl(k), kv.Unbound[K]())
	if err != nil {
		return kv.KV[K, V]{}, false, err
	}
	defer it.Close()
	return it.Next()
}

func (c *chainView[K, V]) Iter() kv.Iterator[K, V] {
	it, _ := c.Range(kv.Unbound[K](), kv.Unbound[K]())
	return it
}

func (c *chainView[K, V]) Range(lo, hi kv.Bound[K]) (kv.Iterator[K, V], error) {
	ai, err := c.a.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	bi, err := c.b.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	return &chainIter[K, V]{a: ai, b: bi, less: c.less}, nil
}

// Subscribe forwards A's events (A always wins at its own keys), except
// that an A Remove at a key B still holds becomes an Insert of B's value,
// since that key is no longer shadowed. B's events are forwarded only for
// keys A does not currently hold, per the left-wins collision rule. A
// B-side delta shadowed by A is dropped and completed here.
func (c *chainView[K, V]) Subscribe(s *kv.Sync) (<-chan kv.Delta[K, V], func()) {
	aCh, aCancel := c.a.Subscribe(s)
	bCh, bCancel := c.b.Subscribe(s)
	out := make(chan kv.Delta[K, V])
	go func() {
		defer close(out)
		for aCh != nil || bCh != nil {
			select {
			case d, ok := <-aCh:
				if !ok {
					aCh = nil
					continue
				}
				if d.Kind == kv.Remove {
					if bv, has, err := c.b.Get(d.Key); err == nil && has {
						d = kv.Delta[K, V]{Kind: kv.Insert, Key: d.Key, New: bv, Old: d.Old, HasOld: d.HasOld}
					}
				}
				out <- d
			case d, ok := <-bCh:
				if !ok {
					bCh = nil
					continue
				}
				if d.Kind == kv.Clear {
					out <- d
					continue
				}
				if _, has, err := c.a.Get(d.Key); err == nil && has {
					s.Complete()
					continue
				}
				out <- d
			}
		}
	}()
	return out, func() { aCancel(); bCancel() }
}

type chainIter[K, V any] struct {
	a, b         kv.Iterator[K, V]
	less         func(x, y K) bool
	pa, pb       kv.KV[K, V]
	haveA, haveB bool
}

func (it *chainIter[K, V]) fill() error {
	if !it.haveA {
		item, ok, err := it.a.Next()
		if err != nil {
			return err
		}
		it.pa, it.haveA = item, ok
	}
	if !it.haveB {
		item, ok, err := it.b.Next()
		if err != nil {
			return err
		}
		it.pb, it.haveB = item, ok
	}
	return nil
}

func (it *chainIter[K, V]) Next() (kv.KV[K, V], bool, error) {
	if err := it.fill(); err != nil {
		return kv.KV[K, V]{}, true, err
	}
	switch {
	case !it.haveA && !it.haveB:
		return kv.KV[K, V]{}, false, nil
	case it.haveA && (!it.haveB || !it.less(it.pb.Key, it.pa.Key)):
		out := it.pa
		it.haveA = false
		if it.haveB && !it.less(it.pa.Key, it.pb.Key) && !it.less(it.pb.Key, it.pa.Key) {
			it.haveB = false // collision: a wins, drop b's duplicate
		}
		return out, true, nil
	default:
		out := it.pb
		it.haveB = false
		return out, true, nil
	}
}

func (it *chainIter[K, V]) Close() { it.a.Close(); it.b.Close() }
