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

// Pair is zip's sink value type: the independently-optional halves from
// each source at a given key.
type Pair[V, U any] struct {
	V    V
	HasV bool
	U    U
	HasU bool
}

// Zip pairs a and b: every key present in either source appears once, with
// whichever half(s) are present. Like Chain, the result has two sources
// and so must be materialized before further chaining.
func Zip[K, V, U any](a View[K, V], b View[K, U], less func(x, y K) bool) View[K, Pair[V, U]] {
	return &zipView[K, V, U]{a: a, b: b, less: less}
}

type zipView[K, V, U any] struct {
	a    View[K, V]
	b    View[K, U]
	less func(x, y K) bool
}

func (z *zipView[K, V, U]) RequiresMaterialization() bool { return true }

func (z *zipView[K, V, U]) DB() *kv.Database { return z.a.DB() }

func (z *zipView[K, V, U]) Get(k K) (Pair[V, U], bool, error) {
	v, okv, err := z.a.Get(k)
	if err != nil {
		return Pair[V, U]{}, false, err
	}
	u, oku, err := z.b.Get(k)
	if err != nil {
		return Pair[V, U]{}, false, err
	}
	if !okv && !oku {
		return Pair[V, U]{}, false, nil
	}
	return Pair[V, U]{V: v, HasV: okv, U: u, HasU: oku}, true, nil
}

func (z *zipView[K, V, U]) ContainsKey(k K) (bool, error) {
	_, ok, err := z.Get(k)
	return ok, err
}

func (z *zipView[K, V, U]) IsEmpty() (bool, error) {
	_, ok, err := z.First()
	return !ok, err
}

func (z *zipView[K, V, U]) First() (kv.KV[K, Pair[V, U]], bool, error) {
	it := z.Iter()
	defer it.Close()
	return it.Next()
}

func (z *zipView[K, V, U]) Last() (kv.KV[K, Pair[V, U]], bool, error) {
	it := z.Iter()
	defer it.Close()
	var last kv.KV[K, Pair[V, U]]
	var any bool
	for {
		item, ok, err := it.Next()
		if err != nil {
			return kv.KV[K, Pair[V, U]]{}, false, err
		}
		if !ok {
			return last, any, nil
		}
		last, any = item, true
	}
}

func (z *zipView[K, V, U]) GetLT(k K) (kv.KV[K, Pair[V, U]], bool, error) {
	it, err := z.Range(kv.Unbound[K](), kv.Excl(k))
	if err != nil {
		return kv.KV[K, Pair[V, U]]{}, false, err
	}
	defer it.Close()
	var last kv.KV[K, Pair[V, U]]
	var any bool
	for {
		item, ok, err := it.Next()
		if err != nil {
			return kv.KV[K, Pair[V, U]]{}, false, err
		}
		if !ok {
			return last, any, nil
		}
		last, any = item, true
	}
}

func (z *zipView[K, V, U]) GetGT(k K) (kv.KV[K, Pair[V, U]], bool, error) {
	it, err := z.Range(kv.Excl(k), kv.Unbound[K]())
	if err != nil {
		return kv.KV[K, Pair[V, U]]{}, false, err
	}
	defer it.Close()
	return it.Next()
}

func (z *zipView[K, V, U]) Iter() kv.Iterator[K, Pair[V, U]] {
	it, _ := z.Range(kv.Unbound[K](), kv.Unbound[K]())
	return it
}

func (z *zipView[K, V, U]) Range(lo, hi kv.Bound[K]) (kv.Iterator[K, Pair[V, U]], error) {
	ai, err := z.a.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	bi, err := z.b.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	return &zipIter[K, V, U]{a: ai, b: bi, less: z.less}, nil
}

func (z *zipView[K, V, U]) Subscribe(s *kv.Sync) (<-chan kv.Delta[K, Pair[V, U]], func()) {
	aCh, aCancel := z.a.Subscribe(s)
	bCh, bCancel := z.b.Subscribe(s)
	out := make(chan kv.Delta[K, Pair[V, U]])
	go func() {
		defer close(out)
		for aCh != nil || bCh != nil {
			select {
			case d, ok := <-aCh:
				if !ok {
					aCh = nil
					continue
				}
				z.onA(d, s, out)
			case d, ok := <-bCh:
				if !ok {
					bCh = nil
					continue
				}
				z.onB(d, s, out)
			}
		}
	}()
	return out, func() { aCancel(); bCancel() }
}

func (z *zipView[K, V, U]) onA(d kv.Delta[K, V], s *kv.Sync, out chan<- kv.Delta[K, Pair[V, U]]) {
	if d.Kind == kv.Clear {
		out <- kv.Delta[K, Pair[V, U]]{Kind: kv.Clear}
		return
	}
	u, hasU, err := z.b.Get(d.Key)
	if err != nil {
		s.Complete()
		return
	}
	if d.Kind == kv.Remove {
		if hasU {
			out <- kv.Delta[K, Pair[V, U]]{Kind: kv.Insert, Key: d.Key,
				New: Pair[V, U]{U: u, HasU: true},
				Old: Pair[V, U]{V: d.Old, HasV: true, U: u, HasU: hasU}, HasOld: true}
		} else {
			out <- kv.Delta[K, Pair[V, U]]{Kind: kv.Remove, Key: d.Key, Old: Pair[V, U]{V: d.Old, HasV: true}, HasOld: true}
		}
		return
	}
	newPair := Pair[V, U]{V: d.New, HasV: true, U: u, HasU: hasU}
	var oldPair Pair[V, U]
	hasOld := d.HasOld || hasU
	if hasOld {
		oldPair = Pair[V, U]{V: d.Old, HasV: d.HasOld, U: u, HasU: hasU}
	}
	out <- kv.Delta[K, Pair[V, U]]{Kind: kv.Insert, Key: d.Key, New: newPair, Old: oldPair, HasOld: hasOld}
}

func (z *zipView[K, V, U]) onB(d kv.Delta[K, U], s *kv.Sync, out chan<- kv.Delta[K, Pair[V, U]]) {
	if d.Kind == kv.Clear {
		out <- kv.Delta[K, Pair[V, U]]{Kind: kv.Clear}
		return
	}
	v, hasV, err := z.a.Get(d.Key)
	if err != nil {
		s.Complete()
		return
	}
	if d.Kind == kv.Remove {
		if hasV {
			out <- kv.Delta[K, Pair[V, U]]{Kind: kv.Insert, Key: d.Key,
				New: Pair[V, U]{V: v, HasV: true},
				Old: Pair[V, U]{V: v, HasV: hasV, U: d.Old, HasU: true}, HasOld: true}
		} else {
			out <- kv.Delta[K, Pair[V, U]]{Kind: kv.Remove, Key: d.Key, Old: Pair[V, U]{U: d.Old, HasU: true}, HasOld: true}
		}
		return
	}
	newPair := Pair[V, U]{V: v, HasV: hasV, U: d.New, HasU: true}
	var oldPair Pair[V, U]
	hasOld := hasV || d.HasOld
	if hasOld {
		oldPair = Pair[V, U]{V: v, HasV: hasV, U: d.Old, HasU: d.HasOld}
	}
	out <- kv.Delta[K, Pair[V, U]]{Kind: kv.Insert, Key: d.Key, New: newPair, Old: oldPair, HasOld: hasOld}
}

type zipIter[K, V, U any] struct {
	a            kv.Iterator[K, V]
	b            kv.Iterator[K, U]
	less         func(x, y K) bool
	pa           kv.KV[K, V]
	pb           kv.KV[K, U]
	haveA, haveB bool
}

func (it *zipIter[K, V, U]) fill() error {
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

func (it *zipIter[K, V, U]) Next() (kv.KV[K, Pair[V, U]], bool, error) {
	if err := it.fill(); err != nil {
		return kv.KV[K, Pair[V, U]]{}, true, err
	}
	switch {
	case !it.haveA && !it.haveB:
		return kv.KV[K, Pair[V, U]]{}, false, nil
	case it.haveA && it.haveB && !it.less(it.pa.Key, it.pb.Key) && !it.less(it.pb.Key, it.pa.Key):
		out := kv.KV[K, Pair[V, U]]{Key: it.pa.Key, Value: Pair[V, U]{V: it.pa.Value, HasV: true, U: it.pb.Value, HasU: true}}
		it.haveA, it.haveB = false, false
		return out, true, nil
	case it.haveA && (!it.haveB || it.less(it.pa.Key, it.pb.Key)):
		out := kv.KV[K, Pair[V, U]]{Key: it.pa.Key, Value: Pair[V, U]{V: it.pa.Value, HasV: true}}
		it.haveA = false
		return out, true, nil
	default:
		out := kv.KV[K, Pair[V, U]]{Key: it.pb.Key, Value: Pair[V, U]{U: it.pb.Value, HasU: true}}
		it.haveB = false
		return out, true, nil
	}
}

func (it *zipIter[K, V, U]) Close() { it.a.Close(); it.b.Close() }
