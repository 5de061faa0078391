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

package materialize

import (
	"sync"

	"github.com/erigontech/kvview/kv"
	"github.com/erigontech/kvview/log"
	"github.com/erigontech/kvview/metrics"
	"github.com/erigontech/kvview/view"
)

// contribMap tracks, per sink key K2, the multiset of source keys K that
// currently contribute a value at K2 — the contribution map, the piece
// of state that makes it possible to correctly shrink or recompute a
// transform/index sink entry when a single source row changes, without
// rescanning the whole source.
type contribMap[K comparable, K2 comparable] struct {
	mu   sync.Mutex
	byK2 map[K2]map[K]struct{}
	byK  map[K]map[K2]struct{}
}

func newContribMap[K comparable, K2 comparable]() *contribMap[K, K2] {
	return &contribMap[K, K2]{byK2: make(map[K2]map[K]struct{}), byK: make(map[K]map[K2]struct{})}
}

// set replaces k's contributions with k2s, returning every sink key whose
// multiset may have changed: each K2 the row previously contributed to
// (its share shrank or its value changed) plus each K2 it contributes to
// now. A K2 left with no contributors at all stays in the result; the
// caller's recompute observes the empty set and removes the sink entry.
func (c *contribMap[K, K2]) set(k K, k2s []K2) (affected []K2) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.byK[k]
	next := make(map[K2]struct{}, len(k2s))
	for _, k2 := range k2s {
		next[k2] = struct{}{}
	}

	for k2 := range old {
		set := c.byK2[k2]
		delete(set, k)
		if len(set) == 0 {
			delete(c.byK2, k2)
		}
		affected = append(affected, k2)
	}
	for k2 := range next {
		set, ok := c.byK2[k2]
		if !ok {
			set = make(map[K]struct{})
			c.byK2[k2] = set
		}
		set[k] = struct{}{}
		if _, dup := old[k2]; !dup {
			affected = append(affected, k2)
		}
	}

	if len(next) == 0 {
		delete(c.byK, k)
	} else {
		c.byK[k] = next
	}
	return affected
}

func (c *contribMap[K, K2]) contributors(k2 K2) []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]K, 0, len(c.byK2[k2]))
	for k := range c.byK2[k2] {
		out = append(out, k)
	}
	return out
}

// StoreTransform materializes a TransformSpec as a named sink tree whose
// value type is []V2 — the multiset of values contributed by every
// source row currently mapping to that K2.
func StoreTransform[K comparable, V any, K2 comparable, V2 any](
	name string, spec view.TransformSpec[K, V, K2, V2], k2c kv.Codec[K2], vc kv.Codec[[]V2],
) (*MaterializedView[K2, []V2], error) {
	sink := kv.OpenTree[K2, []V2](spec.Src.DB(), name, k2c, vc, nil)
	mv := newMaterializedView(name, sink)
	runTransformPropagation(mv, spec)
	spec.Src.DB().RegisterCloser(mv.Close)
	return mv, nil
}

// LoadTransform is StoreTransform's anonymous, in-memory counterpart.
func LoadTransform[K comparable, V any, K2 comparable, V2 any](
	spec view.TransformSpec[K, V, K2, V2], k2c kv.Codec[K2], vc kv.Codec[[]V2],
) (*MaterializedView[K2, []V2], error) {
	db := kv.WrapEngine(kv.NewMemEngine())
	sink := kv.OpenTree[K2, []V2](db, "load", k2c, vc, nil)
	mv := newMaterializedView("load", sink)
	runTransformPropagation(mv, spec)
	spec.Src.DB().RegisterCloser(mv.Close)
	return mv, nil
}

func runTransformPropagation[K comparable, V any, K2 comparable, V2 any](
	mv *MaterializedView[K2, []V2], spec view.TransformSpec[K, V, K2, V2],
) {
	cm := newContribMap[K, K2]()
	lg := log.New("kvview.materialize").New(mv.sink.Namespace())

	// recompute writes k2's full multiset of values by re-deriving it from
	// every row that still contributes to it — transform's source rows
	// keep their original value, so there is no stash of past V2s to
	// reuse; a contributor count in the dozens (the expected shape for an
	// index) keeps this cheap.
	recompute := func(k2 K2) {
		contributors := cm.contributors(k2)
		if len(contributors) == 0 {
			mv.sink.Remove(k2)
			return
		}
		var vals []V2
		for _, k := range contributors {
			v, ok, err := spec.Src.Get(k)
			if err != nil || !ok {
				continue
			}
			for _, kv2 := range spec.F(k, v) {
				if kv2.Key == k2 {
					vals = append(vals, kv2.Value)
				}
			}
		}
		if _, _, err := mv.sink.Insert(k2, vals); err != nil {
			mv.markDegraded(err)
		}
	}

	apply := func(k K, v V, hasV bool) {
		var k2s []K2
		if hasV {
			for _, kv2 := range spec.F(k, v) {
				k2s = append(k2s, kv2.Key)
			}
		}
		// Everything the row touched, before or after the change, gets
		// its multiset rebuilt: shrunk buckets, grown buckets, and
		// buckets whose membership is unchanged but whose value from this
		// row may have changed in place.
		for _, k2 := range cm.set(k, k2s) {
			recompute(k2)
		}
	}

	deltas, cancelSrc := spec.Src.Subscribe(mv.sync)
	mv.cancel = func() {
		cancelSrc()
		mv.wg.Wait()
	}

	// As in runPropagation: the worker holds off until the fill finishes,
	// replaying any delta that raced the scan afterward in source order.
	fillDone := make(chan struct{})
	defer close(fillDone)

	mv.wg.Go(func() error {
		<-fillDone
		for d := range deltas {
			if !mv.degraded.Load() {
				switch d.Kind {
				case kv.Insert:
					apply(d.Key, d.New, true)
				case kv.Remove:
					apply(d.Key, d.Old, false)
				case kv.Clear:
					mv.sink.Clear()
					cm = newContribMap[K, K2]()
				}
				metrics.Propagated.WithLabelValues(mv.sink.Namespace()).Inc()
			}
			mv.sync.Complete()
		}
		return nil
	})

	it := spec.Src.Iter()
	defer it.Close()
	for {
		item, ok, err := it.Next()
		if err != nil {
			var de *kv.DecodeError
			if decodeErrorAs(err, &de) {
				metrics.DecodeSkipped.WithLabelValues(mv.sink.Namespace()).Inc()
				lg.Error("transform initial fill skipped row with decode error", "err", de)
				continue
			}
			mv.markDegraded(err)
			lg.Error("transform initial fill aborted", "err", err)
			return
		}
		if !ok {
			break
		}
		apply(item.Key, item.Value, true)
	}
}
