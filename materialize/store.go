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
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/erigontech/kvview/kv"
	"github.com/erigontech/kvview/log"
	"github.com/erigontech/kvview/metrics"
	"github.com/erigontech/kvview/view"
)

// MaterializedView wraps a sink kv.Tree with the propagation worker and
// Sync handle. Reads go straight to the sink tree, which only the
// initial fill and the worker write, except that once a StorageError has degraded the view every
// read (IsEmpty, ContainsKey, Get, GetLT, GetGT, First, Last, Iter,
// Range) returns a DegradedError deterministically; DB, Subscribe, Sync
// and Wait are unaffected.
type MaterializedView[K, V any] struct {
	sink     *kv.Tree[K, V]
	sync     *kv.Sync
	wg       *errgroup.Group
	cancel   func()
	degraded atomic.Bool
	degErr   atomic.Pointer[error]
	log      log.Logger
}

func newMaterializedView[K, V any](name string, sink *kv.Tree[K, V]) *MaterializedView[K, V] {
	return &MaterializedView[K, V]{sink: sink, sync: kv.NewSync(name), wg: &errgroup.Group{}, log: log.New("kvview.materialize").New(name)}
}

// Sync returns the quiescence handle for this materialized view.
func (m *MaterializedView[K, V]) Sync() *kv.Sync { return m.sync }

// Wait is shorthand for Sync().Wait().
func (m *MaterializedView[K, V]) Wait() { m.sync.Wait() }

// Close stops the propagation worker; it drains to a safe point and
// exits. The sink is left as-is: a Store() sink's tree is not deleted,
// and a Load() sink's private in-memory engine is not closed.
func (m *MaterializedView[K, V]) Close() { m.cancel() }

func (m *MaterializedView[K, V]) checkDegraded() error {
	if m.degraded.Load() {
		if p := m.degErr.Load(); p != nil {
			return &kv.DegradedError{Sink: m.sink.Namespace(), Cause: *p}
		}
		return &kv.DegradedError{Sink: m.sink.Namespace()}
	}
	return nil
}

func (m *MaterializedView[K, V]) markDegraded(err error) {
	if m.degraded.CompareAndSwap(false, true) {
		m.degErr.Store(&err)
		metrics.Degraded.WithLabelValues(m.sink.Namespace()).Set(1)
		m.log.Error("materialized view degraded, propagation stopped", "err", err)
	}
}

func (m *MaterializedView[K, V]) IsEmpty() (bool, error) {
	if err := m.checkDegraded(); err != nil {
		return false, err
	}
	return m.sink.IsEmpty()
}
func (m *MaterializedView[K, V]) ContainsKey(k K) (bool, error) {
	if err := m.checkDegraded(); err != nil {
		return false, err
	}
	return m.sink.ContainsKey(k)
}
func (m *MaterializedView[K, V]) Get(k K) (V, bool, error) {
	if err := m.checkDegraded(); err != nil {
		var zero V
		return zero, false, err
	}
	return m.sink.Get(k)
}
func (m *MaterializedView[K, V]) GetLT(k K) (kv.KV[K, V], bool, error) {
	if err := m.checkDegraded(); err != nil {
		return kv.KV[K, V]{}, false, err
	}
	return m.sink.GetLT(k)
}
func (m *MaterializedView[K, V]) GetGT(k K) (kv.KV[K, V], bool, error) {
	if err := m.checkDegraded(); err != nil {
		return kv.KV[K, V]{}, false, err
	}
	return m.sink.GetGT(k)
}
func (m *MaterializedView[K, V]) First() (kv.KV[K, V], bool, error) {
	if err := m.checkDegraded(); err != nil {
		return kv.KV[K, V]{}, false, err
	}
	return m.sink.First()
}
func (m *MaterializedView[K, V]) Last() (kv.KV[K, V], bool, error) {
	if err := m.checkDegraded(); err != nil {
		return kv.KV[K, V]{}, false, err
	}
	return m.sink.Last()
}
func (m *MaterializedView[K, V]) Iter() kv.Iterator[K, V] {
	if err := m.checkDegraded(); err != nil {
		return &errIter[K, V]{err: err}
	}
	return m.sink.Iter()
}
func (m *MaterializedView[K, V]) Range(lo, hi kv.Bound[K]) (kv.Iterator[K, V], error) {
	if err := m.checkDegraded(); err != nil {
		return nil, err
	}
	return m.sink.Range(lo, hi)
}
func (m *MaterializedView[K, V]) DB() *kv.Database { return m.sink.DB() }
func (m *MaterializedView[K, V]) Subscribe(s *kv.Sync) (<-chan kv.Delta[K, V], func()) {
	return m.sink.Subscribe(s)
}

// RequiresMaterialization is false: a MaterializedView is already
// concrete storage kept current by a worker, so further combinators may
// chain on it directly, same as on a base Tree.
func (m *MaterializedView[K, V]) RequiresMaterialization() bool { return false }

// Store persists src under name in src's Database, filling it from a
// consistent snapshot and keeping it current via a propagation worker.
// kc/vc are the sink's own codecs, since a View does not expose the
// codecs used by its (possibly several) sources.
func Store[K, V any](name string, src view.View[K, V], kc kv.Codec[K], vc kv.Codec[V]) (*MaterializedView[K, V], error) {
	sink := kv.OpenTree[K, V](src.DB(), name, kc, vc, nil)
	mv := newMaterializedView(name, sink)
	runPropagation[K, V](mv, src)
	src.DB().RegisterCloser(mv.Close)
	return mv, nil
}

// Load is Store's anonymous, in-memory counterpart: the sink lives in a
// private Engine dropped with the MaterializedView.
func Load[K, V any](src view.View[K, V], kc kv.Codec[K], vc kv.Codec[V]) (*MaterializedView[K, V], error) {
	eng := kv.NewMemEngine()
	db := kv.WrapEngine(eng)
	sink := kv.OpenTree[K, V](db, "load", kc, vc, nil)
	mv := newMaterializedView("load", sink)
	runPropagation[K, V](mv, src)
	src.DB().RegisterCloser(mv.Close)
	return mv, nil
}

// runPropagation keeps callers insulated from a gap between the initial
// fill and live propagation: subscribe first (no gap), then fill from a
// snapshot scan while deltas queue up behind the subscription's bounded
// buffer, then replay and keep draining forever. Holding the worker back
// until the fill completes means a delta racing the scan is always
// applied after the scanned row it concerns, so the catch-up phase
// converges by last-write-wins per key. The sync counter is bumped by the
// writer's own enqueue, so deltas queued during the fill are already
// visible to Wait by the time Store/Load returns.
func runPropagation[K, V any](mv *MaterializedView[K, V], src view.View[K, V]) {
	deltas, cancelSrc := src.Subscribe(mv.sync)
	mv.cancel = func() {
		cancelSrc()
		mv.wg.Wait()
	}

	fillDone := make(chan struct{})
	defer close(fillDone)

	mv.wg.Go(func() error {
		<-fillDone
		for d := range deltas {
			if !mv.degraded.Load() {
				applyDelta(mv, d)
			}
			mv.sync.Complete()
		}
		return nil
	})

	it := src.Iter()
	defer it.Close()
	for {
		item, ok, err := it.Next()
		if err != nil {
			var de *kv.DecodeError
			if decodeErrorAs(err, &de) {
				metrics.DecodeSkipped.WithLabelValues(mv.sink.Namespace()).Inc()
				mv.log.Error("initial fill skipped row with decode error", "err", de)
				continue
			}
			mv.markDegraded(err)
			return
		}
		if !ok {
			break
		}
		if _, _, err := mv.sink.Insert(item.Key, item.Value); err != nil {
			mv.markDegraded(err)
			return
		}
	}
}

func applyDelta[K, V any](mv *MaterializedView[K, V], d kv.Delta[K, V]) {
	switch d.Kind {
	case kv.Insert:
		if _, _, err := mv.sink.Insert(d.Key, d.New); err != nil {
			mv.markDegraded(err)
			return
		}
	case kv.Remove:
		if _, _, err := mv.sink.Remove(d.Key); err != nil {
			mv.markDegraded(err)
			return
		}
	case kv.Clear:
		if err := mv.sink.Clear(); err != nil {
			mv.markDegraded(err)
			return
		}
	}
	metrics.Propagated.WithLabelValues(mv.sink.Namespace()).Inc()
}

// errIter fails every Next with the degradation error, so iterating a
// degraded view is as deterministic as point-reading one.
type errIter[K, V any] struct{ err error }

func (it *errIter[K, V]) Next() (kv.KV[K, V], bool, error) { return kv.KV[K, V]{}, true, it.err }
func (it *errIter[K, V]) Close()                           {}

func decodeErrorAs(err error, target **kv.DecodeError) bool {
	de, ok := err.(*kv.DecodeError)
	if !ok {
		return false
	}
	*target = de
	return true
}
