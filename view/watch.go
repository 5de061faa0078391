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

import (
	"sync"

	"github.com/erigontech/kvview/kv"
	"github.com/erigontech/kvview/metrics"
)

const watchBuffer = 256

// DeltaEvent is one item from a Reader: either a Delta or a report that
// this reader fell behind and missed n deltas.
type DeltaEvent[K, V any] struct {
	Delta  kv.Delta[K, V]
	Lagged uint64
	IsLag  bool
}

// Reader is the typed analog of kv.WatchReader, for any View (not just a
// base Tree): a lossy broadcast reader that never blocks its writer.
type Reader[K, V any] struct {
	ch     chan DeltaEvent[K, V]
	cancel func()
}

// Err surfaces a lag report as a kv.SubscriptionLaggedError the caller
// recovers from by rereading; nil for an ordinary delta.
func (e DeltaEvent[K, V]) Err() error {
	if e.IsLag {
		return &kv.SubscriptionLaggedError{N: e.Lagged}
	}
	return nil
}

func (r *Reader[K, V]) Recv() (DeltaEvent[K, V], bool) {
	ev, ok := <-r.ch
	return ev, ok
}

func (r *Reader[K, V]) Close() { r.cancel() }

// watchRegistry keys a deltaBroadcaster by the View it was built over
// (View implementations are always pointer types, so the boxed interface
// value is a valid, comparable map key): only the first Watch call on a
// given View actually calls Subscribe, and the broadcaster is torn down
// once its last reader cancels.
var watchRegistry sync.Map

// Watch returns a lossy broadcast reader over v's Delta stream. It works
// uniformly for base trees and every combinator because both satisfy
// View's Subscribe method; only the first caller on a given
// View pays for the underlying Subscribe call, subsequent callers share
// the same fan-out.
func Watch[K, V any](v View[K, V], label string) *Reader[K, V] {
	fresh := &deltaBroadcaster[K, V]{label: label, key: v, readers: make(map[uint64]chan DeltaEvent[K, V]), missed: make(map[uint64]uint64)}
	actual, loaded := watchRegistry.LoadOrStore(v, fresh)
	b := actual.(*deltaBroadcaster[K, V])
	if !loaded {
		deltas, cancelSrc := v.Subscribe(nil)
		b.cancelSrc = cancelSrc
		go func() {
			for d := range deltas {
				b.publish(d)
			}
		}()
	}
	return b.newReader()
}

type deltaBroadcaster[K, V any] struct {
	mu        sync.Mutex
	label     string
	key       any
	cancelSrc func()
	readers   map[uint64]chan DeltaEvent[K, V]
	missed    map[uint64]uint64
	next      uint64
}

func (b *deltaBroadcaster[K, V]) newReader() *Reader[K, V] {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan DeltaEvent[K, V], watchBuffer)
	b.readers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.readers, id)
			delete(b.missed, id)
			empty := len(b.readers) == 0
			b.mu.Unlock()
			if empty {
				watchRegistry.Delete(b.key)
				if b.cancelSrc != nil {
					b.cancelSrc()
				}
			}
		})
	}
	return &Reader[K, V]{ch: ch, cancel: cancel}
}

func (b *deltaBroadcaster[K, V]) publish(d kv.Delta[K, V]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.readers {
		if n := b.missed[id]; n > 0 {
			select {
			case ch <- DeltaEvent[K, V]{IsLag: true, Lagged: n}:
				b.missed[id] = 0
				metrics.WatchLagged.WithLabelValues(b.label).Add(float64(n))
			default:
				b.missed[id]++
				continue
			}
		}
		select {
		case ch <- DeltaEvent[K, V]{Delta: d}:
		default:
			b.missed[id]++
		}
	}
}
