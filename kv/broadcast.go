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

package kv

import (
	"sync"

	"github.com/erigontech/kvview/metrics"
)

const watchBuffer = 256

// WatchEvent is one item from a WatchReader: either a decoded ChangeEvent
// or a report that this reader fell behind and missed n events.
type WatchEvent struct {
	Event  ChangeEvent
	Lagged uint64
	IsLag  bool
}

// WatchReader is a lossy, non-blocking broadcast reader. A slow reader
// is dropped from delivery rather than allowed to block the writer; the
// next item it reads reports how many events it missed.
type WatchReader struct {
	ch     chan WatchEvent
	cancel func()
}

// Err surfaces a lag report as a SubscriptionLaggedError the caller
// recovers from by rereading; nil for an ordinary event.
func (e WatchEvent) Err() error {
	if e.IsLag {
		return &SubscriptionLaggedError{N: e.Lagged}
	}
	return nil
}

func (r *WatchReader) Recv() (WatchEvent, bool) {
	ev, ok := <-r.ch
	return ev, ok
}

func (r *WatchReader) Close() { r.cancel() }

// Broadcaster fans a reliable engine ChangeEvent stream out to any number
// of lossy WatchReaders: the engine-to-propagation path stays reliable
// and blocking (broker), while reads exposed to arbitrary user code stay
// lossy and bounded here.
type Broadcaster struct {
	mu      sync.Mutex
	label   string
	readers map[uint64]chan WatchEvent
	next    uint64
	missed  map[uint64]uint64
}

func newBroadcaster(label string) *Broadcaster {
	return &Broadcaster{label: label, readers: make(map[uint64]chan WatchEvent), missed: make(map[uint64]uint64)}
}

func (b *Broadcaster) newReader() *WatchReader {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan WatchEvent, watchBuffer)
	b.readers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.readers, id)
			delete(b.missed, id)
			b.mu.Unlock()
		})
	}
	return &WatchReader{ch: ch, cancel: cancel}
}

// publish delivers ev to every live reader, non-blockingly: a reader whose
// buffer is full is skipped and its miss count incremented, surfaced as a
// SubscriptionLagged-style WatchEvent on its next successful receive.
func (b *Broadcaster) publish(ev ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.readers {
		if n := b.missed[id]; n > 0 {
			select {
			case ch <- WatchEvent{IsLag: true, Lagged: n}:
				b.missed[id] = 0
				metrics.WatchLagged.WithLabelValues(b.label).Add(float64(n))
			default:
				b.missed[id]++
				continue
			}
		}
		select {
		case ch <- WatchEvent{Event: ev}:
		default:
			b.missed[id]++
		}
	}
}
