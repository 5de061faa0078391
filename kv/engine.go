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

import "sync"

// Cursor walks one namespace in key order. A Cursor is only valid for the
// lifetime of the Txn that produced it.
type Cursor interface {
	First() (k, v []byte, ok bool)
	Last() (k, v []byte, ok bool)
	// Seek returns the first entry with key >= k.
	Seek(k []byte) (rk, rv []byte, ok bool)
	Next() (k, v []byte, ok bool)
	Prev() (k, v []byte, ok bool)
	Close()
}

// Txn is a namespace-scoped view of a single engine transaction. Every
// Tree/Single operation runs inside exactly one Txn: kvview never hands a
// Txn spanning a caller-visible sequence of operations back across
// namespaces.
type Txn interface {
	Get(ns string, k []byte) (v []byte, ok bool, err error)
	Put(ns string, k, v []byte) (old []byte, existed bool, err error)
	Delete(ns string, k []byte) (old []byte, existed bool, err error)
	Clear(ns string) error
	Cursor(ns string) (Cursor, error)
}

// Engine is the underlying ordered KV engine collaborator: atomic point
// operations, ordered iteration, range scans, a notion of flush, and —
// since no single dependency offers both an
// embeddable ordered store and key-range change subscriptions — a
// reliable, per-namespace ChangeEvent subscription kvview implements
// itself on top of whichever storage backend satisfies the rest of the
// interface (bbolt for persistent Databases, an in-memory btree for
// Load()'s anonymous sinks).
type Engine interface {
	View(fn func(Txn) error) error
	Update(fn func(Txn) error) error
	// Subscribe delivers every ChangeEvent published for ns, in commit
	// order, starting from the moment Subscribe returns. Delivery is
	// reliable and blocking: a slow subscriber blocks the writer rather
	// than losing a delta. A non-nil s has Enqueue called inside the
	// writer's publish for every delivered event, so a quiescence Wait on
	// s covers deltas still sitting in the subscription buffer. Callers
	// that need a lossy, non-blocking reader should use a Broadcaster
	// (broadcast.go) instead of subscribing to the engine directly.
	Subscribe(ns string, s *Sync) (events <-chan ChangeEvent, cancel func())
	Flush() error
	Close() error
}

const subscriberBuffer = 4096

// subscriber's own mutex orders publish sends against cancel's close, so
// a writer caught mid-delivery can never send on a closed channel.
type subscriber struct {
	ns   string
	ch   chan ChangeEvent
	sync *Sync

	mu     sync.Mutex
	closed bool
}

// broker is the shared publish/subscribe fan-out used by both engine
// implementations.
type broker struct {
	mu   sync.Mutex
	subs map[uint64]*subscriber
	next uint64
}

func newBroker() *broker { return &broker{subs: make(map[uint64]*subscriber)} }

func (b *broker) subscribe(ns string, s *Sync) (<-chan ChangeEvent, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	sub := &subscriber{ns: ns, ch: make(chan ChangeEvent, subscriberBuffer), sync: s}
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			sub.mu.Lock()
			sub.closed = true
			close(sub.ch)
			sub.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// publish delivers ev, in order, to every live subscriber of ev.Namespace.
// It blocks on a full subscriber buffer rather than drop, so it must never
// be called while holding a lock a subscriber's own consumer might need.
// Each subscriber's Sync is bumped before its send, so the writer's own
// mutating call does not return until every delta it produced is counted.
func (b *broker) publish(ev ChangeEvent) {
	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.ns == ev.Namespace {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()
	for _, s := range targets {
		s.mu.Lock()
		if !s.closed {
			s.sync.Enqueue()
			s.ch <- ev
		}
		s.mu.Unlock()
	}
}

// pendingTxn accumulates ChangeEvents produced during one Update call so
// the engine can publish them, in order, only after the underlying
// transaction has actually committed.
type pendingTxn struct {
	events []ChangeEvent
}

func (p *pendingTxn) record(ev ChangeEvent) { p.events = append(p.events, ev) }
