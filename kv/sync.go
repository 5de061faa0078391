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
	"sync/atomic"

	"github.com/erigontech/kvview/metrics"
)

// Sync is the quiescence probe attached to a delta subscription: Incoming
// counts deltas from the moment the writer enqueues the ChangeEvent until
// a downstream consumer has applied or discarded the translated delta.
// Enqueue runs inside the writer's own publish, so by the time a mutating
// Tree operation returns, every delta it produced is already counted:
// Wait observing zero really means the pipeline is drained, not merely
// that the consumer's channel looked empty.
//
// All methods are nil-safe; a nil *Sync is the "nobody is counting"
// subscription used by Watch readers.
type Sync struct {
	label    string
	incoming int64
	mu       sync.Mutex
	cond     *sync.Cond
}

// NewSync returns a Sync labeled for metrics by the sink (or wire) it
// guards.
func NewSync(label string) *Sync {
	s := &Sync{label: label}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Enqueue counts one delta entering the pipeline. Called by the engine
// broker inside the writer's publish.
func (s *Sync) Enqueue() {
	if s == nil {
		return
	}
	n := atomic.AddInt64(&s.incoming, 1)
	metrics.Incoming.WithLabelValues(s.label).Set(float64(n))
}

// Complete counts one delta leaving the pipeline, whether it was applied
// to a sink or dropped along the way (filter, chain's collision rule, a
// decode failure).
func (s *Sync) Complete() {
	if s == nil {
		return
	}
	n := atomic.AddInt64(&s.incoming, -1)
	metrics.Incoming.WithLabelValues(s.label).Set(float64(n))
	if n == 0 {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// Incoming returns the live count of pending deltas.
func (s *Sync) Incoming() int64 {
	if s == nil {
		return 0
	}
	return atomic.LoadInt64(&s.incoming)
}

// IsSync reports whether Incoming is currently zero.
func (s *Sync) IsSync() bool { return s.Incoming() == 0 }

// Wait blocks until Incoming reaches zero.
func (s *Sync) Wait() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for atomic.LoadInt64(&s.incoming) != 0 {
		s.cond.Wait()
	}
}
