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

// Sink is the write surface Pipe applies a source's events to: any View
// wrapper that can Insert/Remove/Clear, most commonly a kv.Tree.
type Sink[K, V any] interface {
	Insert(k K, v V) (V, bool, error)
	Remove(k K) (V, bool, error)
	Clear() error
}

// Pipe subscribes src's events and applies each one to sink as it arrives,
// a standing "apply all my changes to you" wire that never changes src
// itself. It runs until cancel is called or src's stream closes; the
// returned Sync quiesces once every delta enqueued so far has been
// applied to sink.
func Pipe[K, V any](src View[K, V], sink Sink[K, V]) (*kv.Sync, func()) {
	s := kv.NewSync("pipe")
	deltas, cancel := src.Subscribe(s)
	go func() {
		for d := range deltas {
			switch d.Kind {
			case kv.Insert:
				sink.Insert(d.Key, d.New)
			case kv.Remove:
				sink.Remove(d.Key)
			case kv.Clear:
				sink.Clear()
			}
			s.Complete()
		}
	}()
	return s, cancel
}
