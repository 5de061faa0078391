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

// Package metrics exposes the operational counters for the propagation
// fabric via prometheus/client_golang. Every materialized view registers
// its own gauge/counter set, labeled by sink name, so a process hosting
// many materialized views gets per-view visibility without extra plumbing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Incoming tracks the live value of each materialized view's Sync
	// counter (deltas enqueued but not yet applied to the sink).
	Incoming = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kvview",
		Subsystem: "materialize",
		Name:      "incoming",
		Help:      "Pending propagation deltas for a materialized view.",
	}, []string{"sink"})

	// Propagated counts sink writes applied by a propagation worker.
	Propagated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvview",
		Subsystem: "materialize",
		Name:      "propagated_total",
		Help:      "ChangeEvents successfully applied to a materialized view's sink.",
	}, []string{"sink"})

	// DecodeSkipped counts rows a propagation worker skipped after a
	// DecodeError under the log-and-continue policy.
	DecodeSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvview",
		Subsystem: "materialize",
		Name:      "decode_skipped_total",
		Help:      "Rows skipped by a propagation worker after a decode error.",
	}, []string{"sink"})

	// Degraded is 1 while a materialized view has stopped propagating after
	// a StorageError, 0 otherwise.
	Degraded = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kvview",
		Subsystem: "materialize",
		Name:      "degraded",
		Help:      "1 if the materialized view has stopped propagating after a storage error.",
	}, []string{"sink"})

	// WatchLagged counts SubscriptionLagged overflow events delivered to
	// slow Watch readers.
	WatchLagged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvview",
		Subsystem: "watch",
		Name:      "lagged_total",
		Help:      "SubscriptionLagged events delivered to watch readers that fell behind.",
	}, []string{"view"})

	// SubscribeDropped counts ChangeEvents a Tree's live Subscribe stream
	// dropped after a decode error — the same log-and-continue policy
	// DecodeSkipped tracks for propagation workers, applied at the base
	// Tree's own event pump instead of a materialized sink.
	SubscribeDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvview",
		Subsystem: "kv",
		Name:      "subscribe_decode_dropped_total",
		Help:      "ChangeEvents dropped from a Tree's live Subscribe stream after a decode error.",
	}, []string{"namespace"})
)

// Register adds kvview's collectors to reg. The same collector instances
// may be registered into more than one registry (e.g. a test-local registry
// alongside the default one); call it with prometheus.DefaultRegisterer to
// expose kvview's metrics on the process's default /metrics handler.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(Incoming, Propagated, DecodeSkipped, Degraded, WatchLagged, SubscribeDropped)
}

func init() {
	Register(prometheus.DefaultRegisterer)
}
