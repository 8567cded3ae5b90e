/*
 * MIT License
 *
 * Copyright (c) 2026 xcm contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package xcmmetrics exports the boundary counters of every socket
// registered with Collector.Track as a
// Prometheus collector, so a process embedding xcm gets a ready-made
// /metrics surface instead of having to poll each socket's attribute
// surface by hand.
package xcmmetrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabbar/xcm/internal/counters"
)

type trackedSocket struct {
	tag      string
	kind     string
	counters *counters.Counters
}

type pairDesc struct {
	desc   *prometheus.Desc
	pick   func(counters.All) counters.Snapshot
	isMsgs bool
}

// Collector implements prometheus.Collector over the live set of xcm
// sockets registered with Track. It is safe for concurrent use; Collect
// takes a read pass over the tracked set without blocking any socket's own
// operations, since it only ever reads the atomic snapshot each Counters
// already exposes.
type Collector struct {
	mu      sync.Mutex
	sockets map[uint64]trackedSocket

	pairs []pairDesc
}

// New builds a Collector. Register it with a prometheus.Registry (or
// prometheus.MustRegister for the default one) the way any other collector
// is registered.
func New() *Collector {
	labels := []string{"socket_id", "transport", "kind"}

	mk := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(name, help, labels, nil)
	}

	c := &Collector{sockets: make(map[uint64]trackedSocket)}
	c.pairs = []pairDesc{
		{mk("xcm_from_app_messages_total", "Messages handed from the application to the core."), func(a counters.All) counters.Snapshot { return a.FromApp }, true},
		{mk("xcm_from_app_bytes_total", "Bytes handed from the application to the core."), func(a counters.All) counters.Snapshot { return a.FromApp }, false},
		{mk("xcm_to_app_messages_total", "Messages delivered from the core to the application."), func(a counters.All) counters.Snapshot { return a.ToApp }, true},
		{mk("xcm_to_app_bytes_total", "Bytes delivered from the core to the application."), func(a counters.All) counters.Snapshot { return a.ToApp }, false},
		{mk("xcm_from_lower_messages_total", "Messages read off the underlying transport."), func(a counters.All) counters.Snapshot { return a.FromLower }, true},
		{mk("xcm_from_lower_bytes_total", "Bytes read off the underlying transport."), func(a counters.All) counters.Snapshot { return a.FromLower }, false},
		{mk("xcm_to_lower_messages_total", "Messages handed to the underlying transport."), func(a counters.All) counters.Snapshot { return a.ToLower }, true},
		{mk("xcm_to_lower_bytes_total", "Bytes handed to the underlying transport."), func(a counters.All) counters.Snapshot { return a.ToLower }, false},
	}
	return c
}

// Track registers a socket's counters under the collector's label set. id
// is expected to be the socket's Socket.ID().
func (c *Collector) Track(id uint64, tag, kind string, cnt *counters.Counters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sockets[id] = trackedSocket{tag: tag, kind: kind, counters: cnt}
}

// Untrack removes a socket. Nothing in xcm.Socket calls Track or Untrack;
// the code that tracked a socket untracks it.
func (c *Collector) Untrack(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sockets, id)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, p := range c.pairs {
		ch <- p.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	snapshot := make(map[uint64]trackedSocket, len(c.sockets))
	for id, s := range c.sockets {
		snapshot[id] = s
	}
	c.mu.Unlock()

	for id, s := range snapshot {
		all := s.counters.Snapshot()
		idLabel := strconv.FormatUint(id, 10)
		for _, p := range c.pairs {
			pair := p.pick(all)
			value := float64(pair.Bytes)
			if p.isMsgs {
				value = float64(pair.Msgs)
			}
			ch <- prometheus.MustNewConstMetric(p.desc, prometheus.CounterValue, value, idLabel, s.tag, s.kind)
		}
	}
}
