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

// Package counters implements the four (messages, bytes) pairs tracked per
// connection socket: from_app, to_app, from_lower, to_lower. Every field is
// updated with atomic adds only, since a socket's operations are not
// re-entrant but an out-of-band reader (the introspection channel, or a
// Prometheus collector) may read them from a different goroutine than the
// one driving the socket.
package counters

import "sync/atomic"

// Pair is one (messages, bytes) tally.
type Pair struct {
	Msgs  uint64
	Bytes uint64
}

func (p *Pair) add(msgs, bytes uint64) {
	atomic.AddUint64(&p.Msgs, msgs)
	atomic.AddUint64(&p.Bytes, bytes)
}

// Snapshot is a point-in-time, non-atomic copy of a Pair, safe to pass
// around after it is taken.
type Snapshot struct {
	Msgs  uint64
	Bytes uint64
}

func (p *Pair) snapshot() Snapshot {
	return Snapshot{
		Msgs:  atomic.LoadUint64(&p.Msgs),
		Bytes: atomic.LoadUint64(&p.Bytes),
	}
}

// Counters holds the four boundary pairs for one connection socket. A
// socket with kind=server never carries one: it accepts connections but
// never sends or receives messages itself.
type Counters struct {
	FromApp   Pair
	ToApp     Pair
	FromLower Pair
	ToLower   Pair
}

// AddFromApp records that the core has taken full ownership of one
// application message of the given payload length.
func (c *Counters) AddFromApp(bytes int) { c.FromApp.add(1, uint64(bytes)) }

// AddToApp records that one complete message has been copied out to the
// application by receive.
func (c *Counters) AddToApp(bytes int) { c.ToApp.add(1, uint64(bytes)) }

// AddFromLower records that one complete message has been read off the
// lower transport (the inverse boundary of AddToApp: they are the same
// count in the framed-stream engine, but kept distinct since a transport
// could in principle reassemble before delivering to the application).
func (c *Counters) AddFromLower(bytes int) { c.FromLower.add(1, uint64(bytes)) }

// AddToLower records that one complete frame has been handed off to the OS
// (or the TLS layer); invariant on from_app vs to_lower.
func (c *Counters) AddToLower(bytes int) { c.ToLower.add(1, uint64(bytes)) }

// All is a consistent-enough (per-field-atomic, not cross-field atomic)
// read of all four pairs, as returned by Counters.Snapshot and used by
// attribute reads and the introspection channel.
type All struct {
	FromApp   Snapshot
	ToApp     Snapshot
	FromLower Snapshot
	ToLower   Snapshot
}

func (c *Counters) Snapshot() All {
	return All{
		FromApp:   c.FromApp.snapshot(),
		ToApp:     c.ToApp.snapshot(),
		FromLower: c.FromLower.snapshot(),
		ToLower:   c.ToLower.snapshot(),
	}
}

// Idle reports whether from_app/to_lower and to_app/from_lower have
// converged, i.e. nothing is currently buffered inside the core.
func (c *Counters) Idle() bool {
	return atomic.LoadUint64(&c.FromApp.Msgs) == atomic.LoadUint64(&c.ToLower.Msgs) &&
		atomic.LoadUint64(&c.ToApp.Msgs) == atomic.LoadUint64(&c.FromLower.Msgs)
}
