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

// Package readiness implements the per-socket readiness registry: each
// socket owns one OS "readiness descriptor", an epoll-style aggregator
// that the application itself can wait on (with its own poll/epoll/select
// loop, or the blocking helpers in the facade). Whatever OS descriptors a
// transport needs to monitor are registered here with readable/writable
// interest; the registry re-derives a single readiness signal from them.
//
// On Linux the registry is a real epoll instance, so the readiness
// descriptor is itself poll()-able by the application. Elsewhere there is
// no syscall that makes an arbitrary descriptor set pollable as one fd, so
// the registry falls back to a self-pipe: a background goroutine polls the
// registered descriptors and writes a byte to the pipe whenever one of
// them becomes interesting.
package readiness

// Event is the interest (or, from Wait, the occurrence) of read/write
// readiness on one descriptor.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
}

// Registry is the per-socket wait set plus its single materialized
// readiness descriptor.
type Registry interface {
	// Fd returns the OS handle the application (or the blocking facade
	// helpers) can poll/select/epoll on. Stable for the registry's
	// lifetime.
	Fd() int

	// Add registers fd with the given interest. Use Modify for an fd that
	// is already registered: the epoll registry rejects a second Add, the
	// self-pipe fallback replaces the earlier interest.
	Add(fd int, readable, writable bool) error

	// Modify changes the interest for an already-registered fd.
	Modify(fd int, readable, writable bool) error

	// Delete removes fd from the wait set. A no-op if fd isn't registered.
	Delete(fd int) error

	// Drain clears the "the readiness descriptor is currently readable"
	// signal after the application (or Wait) has observed it, so it does
	// not spuriously re-fire. Implementations for which the readiness
	// descriptor is a real epoll fd are naturally level-triggered and
	// Drain is a no-op; the self-pipe fallback must consume the pending
	// byte(s).
	Drain()

	// Close releases the registry's own OS resources. It does not close
	// the fds that were registered with it; those belong to the
	// transport.
	Close() error
}

// New builds a Registry using the best mechanism for the current OS.
func New() (Registry, error) {
	return newRegistry()
}
