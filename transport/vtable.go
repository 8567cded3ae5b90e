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

// Package transport defines the uniform contract every concrete transport
// (UX, UXF, TCP, TLS, UTLS, SCTP) implements, and the protocol registry
// transports join at package-init time.
//
// Rather than over-allocating a socket struct with a transport-specific
// trailer sized by a fixed priv_size, a Go VTable returns a boxed Session
// value holding whatever state the transport needs; the core never
// inspects it.
package transport

import (
	"github.com/nabbar/xcm/internal/attr"
	"github.com/nabbar/xcm/internal/counters"
	"github.com/nabbar/xcm/internal/readiness"
	"github.com/nabbar/xcm/xcmerr"
)

// Kind distinguishes a server socket (accepts connections, carries no
// message state) from a connection socket (carries messages in both
// directions).
type Kind uint8

const (
	KindServer Kind = iota
	KindConnection
)

// Condition is the application-declared interest bitset: which of
// sendable/receivable/acceptable the caller currently cares about.
type Condition uint8

const (
	CondSendable Condition = 1 << iota
	CondReceivable
	CondAcceptable
)

// Has reports whether c includes every bit set in want.
func (c Condition) Has(want Condition) bool { return c&want == want }

// Session is the opaque, transport-owned state backing one socket. The
// core holds it behind this interface and never reaches into it; it is the
// Go analogue of the C trailer, but heap-allocated and owned normally
// rather than laid out after the socket struct.
type Session interface {
	// Session has no methods. The readiness registry a session's
	// descriptors go into is Env.Registry, built by the core at socket
	// creation and handed to the transport through Init, so UTLS can share
	// one registry across both inner sockets: inner sockets share the outer
	// socket's readiness descriptor rather than each keeping their own.
}

// Env is the fixed, core-owned state every transport operation needs:
// counters to update, the registry to (de)register descriptors in, and the
// condition mask currently in effect. The core constructs one Env per
// socket and passes it to every VTable call, instead of the transport
// reaching back into a core-defined Socket type (which would create an
// import cycle between this package and the facade).
type Env struct {
	Kind       Kind
	Counters   *counters.Counters
	Registry   readiness.Registry
	Conditions func() Condition
}

// VTable is the uniform operation set every transport implements. Every
// method may be called only where the corresponding state-machine
// transition allows it; the facade enforces that. Each transport maps the
// OS errors it meets into the xcmerr taxonomy before returning them.
type VTable interface {
	// PrivSize is a capacity hint for pooling/logging only; it has no
	// layout meaning in this module, since Session is a boxed Go value
	// rather than a sized trailer.
	PrivSize(kind Kind) int

	// Init constructs the transport-private Session for a freshly created
	// socket. May fail (e.g. a certificate file is missing).
	Init(env *Env, kind Kind) (Session, xcmerr.Error)

	// Connect initiates a connection-kind session against addr. May leave
	// the socket in the `connecting` state for the caller to drive via
	// Finish.
	Connect(s Session, addr string) xcmerr.Error

	// Server binds and listens a server-kind session on addr.
	Server(s Session, addr string) xcmerr.Error

	// Accept pulls one pending connection off a server-kind session into a
	// freshly Init'd connection-kind session conn. May leave conn in
	// `connecting`.
	Accept(conn Session, srv Session) xcmerr.Error

	// Send attempts to hand buf to the transport. Returns the number of
	// bytes accepted (always len(buf) on success; spec forbids partial
	// application-visible sends) or a would-block/capacity-exceeded error.
	Send(s Session, buf []byte) (int, xcmerr.Error)

	// Receive attempts to copy one complete message into buf. Returns
	// (0, nil) on a clean peer-closed sentinel, the message
	// length on success, or an error.
	Receive(s Session, buf []byte) (int, xcmerr.Error)

	// Finish drives one step of any background task (handshake, send
	// drain, diagnostic receive). Returns true while there is still work
	// pending.
	Finish(s Session) (bool, xcmerr.Error)

	// Update reconciles the registry's wait set with the current
	// condition mask and internal buffering state.
	Update(s Session) xcmerr.Error

	// Close releases OS resources and, where meaningful, signals the peer.
	Close(s Session) xcmerr.Error

	// Cleanup releases only process-local resources, for the non-owning
	// side of a fork.
	Cleanup(s Session) xcmerr.Error

	// GetRemoteAddr / GetLocalAddr / SetLocalAddr implement address
	// reflection. SetLocalAddr applies only before Connect/Server; the
	// transports reject it with access-denied once the session is bound or
	// connected.
	GetRemoteAddr(s Session) (string, xcmerr.Error)
	GetLocalAddr(s Session) (string, xcmerr.Error)
	SetLocalAddr(s Session, addr string) xcmerr.Error

	// MaxMsg returns the per-connection message size ceiling.
	MaxMsg(s Session) int64

	// Attrs returns the transport-specific attribute surface to extend
	// the generic one.
	Attrs(s Session) *attr.Surface
}

// Constructor builds the zero-state VTable implementation for a transport.
// Transports are typically stateless singletons; Constructor exists so a
// transport that does need shared state (e.g. a certificate-directory
// watcher) can build it lazily on first use instead of at package init.
type Constructor func() VTable
