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

// Package xcm is the facade of the whole module: Socket is the
// one type applications construct, and every other package (transport/*,
// internal/*) exists to serve it. It owns the socket-id namespace, the
// blocking/non-blocking mediation on top of each transport's inherently
// non-blocking VTable, and the latched-error behavior: once a connection
// socket has failed, every subsequent operation on it returns the same
// error without re-attempting anything.
//
// Every built-in transport is imported here for its registration side
// effect, a static constructor table built with Go's own load-time init()
// hook.
package xcm

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/nabbar/xcm/ctl"
	"github.com/nabbar/xcm/internal/attr"
	"github.com/nabbar/xcm/internal/counters"
	"github.com/nabbar/xcm/internal/readiness"
	"github.com/nabbar/xcm/transport"
	"github.com/nabbar/xcm/xcmconfig"
	"github.com/nabbar/xcm/xcmerr"
	"github.com/nabbar/xcm/xcmlog"

	_ "github.com/nabbar/xcm/transport/sctp"
	_ "github.com/nabbar/xcm/transport/tcp"
	_ "github.com/nabbar/xcm/transport/tls"
	_ "github.com/nabbar/xcm/transport/utls"
	_ "github.com/nabbar/xcm/transport/ux"
)

// state is a socket's position in the connection lifecycle.
type state uint8

const (
	stateIdle state = iota
	stateConnecting
	stateBound
	stateConnected
	stateClosed
)

// idGen mints socket ids under one process-global mutex, used solely to
// mint unique socket identifiers, rather than reaching for sync/atomic.
var idGen struct {
	mu   sync.Mutex
	next uint64
}

func nextSocketID() uint64 {
	idGen.mu.Lock()
	defer idGen.mu.Unlock()
	idGen.next++
	return idGen.next
}

// log is the package-wide logger for ambient events that are not socket
// operation failures (those are returned to the caller, never logged) but
// still worth a trace: e.g. the introspection channel failing to bind.
var log = xcmlog.New(nil, "info")

// Socket is one XCM server or connection socket. The zero value is not
// usable; construct one with Connect or Server.
type Socket struct {
	id   uint64
	kind transport.Kind
	tag  string

	proto transport.Proto
	vt    transport.VTable
	sess  transport.Session
	env   *transport.Env

	cnt *counters.Counters
	reg readiness.Registry
	ctl *ctl.Channel

	mu          sync.Mutex
	st          state
	blocking    bool
	latched     xcmerr.Error
	cond        transport.Condition
	connectAddr string
}

// errPollInterrupted is what pollReadable returns when the underlying
// poll() call was itself interrupted by a signal (EINTR), as opposed to
// failing for a real reason (a bad fd, an out-of-resource condition). Only
// this specific case is surfaced to the application as CodeInterrupted.
var errPollInterrupted = errors.New("xcm: poll readiness descriptor interrupted")

// ID returns the socket's process-unique identifier, used to name its
// introspection control socket.
func (s *Socket) ID() uint64 { return s.id }

func newSocket(tag string, proto transport.Proto, kind transport.Kind) (*Socket, xcmerr.Error) {
	reg, err := readiness.New()
	if err != nil {
		return nil, xcmerr.Wrap(xcmerr.CodeResourceExhausted, err)
	}

	s := &Socket{
		id:       nextSocketID(),
		kind:     kind,
		tag:      tag,
		proto:    proto,
		cnt:      &counters.Counters{},
		reg:      reg,
		blocking: true,
	}
	s.env = &transport.Env{
		Kind:     kind,
		Counters: s.cnt,
		Registry: s.reg,
		Conditions: func() transport.Condition {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.cond
		},
	}

	s.vt = proto.New()
	sess, xerr := s.vt.Init(s.env, kind)
	if xerr != nil {
		_ = s.reg.Close()
		return nil, xerr
	}
	s.sess = sess

	// The introspection channel is best-effort: a socket with no control
	// directory, or one that lost a race on the control path, still works
	// for application traffic, it is simply not introspectable.
	if ch, err := ctl.New(xcmconfig.FromEnv().CtlDir, os.Getpid(), s.id, s.Attrs); err == nil {
		s.ctl = ch
	} else {
		log.With(xcmlog.Fields{"socket_id": s.id, "transport": tag}).Warnf("introspection channel unavailable: %v", err)
	}
	return s, nil
}

// serviceCtl spends a small, bounded amount of work answering pending
// introspection requests. Called opportunistically from within regular
// socket operations rather than from a dedicated goroutine:
// steps is larger while the calling operation is itself about to block
// (the socket is otherwise idle) and smaller while the application is
// actively driving the socket.
func (s *Socket) serviceCtl(steps int) {
	if s.ctl != nil {
		s.ctl.Service(steps)
	}
}

// Connect opens a connection socket against addr, whose leading "<tag>:"
// selects the transport. attrs, if non-nil, is
// applied to the transport's attribute surface after Init but before
// Connect, so transport-specific options (e.g. xcm.tcp_keepalive) take
// effect on the handshake itself.
func Connect(addr string, attrs map[string]attr.Value) (*Socket, xcmerr.Error) {
	proto, tail, ok := transport.ByAddress(addr)
	if !ok {
		return nil, xcmerr.New(xcmerr.CodeNoTransport)
	}

	s, xerr := newSocket(proto.Name, proto, transport.KindConnection)
	if xerr != nil {
		return nil, xerr
	}

	if xerr := s.applyAttrs(attrs); xerr != nil {
		return nil, xerr
	}

	s.mu.Lock()
	s.connectAddr = tail
	s.st = stateConnecting
	blocking := s.blocking
	s.mu.Unlock()

	xerr = s.driveConnectBlocking(blocking)
	if xerr != nil && !xcmerr.IsCode(xerr, xcmerr.CodeWouldBlock) {
		return nil, xerr
	}
	// A non-blocking caller gets back a valid handle even while the
	// connect is still in flight: matching xcm_connect(XCM_NONBLOCK),
	// which always returns immediately, leaving the socket connected,
	// partly connected, or in error, with Finish driving the rest.
	return s, nil
}

// driveConnect pumps a still-in-flight vtable Connect once. Idempotent:
// once st has left stateConnecting it is a no-op. A hard failure latches
// the socket exactly like any other operation error.
func (s *Socket) driveConnect() xcmerr.Error {
	s.mu.Lock()
	if s.st != stateConnecting {
		s.mu.Unlock()
		return nil
	}
	addr := s.connectAddr
	s.mu.Unlock()

	xerr := s.vt.Connect(s.sess, addr)
	if xerr == nil {
		s.mu.Lock()
		s.st = stateConnected
		s.mu.Unlock()
		return nil
	}
	if xcmerr.IsCode(xerr, xcmerr.CodeWouldBlock) {
		return xerr
	}

	s.mu.Lock()
	s.latched = xerr
	s.st = stateClosed
	s.mu.Unlock()
	return xerr
}

// driveConnectBlocking resolves a still-connecting socket before an
// operation that needs it connected proceeds. In blocking mode it waits on
// writability and retries until the connect resolves one way or the other;
// in non-blocking mode it returns the first would-block unchanged.
func (s *Socket) driveConnectBlocking(blocking bool) xcmerr.Error {
	for {
		xerr := s.driveConnect()
		if xerr == nil {
			return nil
		}
		if !xcmerr.IsCode(xerr, xcmerr.CodeWouldBlock) {
			return xerr
		}
		if !blocking {
			return xerr
		}
		if werr := s.waitWritable(); werr != nil {
			return werr
		}
	}
}

// Server opens a server socket bound to addr.
func Server(addr string, attrs map[string]attr.Value) (*Socket, xcmerr.Error) {
	proto, tail, ok := transport.ByAddress(addr)
	if !ok {
		return nil, xcmerr.New(xcmerr.CodeNoTransport)
	}

	s, xerr := newSocket(proto.Name, proto, transport.KindServer)
	if xerr != nil {
		return nil, xerr
	}

	if xerr := s.applyAttrs(attrs); xerr != nil {
		return nil, xerr
	}

	if xerr := s.vt.Server(s.sess, tail); xerr != nil {
		s.mu.Lock()
		s.latched = xerr
		s.st = stateClosed
		s.mu.Unlock()
		return nil, xerr
	}

	s.mu.Lock()
	s.st = stateBound
	s.mu.Unlock()
	return s, nil
}

// Accept dequeues one pending connection from a server socket. In
// blocking mode (the default) it waits for one to arrive; in non-blocking
// mode it returns a would-block error immediately if none is pending.
func (srv *Socket) Accept() (*Socket, xcmerr.Error) {
	srv.mu.Lock()
	if srv.latched != nil {
		err := srv.latched
		srv.mu.Unlock()
		return nil, err
	}
	if srv.st != stateBound {
		srv.mu.Unlock()
		return nil, xcmerr.New(xcmerr.CodeProtocolError)
	}
	blocking := srv.blocking
	srv.cond |= transport.CondAcceptable
	srv.mu.Unlock()

	srv.serviceCtl(ctl.ActiveSteps)

	conn, xerr := newSocket(srv.tag, srv.proto, transport.KindConnection)
	if xerr != nil {
		return nil, xerr
	}

	for {
		xerr := srv.vt.Accept(conn.sess, srv.sess)
		if xerr == nil {
			conn.mu.Lock()
			conn.st = stateConnected
			conn.mu.Unlock()
			return conn, nil
		}
		if !xcmerr.IsCode(xerr, xcmerr.CodeWouldBlock) || !blocking {
			_ = conn.Close()
			return nil, xerr
		}
		if werr := srv.waitReadable(srv.sess); werr != nil {
			_ = conn.Close()
			return nil, werr
		}
	}
}

// Send hands buf to the underlying transport. In blocking mode it waits
// until the socket is sendable instead of returning would-block.
func (s *Socket) Send(buf []byte) (int, xcmerr.Error) {
	s.mu.Lock()
	if s.latched != nil {
		err := s.latched
		s.mu.Unlock()
		return 0, err
	}
	blocking := s.blocking
	connecting := s.st == stateConnecting
	s.cond |= transport.CondSendable
	s.mu.Unlock()

	s.serviceCtl(ctl.ActiveSteps)

	if connecting {
		if xerr := s.driveConnectBlocking(blocking); xerr != nil {
			return 0, xerr
		}
	}

	for {
		n, xerr := s.vt.Send(s.sess, buf)
		if xerr == nil {
			return n, nil
		}
		if !xcmerr.IsCode(xerr, xcmerr.CodeWouldBlock) {
			s.latch(xerr)
			return 0, xerr
		}
		if !blocking {
			return 0, xerr
		}
		if werr := s.waitWritable(); werr != nil {
			return 0, werr
		}
	}
}

// Receive copies one complete message into buf, blocking for one to
// arrive unless the socket is in non-blocking mode. A clean (0, nil)
// return means the peer closed the connection.
func (s *Socket) Receive(buf []byte) (int, xcmerr.Error) {
	s.mu.Lock()
	if s.latched != nil {
		err := s.latched
		s.mu.Unlock()
		return 0, err
	}
	blocking := s.blocking
	connecting := s.st == stateConnecting
	s.cond |= transport.CondReceivable
	s.mu.Unlock()

	s.serviceCtl(ctl.ActiveSteps)

	if connecting {
		if xerr := s.driveConnectBlocking(blocking); xerr != nil {
			return 0, xerr
		}
	}

	for {
		n, xerr := s.vt.Receive(s.sess, buf)
		if xerr == nil {
			return n, nil
		}
		if !xcmerr.IsCode(xerr, xcmerr.CodeWouldBlock) {
			s.latch(xerr)
			return 0, xerr
		}
		if !blocking {
			return 0, xerr
		}
		if werr := s.waitReadable(s.sess); werr != nil {
			return 0, werr
		}
	}
}

// Finish drives one step of whatever background work the transport still
// has pending (handshake completion, buffered send drain). It returns
// true while work remains.
func (s *Socket) Finish() (bool, xcmerr.Error) {
	s.mu.Lock()
	if s.latched != nil {
		err := s.latched
		s.mu.Unlock()
		return false, err
	}
	connecting := s.st == stateConnecting
	s.mu.Unlock()

	s.serviceCtl(ctl.ActiveSteps)

	if connecting {
		if xerr := s.driveConnect(); xerr != nil {
			if xcmerr.IsCode(xerr, xcmerr.CodeWouldBlock) {
				return true, nil
			}
			return false, xerr
		}
	}

	pending, xerr := s.vt.Finish(s.sess)
	if xerr != nil {
		s.latch(xerr)
		return false, xerr
	}
	return pending, nil
}

// SetBlocking switches between blocking (the default) and non-blocking
// mediation of Accept/Send/Receive.
func (s *Socket) SetBlocking(blocking bool) {
	s.mu.Lock()
	s.blocking = blocking
	s.mu.Unlock()
}

// Close releases the socket's OS resources, including, for the owning
// side of the process that created it, anything the transport itself
// owns (e.g. an abstract-namespace unlink). Use Cleanup on the non-owning
// side of a fork instead.
func (s *Socket) Close() xcmerr.Error {
	s.mu.Lock()
	if s.st == stateClosed {
		s.mu.Unlock()
		return nil
	}
	s.st = stateClosed
	s.mu.Unlock()

	if s.ctl != nil {
		_ = s.ctl.Close()
	}
	xerr := s.vt.Close(s.sess)
	_ = s.reg.Close()
	return xerr
}

// Cleanup releases only process-local resources, for use by the
// non-designated-owner side of a socket that has survived a fork: exactly
// one of the two processes is the designated owner and calls Close, the
// other calls only Cleanup.
func (s *Socket) Cleanup() xcmerr.Error {
	s.mu.Lock()
	if s.st == stateClosed {
		s.mu.Unlock()
		return nil
	}
	s.st = stateClosed
	s.mu.Unlock()

	if s.ctl != nil {
		_ = s.ctl.Close()
	}
	xerr := s.vt.Cleanup(s.sess)
	_ = s.reg.Close()
	return xerr
}

func (s *Socket) latch(err xcmerr.Error) {
	s.mu.Lock()
	if s.latched == nil {
		s.latched = err
	}
	s.mu.Unlock()
}

// waitReadable blocks until sess's registered descriptors (or a receive
// timeout) make the socket's readiness descriptor readable, then gives the
// transport a chance to drive any pending background work before the
// caller retries its operation. A genuine signal interruption (EINTR) is
// reported as CodeInterrupted; any other poll failure (a bad fd, the
// transport's own Update call failing) is a resource problem, not an
// interruption, and is reported as such.
func (s *Socket) waitReadable(sess transport.Session) xcmerr.Error {
	if xerr := s.vt.Update(sess); xerr != nil {
		return xcmerr.Wrap(xcmerr.CodeResourceExhausted, xerr)
	}
	if err := pollReadable(s.reg.Fd(), 5*time.Second); err != nil {
		if errors.Is(err, errPollInterrupted) {
			return xcmerr.New(xcmerr.CodeInterrupted)
		}
		return xcmerr.Wrap(xcmerr.CodeResourceExhausted, err)
	}
	s.reg.Drain()
	_, _ = s.vt.Finish(sess)
	s.serviceCtl(ctl.IdleSteps)
	return nil
}

func (s *Socket) waitWritable() xcmerr.Error {
	return s.waitReadable(s.sess)
}

// applyAttrs writes caller-supplied initial values into the transport's
// attribute surface before Connect/Server runs.
func (s *Socket) applyAttrs(attrs map[string]attr.Value) xcmerr.Error {
	if len(attrs) == 0 {
		return nil
	}
	surf := s.Attrs()
	for name, v := range attrs {
		a, ok := surf.Get(name)
		if !ok || a.Set == nil {
			return xcmerr.Newf(xcmerr.CodeInvalidInput, "xcm: no such writable attribute %q", name)
		}
		if xerr := a.Set(v); xerr != nil {
			return xerr
		}
	}
	return nil
}

// Attrs returns the full attribute surface: the generic attribute set
// overlaid with the active transport's own attributes.
func (s *Socket) Attrs() *attr.Surface {
	return attr.NewSurface(s.genericAttrs()...).Merge(s.vt.Attrs(s.sess))
}
