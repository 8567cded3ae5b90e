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

// Package utls implements the "utls" hybrid transport: a server binds both
// a local (ux) and a TLS listener under one address; a client prefers the
// local path and falls back to TLS. The connection socket that results
// carries exactly one inner session at a time and proxies its attributes,
// presenting a unified address space that picks the cheap path whenever
// it is available.
package utls

import (
	"strings"
	"sync"

	"github.com/nabbar/xcm/internal/attr"
	"github.com/nabbar/xcm/transport"
	"github.com/nabbar/xcm/xcmerr"

	_ "github.com/nabbar/xcm/transport/tls"
	_ "github.com/nabbar/xcm/transport/ux"
)

func init() {
	transport.Register("utls", func() transport.VTable { return &vtable{} }, nil)
}

type vtable struct{}

func (v *vtable) PrivSize(transport.Kind) int { return 256 }

func (v *vtable) Init(env *transport.Env, kind transport.Kind) (transport.Session, xcmerr.Error) {
	uxProto, ok := transport.Lookup("ux")
	if !ok {
		return nil, xcmerr.New(xcmerr.CodeNoTransport)
	}
	tlsProto, ok := transport.Lookup("tls")
	if !ok {
		return nil, xcmerr.New(xcmerr.CodeNoTransport)
	}

	uxVT := uxProto.New()
	uxSess, xerr := uxVT.Init(env, kind)
	if xerr != nil {
		return nil, xerr
	}

	tlsVT := tlsProto.New()
	tlsSess, xerr := tlsVT.Init(env, kind)
	if xerr != nil {
		_ = uxVT.Close(uxSess)
		return nil, xerr
	}

	return &session{
		kind:    kind,
		env:     env,
		uxVT:    uxVT,
		uxSess:  uxSess,
		tlsVT:   tlsVT,
		tlsSess: tlsSess,
	}, nil
}

// inner identifies which of the two sub-transports is currently "active"
// for a connection socket: the one actually carrying traffic. A server
// socket has both inner sockets live simultaneously and has no single
// active one.
type inner uint8

const (
	innerNone inner = iota
	innerUX
	innerTLS
)

type session struct {
	kind transport.Kind
	env  *transport.Env

	uxVT   transport.VTable
	uxSess transport.Session

	tlsVT   transport.VTable
	tlsSess transport.Session

	mu     sync.Mutex
	active inner
}

func (s *session) activeVT() (transport.VTable, transport.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.active {
	case innerUX:
		return s.uxVT, s.uxSess, true
	case innerTLS:
		return s.tlsVT, s.tlsSess, true
	default:
		return nil, nil, false
	}
}

// splitAddr turns "host:port" into the ux and tls listener addresses this
// transport binds under.
func splitAddr(addr string) (uxAddr, tlsAddr string) {
	return addr, addr
}

// Connect prefers the local path and only falls back to TLS when the local
// endpoint is refused (no peer listening there); any other error from the
// ux attempt (invalid address, resource exhaustion, ...) is real and is
// returned unchanged rather than masked by a TLS retry.
func (v *vtable) Connect(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)
	uxAddr, tlsAddr := splitAddr(addr)

	uxErr := sess.uxVT.Connect(sess.uxSess, uxAddr)
	if uxErr == nil {
		sess.mu.Lock()
		sess.active = innerUX
		sess.mu.Unlock()
		_ = sess.tlsVT.Close(sess.tlsSess)
		return nil
	}
	if !xcmerr.IsCode(uxErr, xcmerr.CodeConnectionRefused) {
		return uxErr
	}

	if xerr := sess.tlsVT.Connect(sess.tlsSess, tlsAddr); xerr != nil {
		return xerr
	}
	sess.mu.Lock()
	sess.active = innerTLS
	sess.mu.Unlock()
	_ = sess.uxVT.Close(sess.uxSess)
	return nil
}

func (v *vtable) Server(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)
	uxAddr, tlsAddr := splitAddr(addr)

	if xerr := sess.tlsVT.Server(sess.tlsSess, tlsAddr); xerr != nil {
		return xerr
	}
	boundAddr, xerr := sess.tlsVT.GetLocalAddr(sess.tlsSess)
	if xerr != nil {
		return xerr
	}
	// Mirror the kernel-assigned TLS port into the local address so both
	// listeners share one port number in the unified address space.
	if idx := strings.LastIndex(boundAddr, ":"); idx >= 0 {
		uxAddr = uxAddr[:strings.LastIndex(uxAddr, ":")+1] + boundAddr[idx+1:]
	}

	if xerr := sess.uxVT.Server(sess.uxSess, uxAddr); xerr != nil {
		_ = sess.tlsVT.Close(sess.tlsSess)
		return xerr
	}
	return nil
}

func (v *vtable) Accept(conn transport.Session, srv transport.Session) xcmerr.Error {
	cs := conn.(*session)
	ss := srv.(*session)

	if xerr := cs.uxVT.Accept(cs.uxSess, ss.uxSess); xerr == nil {
		cs.mu.Lock()
		cs.active = innerUX
		cs.mu.Unlock()
		_ = cs.tlsVT.Close(cs.tlsSess)
		return nil
	}

	if xerr := cs.tlsVT.Accept(cs.tlsSess, ss.tlsSess); xerr != nil {
		return xerr
	}
	cs.mu.Lock()
	cs.active = innerTLS
	cs.mu.Unlock()
	_ = cs.uxVT.Close(cs.uxSess)
	return nil
}

func (v *vtable) Send(s transport.Session, buf []byte) (int, xcmerr.Error) {
	sess := s.(*session)
	vt, inner, ok := sess.activeVT()
	if !ok {
		return 0, xcmerr.New(xcmerr.CodeProtocolError)
	}
	return vt.Send(inner, buf)
}

func (v *vtable) Receive(s transport.Session, buf []byte) (int, xcmerr.Error) {
	sess := s.(*session)
	vt, inner, ok := sess.activeVT()
	if !ok {
		return 0, xcmerr.New(xcmerr.CodeProtocolError)
	}
	return vt.Receive(inner, buf)
}

func (v *vtable) Finish(s transport.Session) (bool, xcmerr.Error) {
	sess := s.(*session)
	if vt, inner, ok := sess.activeVT(); ok {
		return vt.Finish(inner)
	}
	// A server socket (no single active inner) still needs its TLS side
	// driven for in-progress handshakes; ux never has background work.
	return sess.tlsVT.Finish(sess.tlsSess)
}

func (v *vtable) Update(s transport.Session) xcmerr.Error {
	sess := s.(*session)
	if vt, inner, ok := sess.activeVT(); ok {
		return vt.Update(inner)
	}
	if xerr := sess.uxVT.Update(sess.uxSess); xerr != nil {
		return xerr
	}
	return sess.tlsVT.Update(sess.tlsSess)
}

func (v *vtable) Close(s transport.Session) xcmerr.Error {
	sess := s.(*session)
	_ = sess.uxVT.Close(sess.uxSess)
	_ = sess.tlsVT.Close(sess.tlsSess)
	return nil
}

func (v *vtable) Cleanup(s transport.Session) xcmerr.Error {
	sess := s.(*session)
	_ = sess.uxVT.Cleanup(sess.uxSess)
	_ = sess.tlsVT.Cleanup(sess.tlsSess)
	return nil
}

func (v *vtable) GetRemoteAddr(s transport.Session) (string, xcmerr.Error) {
	sess := s.(*session)
	vt, inner, ok := sess.activeVT()
	if !ok {
		return "", xcmerr.New(xcmerr.CodeProtocolError)
	}
	return vt.GetRemoteAddr(inner)
}

func (v *vtable) GetLocalAddr(s transport.Session) (string, xcmerr.Error) {
	sess := s.(*session)
	if vt, inner, ok := sess.activeVT(); ok {
		return vt.GetLocalAddr(inner)
	}
	return sess.tlsVT.GetLocalAddr(sess.tlsSess)
}

func (v *vtable) SetLocalAddr(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)
	if xerr := sess.uxVT.SetLocalAddr(sess.uxSess, addr); xerr != nil {
		return xerr
	}
	return sess.tlsVT.SetLocalAddr(sess.tlsSess, addr)
}

func (v *vtable) MaxMsg(s transport.Session) int64 {
	sess := s.(*session)
	if vt, inner, ok := sess.activeVT(); ok {
		return vt.MaxMsg(inner)
	}
	return sess.tlsVT.MaxMsg(sess.tlsSess)
}

// Attrs merges the active inner socket's attribute surface into the outer
// one: on a connection socket the outer xcm.transport attribute reports
// the real underlying tag ("ux" or "tls"), not "utls". A server socket has
// no active inner socket and adds nothing.
func (v *vtable) Attrs(s transport.Session) *attr.Surface {
	sess := s.(*session)
	vt, inner, ok := sess.activeVT()
	if !ok {
		return attr.NewSurface()
	}
	tag := "tls"
	if inner == sess.uxSess {
		tag = "ux"
	}
	return attr.NewSurface(attr.Attribute{
		Name: attr.NameTransport, Kind: attr.KindString, Mode: attr.ModeReadOnly,
		Get: func() (attr.Value, xcmerr.Error) {
			return attr.Value{Kind: attr.KindString, S: tag}, nil
		},
	}).Merge(vt.Attrs(inner))
}
