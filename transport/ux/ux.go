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

// Package ux implements the local sequenced-packet transport under both of
// its registered tags: "ux" (Linux abstract namespace, address lifetime
// tied to the process) and "uxf" (a filesystem path, unlinked on server
// close). Both ride net's "unixpacket" network, which is SOCK_SEQPACKET
// under the hood, a connection-oriented, message-preserving local socket,
// with no custom syscalls required.
package ux

import (
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/nabbar/xcm/internal/attr"
	"github.com/nabbar/xcm/transport"
	"github.com/nabbar/xcm/xcmerr"
)

func init() {
	transport.Register("ux", func() transport.VTable { return &vtable{filesystem: false} }, nil)
	transport.Register("uxf", func() transport.VTable { return &vtable{filesystem: true} }, nil)
}

// maxMsg mirrors the common Linux SOCK_SEQPACKET datagram ceiling for
// AF_UNIX; the OS enforces the real limit, this is only the value reported
// through xcm.max_msg_size absent a way to query it per-socket.
const maxMsg = 212992

type vtable struct {
	filesystem bool
}

func (v *vtable) PrivSize(transport.Kind) int { return 256 }

func (v *vtable) Init(env *transport.Env, kind transport.Kind) (transport.Session, xcmerr.Error) {
	return &session{kind: kind, filesystem: v.filesystem, env: env}, nil
}

type session struct {
	kind       transport.Kind
	filesystem bool
	env        *transport.Env

	mu   sync.Mutex
	ln   *net.UnixListener
	conn *net.UnixConn

	localAddr  string
	remoteAddr string
	unlinkPath string

	peerCred Cred
	haveCred bool
}

// addrName maps the address tail (already stripped of its "ux:"/"uxf:"
// prefix by the protocol registry) to the name net.UnixAddr expects: a
// leading "@" selects the Linux abstract namespace, matching Go's own
// convention for autobind/abstract unix sockets.
func (s *session) addrName(tail string) string {
	if s.filesystem {
		return tail
	}
	return "@" + tail
}

func (s *session) tag() string {
	if s.filesystem {
		return "uxf"
	}
	return "ux"
}

func netErrIsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func (v *vtable) Connect(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)
	raddr := &net.UnixAddr{Net: "unixpacket", Name: sess.addrName(addr)}

	conn, err := net.DialUnix("unixpacket", nil, raddr)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return xcmerr.WithOp(xcmerr.New(xcmerr.CodeConnectionRefused), "connect")
		}
		if errors.Is(err, os.ErrPermission) {
			return xcmerr.WithOp(xcmerr.New(xcmerr.CodeAccessDenied), "connect")
		}
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeConnectionRefused, err), "connect")
	}

	sess.mu.Lock()
	sess.conn = conn
	sess.remoteAddr = sess.tag() + ":" + addr
	if la, ok := conn.LocalAddr().(*net.UnixAddr); ok {
		sess.localAddr = sess.tag() + ":" + la.Name
	}
	sess.mu.Unlock()

	sess.loadPeerCred()
	return nil
}

func (v *vtable) Server(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)
	laddr := &net.UnixAddr{Net: "unixpacket", Name: sess.addrName(addr)}

	ln, err := net.ListenUnix("unixpacket", laddr)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return xcmerr.WithOp(xcmerr.New(xcmerr.CodeAddressInUse), "server")
		}
		if errors.Is(err, os.ErrPermission) {
			return xcmerr.WithOp(xcmerr.New(xcmerr.CodeAccessDenied), "server")
		}
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeInvalidInput, err), "server")
	}

	sess.mu.Lock()
	sess.ln = ln
	sess.localAddr = sess.tag() + ":" + addr
	if sess.filesystem {
		sess.unlinkPath = addr
	}
	sess.mu.Unlock()
	return nil
}

func (v *vtable) Accept(conn transport.Session, srv transport.Session) xcmerr.Error {
	cs := conn.(*session)
	ss := srv.(*session)

	ss.mu.Lock()
	ln := ss.ln
	ss.mu.Unlock()
	if ln == nil {
		return xcmerr.New(xcmerr.CodeProtocolError)
	}

	_ = ln.SetDeadline(time.Now())
	c, err := ln.AcceptUnix()
	_ = ln.SetDeadline(time.Time{})
	if err != nil {
		if netErrIsTimeout(err) {
			return xcmerr.New(xcmerr.CodeWouldBlock)
		}
		return xcmerr.Wrap(xcmerr.CodeConnectionReset, err)
	}

	cs.mu.Lock()
	cs.conn = c
	cs.localAddr = ss.localAddr
	if ra, ok := c.RemoteAddr().(*net.UnixAddr); ok && ra.Name != "" {
		cs.remoteAddr = cs.tag() + ":" + ra.Name
	} else {
		cs.remoteAddr = cs.tag() + ":"
	}
	cs.mu.Unlock()

	cs.loadPeerCred()
	return nil
}

func (v *vtable) Send(s transport.Session, buf []byte) (int, xcmerr.Error) {
	sess := s.(*session)
	if len(buf) == 0 {
		return 0, xcmerr.New(xcmerr.CodeInvalidInput)
	}
	if len(buf) > maxMsg {
		return 0, xcmerr.New(xcmerr.CodeCapacityExceeded)
	}

	sess.mu.Lock()
	conn := sess.conn
	sess.mu.Unlock()
	if conn == nil {
		return 0, xcmerr.New(xcmerr.CodeProtocolError)
	}

	_ = conn.SetWriteDeadline(time.Now())
	n, err := conn.Write(buf)
	_ = conn.SetWriteDeadline(time.Time{})
	if err != nil {
		if netErrIsTimeout(err) {
			return 0, xcmerr.New(xcmerr.CodeWouldBlock)
		}
		return 0, xcmerr.Wrap(xcmerr.CodeConnectionReset, err)
	}

	sess.env.Counters.AddFromApp(n)
	sess.env.Counters.AddToLower(n)
	return n, nil
}

func (v *vtable) Receive(s transport.Session, buf []byte) (int, xcmerr.Error) {
	sess := s.(*session)

	sess.mu.Lock()
	conn := sess.conn
	sess.mu.Unlock()
	if conn == nil {
		return 0, xcmerr.New(xcmerr.CodeProtocolError)
	}

	_ = conn.SetReadDeadline(time.Now())
	n, err := conn.Read(buf)
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		if netErrIsTimeout(err) {
			return 0, xcmerr.New(xcmerr.CodeWouldBlock)
		}
		if errors.Is(err, os.ErrClosed) {
			return 0, xcmerr.New(xcmerr.CodeProtocolError)
		}
		return 0, xcmerr.Wrap(xcmerr.CodeConnectionReset, err)
	}

	sess.env.Counters.AddFromLower(n)
	sess.env.Counters.AddToApp(n)
	return n, nil
}

// Finish is a no-op: a SOCK_SEQPACKET connect/accept completes synchronously
// once the syscall returns, there is no handshake to drive in the
// background the way TLS needs one.
func (v *vtable) Finish(transport.Session) (bool, xcmerr.Error) { return false, nil }

func (v *vtable) Update(s transport.Session) xcmerr.Error {
	sess := s.(*session)
	fd, ok := sess.rawFD()
	if !ok {
		return nil
	}

	cond := sess.env.Conditions()
	readable := cond.Has(transport.CondReceivable) || cond.Has(transport.CondAcceptable)
	writable := cond.Has(transport.CondSendable)

	if err := sess.env.Registry.Modify(fd, readable, writable); err != nil {
		if err2 := sess.env.Registry.Add(fd, readable, writable); err2 != nil {
			return xcmerr.Wrap(xcmerr.CodeResourceExhausted, err2)
		}
	}
	return nil
}

func (v *vtable) Close(s transport.Session) xcmerr.Error {
	sess := s.(*session)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.conn != nil {
		_ = sess.conn.Close()
	}
	if sess.ln != nil {
		_ = sess.ln.Close()
	}
	if sess.filesystem && sess.unlinkPath != "" {
		_ = os.Remove(sess.unlinkPath)
	}
	return nil
}

// Cleanup releases only the process-local fd copies on the non-owning side
// of a fork, without unlinking the filesystem path the owning process still
// needs.
func (v *vtable) Cleanup(s transport.Session) xcmerr.Error {
	sess := s.(*session)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.conn != nil {
		_ = sess.conn.Close()
	}
	if sess.ln != nil {
		_ = sess.ln.Close()
	}
	return nil
}

func (v *vtable) GetRemoteAddr(s transport.Session) (string, xcmerr.Error) {
	sess := s.(*session)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.kind != transport.KindConnection {
		return "", xcmerr.New(xcmerr.CodeProtocolError)
	}
	return sess.remoteAddr, nil
}

func (v *vtable) GetLocalAddr(s transport.Session) (string, xcmerr.Error) {
	sess := s.(*session)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.localAddr, nil
}

func (v *vtable) SetLocalAddr(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.conn != nil || sess.ln != nil {
		return xcmerr.New(xcmerr.CodeAccessDenied)
	}
	sess.localAddr = sess.tag() + ":" + addr
	return nil
}

func (v *vtable) MaxMsg(transport.Session) int64 { return maxMsg }

func (v *vtable) Attrs(s transport.Session) *attr.Surface {
	sess := s.(*session)
	surf := attr.NewSurface()

	if sess.kind != transport.KindConnection {
		return surf
	}

	surf.Add(
		attr.Attribute{
			Name: "xcm.peer_pid", Kind: attr.KindInt64, Mode: attr.ModeReadOnly,
			Get: func() (attr.Value, xcmerr.Error) {
				sess.mu.Lock()
				defer sess.mu.Unlock()
				if !sess.haveCred {
					return attr.Value{}, xcmerr.New(xcmerr.CodeNoSuchName)
				}
				return attr.Value{Kind: attr.KindInt64, I: int64(sess.peerCred.PID)}, nil
			},
		},
		attr.Attribute{
			Name: "xcm.peer_uid", Kind: attr.KindInt64, Mode: attr.ModeReadOnly,
			Get: func() (attr.Value, xcmerr.Error) {
				sess.mu.Lock()
				defer sess.mu.Unlock()
				if !sess.haveCred {
					return attr.Value{}, xcmerr.New(xcmerr.CodeNoSuchName)
				}
				return attr.Value{Kind: attr.KindInt64, I: int64(sess.peerCred.UID)}, nil
			},
		},
		attr.Attribute{
			Name: "xcm.peer_gid", Kind: attr.KindInt64, Mode: attr.ModeReadOnly,
			Get: func() (attr.Value, xcmerr.Error) {
				sess.mu.Lock()
				defer sess.mu.Unlock()
				if !sess.haveCred {
					return attr.Value{}, xcmerr.New(xcmerr.CodeNoSuchName)
				}
				return attr.Value{Kind: attr.KindInt64, I: int64(sess.peerCred.GID)}, nil
			},
		},
	)
	return surf
}

func (s *session) loadPeerCred() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	cred, err := peerCred(conn)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.peerCred = cred
	s.haveCred = true
	s.mu.Unlock()
}

func (s *session) rawFD() (int, bool) {
	s.mu.Lock()
	conn := s.conn
	ln := s.ln
	s.mu.Unlock()

	var rc syscall.RawConn
	var err error
	switch {
	case conn != nil:
		rc, err = conn.SyscallConn()
	case ln != nil:
		rc, err = ln.SyscallConn()
	default:
		return 0, false
	}
	if err != nil {
		return 0, false
	}

	var fd int
	if ctrlErr := rc.Control(func(h uintptr) { fd = int(h) }); ctrlErr != nil {
		return 0, false
	}
	return fd, true
}
