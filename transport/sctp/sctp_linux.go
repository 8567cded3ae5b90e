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

//go:build linux && sctp

// Package sctp implements the "sctp" transport behind the sctp build tag:
// one-to-one style SCTP sockets opened with raw syscalls (the kernel module
// is frequently absent in containers, hence gating this out of the default
// build). Message boundaries are preserved by the OS itself, so unlike tcp
// and tls this transport is "trivial" like ux: one send is one receive,
// with no framing engine in between.
package sctp

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/xcm/internal/attr"
	"github.com/nabbar/xcm/transport"
	"github.com/nabbar/xcm/xcmerr"
)

func init() {
	transport.Register("sctp", func() transport.VTable { return &vtable{} }, nil)
}

// defaultMaxMsg mirrors a conservative SCTP_MAXSEG-scale default; a real
// deployment would read SCTP_MAXSEG off the socket, but golang.org/x/sys
// does not expose the SCTP-specific getsockopt struct layouts, so this
// stays a fixed ceiling until that lands upstream.
const defaultMaxMsg = 1 << 16

type vtable struct{}

func (v *vtable) PrivSize(transport.Kind) int { return 256 }

func (v *vtable) Init(env *transport.Env, kind transport.Kind) (transport.Session, xcmerr.Error) {
	return &session{kind: kind, env: env, maxMsg: defaultMaxMsg}, nil
}

type session struct {
	kind   transport.Kind
	env    *transport.Env
	maxMsg int64

	mu   sync.Mutex
	ln   net.Listener
	conn net.Conn

	localAddr  string
	remoteAddr string
}

func resolveTCPLike(addr string) (*unix.SockaddrInet4, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return sa, nil
}

func (v *vtable) Connect(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)

	sa, err := resolveTCPLike(addr)
	if err != nil {
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeInvalidInput, err), "connect")
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_SCTP)
	if err != nil {
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeResourceExhausted, err), "connect")
	}
	if err := unix.Connect(fd, sa); err != nil {
		_ = unix.Close(fd)
		if errors.Is(err, unix.ECONNREFUSED) {
			return xcmerr.WithOp(xcmerr.New(xcmerr.CodeConnectionRefused), "connect")
		}
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeConnectionRefused, err), "connect")
	}

	conn, err := adopt(fd, "xcm-sctp-conn")
	if err != nil {
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeResourceExhausted, err), "connect")
	}

	sess.mu.Lock()
	sess.conn = conn
	sess.localAddr = "sctp:" + conn.LocalAddr().String()
	sess.remoteAddr = "sctp:" + conn.RemoteAddr().String()
	sess.mu.Unlock()
	return nil
}

func (v *vtable) Server(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)

	sa, err := resolveTCPLike(addr)
	if err != nil {
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeInvalidInput, err), "server")
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_SCTP)
	if err != nil {
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeResourceExhausted, err), "server")
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		if errors.Is(err, unix.EADDRINUSE) {
			return xcmerr.WithOp(xcmerr.New(xcmerr.CodeAddressInUse), "server")
		}
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeAddressInUse, err), "server")
	}
	if err := unix.Listen(fd, 64); err != nil {
		_ = unix.Close(fd)
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeResourceExhausted, err), "server")
	}

	ln, err := adoptListener(fd, "xcm-sctp-listener")
	if err != nil {
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeResourceExhausted, err), "server")
	}

	sess.mu.Lock()
	sess.ln = ln
	sess.localAddr = "sctp:" + ln.Addr().String()
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

	type deadliner interface{ SetDeadline(time.Time) error }
	if dl, ok := ln.(deadliner); ok {
		_ = dl.SetDeadline(time.Now())
		defer func() { _ = dl.SetDeadline(time.Time{}) }()
	}

	raw, err := ln.Accept()
	if err != nil {
		if netErrIsTimeout(err) {
			return xcmerr.New(xcmerr.CodeWouldBlock)
		}
		return xcmerr.Wrap(xcmerr.CodeConnectionAborted, err)
	}

	cs.mu.Lock()
	cs.conn = raw
	cs.localAddr = "sctp:" + raw.LocalAddr().String()
	cs.remoteAddr = "sctp:" + raw.RemoteAddr().String()
	cs.mu.Unlock()
	return nil
}

func netErrIsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (v *vtable) Send(s transport.Session, buf []byte) (int, xcmerr.Error) {
	sess := s.(*session)
	sess.mu.Lock()
	conn := sess.conn
	sess.mu.Unlock()
	if conn == nil {
		return 0, xcmerr.New(xcmerr.CodeProtocolError)
	}
	if len(buf) == 0 {
		return 0, xcmerr.New(xcmerr.CodeInvalidInput)
	}
	if int64(len(buf)) > sess.maxMsg {
		return 0, xcmerr.New(xcmerr.CodeCapacityExceeded)
	}

	_ = conn.SetWriteDeadline(time.Now())
	defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()

	n, err := conn.Write(buf)
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
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	n, err := conn.Read(buf)
	if err != nil {
		if netErrIsTimeout(err) {
			return 0, xcmerr.New(xcmerr.CodeWouldBlock)
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, xcmerr.New(xcmerr.CodeWouldBlock)
		}
		return 0, nil
	}
	sess.env.Counters.AddFromLower(n)
	sess.env.Counters.AddToApp(n)
	return n, nil
}

func (v *vtable) Finish(transport.Session) (bool, xcmerr.Error) { return false, nil }

func (v *vtable) Update(s transport.Session) xcmerr.Error {
	sess := s.(*session)
	sess.mu.Lock()
	conn := sess.conn
	ln := sess.ln
	sess.mu.Unlock()

	var fd int
	var ok bool
	switch {
	case conn != nil:
		fd, ok = rawFD(conn)
	case ln != nil:
		fd, ok = rawFDListener(ln)
	}
	if !ok {
		return nil
	}

	cond := sess.env.Conditions()
	readable := cond.Has(transport.CondAcceptable) || cond.Has(transport.CondReceivable)
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
	return nil
}

func (v *vtable) Cleanup(s transport.Session) xcmerr.Error { return v.Close(s) }

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
	sess.localAddr = "sctp:" + addr
	return nil
}

func (v *vtable) MaxMsg(s transport.Session) int64 {
	return s.(*session).maxMsg
}

func (v *vtable) Attrs(transport.Session) *attr.Surface {
	return attr.NewSurface()
}
