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

// Package tcp implements the "tcp" transport: the framed-stream engine of
// internal/framing laid directly over a *net.TCPConn, with keepalive and
// TCP_USER_TIMEOUT exposed as read-write attributes.
package tcp

import (
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/nabbar/xcm/internal/attr"
	"github.com/nabbar/xcm/internal/framing"
	"github.com/nabbar/xcm/transport"
	"github.com/nabbar/xcm/xcmerr"
)

func init() {
	transport.Register("tcp", func() transport.VTable { return &vtable{} }, nil)
}

// DefaultMaxMsg is the per-connection message size ceiling absent any
// negotiation; the framed-stream header reserves 32 bits for the length so
// this is an implementation choice, not a protocol limit.
const DefaultMaxMsg = 1 << 20

const defaultKeepaliveInterval = 30 * time.Second

type vtable struct{}

func (v *vtable) PrivSize(transport.Kind) int { return 256 }

func (v *vtable) Init(env *transport.Env, kind transport.Kind) (transport.Session, xcmerr.Error) {
	return &session{
		kind:         kind,
		env:          env,
		maxMsg:       DefaultMaxMsg,
		keepaliveOn:  true,
		keepaliveIvl: defaultKeepaliveInterval,
	}, nil
}

type session struct {
	kind   transport.Kind
	env    *transport.Env
	maxMsg int64

	mu     sync.Mutex
	ln     *net.TCPListener
	conn   *net.TCPConn
	engine *framing.Engine

	localAddr  string
	remoteAddr string

	keepaliveOn   bool
	keepaliveIvl  time.Duration
	userTimeoutMs int64

	// Connect dials off the calling goroutine so a non-blocking caller never
	// waits on net.DialTimeout directly. dialWakeR/dialWakeW is a self-pipe,
	// the same idiom internal/readiness uses for its non-Linux fallback:
	// dialWakeR is registered with the session's registry while dialing is
	// true, and the dial goroutine writes a byte to dialWakeW on completion
	// so a blocked poller wakes up and re-drives Connect.
	dialing   bool
	dialErr   xcmerr.Error
	dialDone  chan struct{}
	dialWakeR *os.File
	dialWakeW *os.File
	closed    bool
}

func (s *session) applySockOpts() {
	if s.conn == nil {
		return
	}
	_ = s.conn.SetNoDelay(true) // Nagle disabled by default.
	_ = s.conn.SetKeepAlive(s.keepaliveOn)
	if s.keepaliveOn {
		_ = s.conn.SetKeepAlivePeriod(s.keepaliveIvl)
	}
	if s.userTimeoutMs > 0 {
		_ = setUserTimeout(s.conn, s.userTimeoutMs)
	}
}

// Connect is callable repeatedly with the same addr: the first call starts
// the dial in a goroutine and returns CodeWouldBlock immediately, every
// later call (driven by the facade's connect-in-progress retry) just
// checks whether that goroutine has finished yet.
func (v *vtable) Connect(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)

	sess.mu.Lock()
	if !sess.dialing && sess.conn == nil && sess.dialDone == nil {
		r, w, perr := os.Pipe()
		if perr != nil {
			sess.mu.Unlock()
			return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeResourceExhausted, perr), "connect")
		}
		sess.dialing = true
		sess.dialDone = make(chan struct{})
		sess.dialWakeR, sess.dialWakeW = r, w
		go sess.dial(addr)
	}
	done := sess.dialDone
	sess.mu.Unlock()

	select {
	case <-done:
	default:
		return xcmerr.New(xcmerr.CodeWouldBlock)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.dialErr
}

func (sess *session) dial(addr string) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		sess.dialErr = xcmerr.WithOp(classifyDialErr(err), "connect")
	} else if tcpConn, ok := conn.(*net.TCPConn); !ok {
		_ = conn.Close()
		sess.dialErr = xcmerr.New(xcmerr.CodeProtocolError)
	} else {
		sess.conn = tcpConn
		sess.localAddr = "tcp:" + tcpConn.LocalAddr().String()
		sess.remoteAddr = "tcp:" + tcpConn.RemoteAddr().String()
		sess.applySockOpts()
		sess.engine = framing.New(tcpConn, sess.maxMsg, sess.env.Counters)
	}
	sess.dialing = false
	wake := sess.dialWakeW
	sess.mu.Unlock()

	close(sess.dialDone)
	if wake != nil {
		_, _ = wake.Write([]byte{0})
	}
}

func classifyDialErr(err error) xcmerr.Error {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return xcmerr.New(xcmerr.CodeTimedOut)
		}
	}
	return xcmerr.Wrap(xcmerr.CodeConnectionRefused, err)
}

func (v *vtable) Server(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)

	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeInvalidInput, err), "server")
	}

	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return xcmerr.WithOp(xcmerr.New(xcmerr.CodeAddressInUse), "server")
		}
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeAddressInUse, err), "server")
	}

	sess.mu.Lock()
	sess.ln = ln
	sess.localAddr = "tcp:" + ln.Addr().String()
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
	c, err := ln.AcceptTCP()
	_ = ln.SetDeadline(time.Time{})
	if err != nil {
		if netErrIsTimeout(err) {
			return xcmerr.New(xcmerr.CodeWouldBlock)
		}
		return xcmerr.Wrap(xcmerr.CodeConnectionAborted, err)
	}

	cs.mu.Lock()
	cs.conn = c
	cs.localAddr = "tcp:" + c.LocalAddr().String()
	cs.remoteAddr = "tcp:" + c.RemoteAddr().String()
	cs.applySockOpts()
	cs.engine = framing.New(c, cs.maxMsg, cs.env.Counters)
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
	eng := sess.engine
	sess.mu.Unlock()
	if eng == nil {
		return 0, xcmerr.New(xcmerr.CodeProtocolError)
	}
	return eng.Send(buf)
}

func (v *vtable) Receive(s transport.Session, buf []byte) (int, xcmerr.Error) {
	sess := s.(*session)
	sess.mu.Lock()
	eng := sess.engine
	sess.mu.Unlock()
	if eng == nil {
		return 0, xcmerr.New(xcmerr.CodeProtocolError)
	}
	n, err := eng.Receive(buf)
	if err == nil {
		return n, nil
	}
	if eng.PeerClosed() {
		return 0, nil
	}
	return n, err
}

func (v *vtable) Finish(s transport.Session) (bool, xcmerr.Error) {
	sess := s.(*session)
	sess.mu.Lock()
	dialing := sess.dialing
	eng := sess.engine
	sess.mu.Unlock()
	if dialing {
		return true, nil
	}
	if eng == nil {
		return false, nil
	}
	return eng.Finish()
}

func (v *vtable) Update(s transport.Session) xcmerr.Error {
	sess := s.(*session)
	sess.mu.Lock()
	conn := sess.conn
	ln := sess.ln
	eng := sess.engine
	dialing := sess.dialing
	dialR := sess.dialWakeR
	sess.mu.Unlock()

	if dialing && conn == nil {
		fd := int(dialR.Fd())
		if err := sess.env.Registry.Modify(fd, true, false); err != nil {
			if err2 := sess.env.Registry.Add(fd, true, false); err2 != nil {
				return xcmerr.Wrap(xcmerr.CodeResourceExhausted, err2)
			}
		}
		return nil
	}

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
	readable := cond.Has(transport.CondAcceptable)
	writable := false
	if eng != nil {
		readable = readable || eng.NeedsReadable(cond.Has(transport.CondReceivable))
		writable = eng.NeedsWritable()
	}

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
	sess.closed = true
	if sess.conn != nil {
		_ = sess.conn.Close()
	}
	if sess.ln != nil {
		_ = sess.ln.Close()
	}
	if sess.dialWakeR != nil {
		_ = sess.dialWakeR.Close()
	}
	if sess.dialWakeW != nil {
		_ = sess.dialWakeW.Close()
	}
	return nil
}

func (v *vtable) Cleanup(s transport.Session) xcmerr.Error {
	return v.Close(s)
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
	sess.localAddr = "tcp:" + addr
	return nil
}

func (v *vtable) MaxMsg(s transport.Session) int64 {
	return s.(*session).maxMsg
}

func (v *vtable) Attrs(s transport.Session) *attr.Surface {
	sess := s.(*session)
	surf := attr.NewSurface()

	surf.Add(attr.Attribute{
		Name: "xcm.tcp_keepalive", Kind: attr.KindBool, Mode: attr.ModeReadWrite,
		Get: func() (attr.Value, xcmerr.Error) {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			return attr.Value{Kind: attr.KindBool, B: sess.keepaliveOn}, nil
		},
		Set: func(val attr.Value) xcmerr.Error {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			sess.keepaliveOn = val.B
			sess.applySockOpts()
			return nil
		},
	}, attr.Attribute{
		Name: "xcm.tcp_user_timeout", Kind: attr.KindInt64, Mode: attr.ModeReadWrite,
		Get: func() (attr.Value, xcmerr.Error) {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			return attr.Value{Kind: attr.KindInt64, I: sess.userTimeoutMs}, nil
		},
		Set: func(val attr.Value) xcmerr.Error {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			sess.userTimeoutMs = val.I
			sess.applySockOpts()
			return nil
		},
	})
	return surf
}
