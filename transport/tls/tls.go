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

// Package tls implements the "tls" transport: the same framed-stream
// engine as tcp, layered over a *tls.Conn instead of a raw *net.TCPConn.
// Certificate material is loaded and kept
// current by internal/certs' fsnotify-driven watcher.
package tls

import (
	"crypto/tls"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/nabbar/xcm/internal/attr"
	"github.com/nabbar/xcm/internal/certs"
	"github.com/nabbar/xcm/internal/framing"
	"github.com/nabbar/xcm/transport"
	"github.com/nabbar/xcm/xcmconfig"
	"github.com/nabbar/xcm/xcmerr"
)

func init() {
	transport.Register("tls", func() transport.VTable { return &vtable{} }, nil)
}

// DefaultMaxMsg mirrors transport/tcp's default: the framing header is the
// same 4-byte length-prefix regardless of what carries the bytes.
const DefaultMaxMsg = 1 << 20

// namespace picks the network namespace segment of the cert/key/trust-chain
// filenames. xcm has no namespace concept of its own; a future attribute
// could let callers select one, so this is centralized rather than inlined.
var namespace = ""

type vtable struct{}

func (v *vtable) PrivSize(transport.Kind) int { return 256 }

func (v *vtable) Init(env *transport.Env, kind transport.Kind) (transport.Session, xcmerr.Error) {
	cfg := xcmconfig.FromEnv()
	certFile, keyFile, tcFile := cfg.CertPaths(namespace)

	w, xerr := certs.NewWatcher(certFile, keyFile, tcFile)
	if xerr != nil {
		return nil, xerr
	}

	return &session{kind: kind, env: env, maxMsg: DefaultMaxMsg, certs: w}, nil
}

type session struct {
	kind   transport.Kind
	env    *transport.Env
	maxMsg int64
	certs  *certs.Watcher

	mu sync.Mutex
	ln net.Listener
	// conn is set as soon as the raw TCP leg exists, for both Connect and
	// Accept; engine stays nil until the handshake has actually completed,
	// which is how driveHandshake/Finish/Update tell a still-handshaking
	// conn apart from a ready one.
	conn   *tls.Conn
	engine *framing.Engine

	localAddr      string
	remoteAddr     string
	peerSubjectKey string

	// Connect dials off the calling goroutine so a non-blocking caller never
	// waits on net.DialTimeout directly; same self-pipe wake idiom as
	// transport/tcp. The handshake itself (both Connect and Accept side) is
	// pumped non-blockingly by driveHandshake via the deadline trick already
	// used for the listener's own Accept call.
	dialing   bool
	dialErr   xcmerr.Error
	dialDone  chan struct{}
	dialWakeR *os.File
	dialWakeW *os.File
	closed    bool
}

func (s *session) tlsConfig(serverSide bool) *tls.Config {
	return &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			b := s.certs.Current()
			return &b.Cert, nil
		},
		GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			b := s.certs.Current()
			return &b.Cert, nil
		},
		RootCAs:    s.certs.Current().TrustChain,
		ClientCAs:  s.certs.Current().TrustChain,
		ClientAuth: tls.RequireAndVerifyClientCert,
		MinVersion: tls.VersionTLS12,
	}
}

// Connect is callable repeatedly with the same addr, mirroring
// transport/tcp: the first call starts the dial in a goroutine and returns
// CodeWouldBlock immediately; later calls check whether the dial has
// finished, then pump the handshake non-blockingly.
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
	dialErr := sess.dialErr
	sess.mu.Unlock()
	if dialErr != nil {
		return dialErr
	}

	return sess.driveHandshake()
}

func (sess *session) dial(addr string) {
	rawConn, err := net.DialTimeout("tcp", addr, 10*time.Second)

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		if err == nil {
			_ = rawConn.Close()
		}
		return
	}
	if err != nil {
		sess.dialErr = xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeConnectionRefused, err), "connect")
	} else {
		sess.conn = tls.Client(rawConn, sess.tlsConfig(false))
	}
	sess.dialing = false
	wake := sess.dialWakeW
	sess.mu.Unlock()

	close(sess.dialDone)
	if wake != nil {
		_, _ = wake.Write([]byte{0})
	}
}

// driveHandshake pumps one non-blocking step of the TLS handshake on an
// already-dialed or already-accepted conn, using the same
// SetDeadline(time.Now()) trick as the listener's own Accept call: a
// handshake still in progress reports CodeWouldBlock instead of hanging
// the caller on a slow or hostile peer.
func (sess *session) driveHandshake() xcmerr.Error {
	sess.mu.Lock()
	conn := sess.conn
	eng := sess.engine
	sess.mu.Unlock()
	if conn == nil {
		return xcmerr.New(xcmerr.CodeProtocolError)
	}
	if eng != nil {
		return nil
	}

	_ = conn.SetDeadline(time.Now())
	err := conn.Handshake()
	_ = conn.SetDeadline(time.Time{})
	if err != nil {
		if netErrIsTimeout(err) {
			return xcmerr.New(xcmerr.CodeWouldBlock)
		}
		_ = conn.Close()
		sess.mu.Lock()
		sess.conn = nil
		sess.mu.Unlock()
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeProtocolError, err), "connect")
	}

	sess.mu.Lock()
	sess.localAddr = "tls:" + conn.LocalAddr().String()
	sess.remoteAddr = "tls:" + conn.RemoteAddr().String()
	sess.peerSubjectKey = subjectKeyID(conn)
	sess.engine = framing.New(conn, sess.maxMsg, sess.env.Counters)
	sess.mu.Unlock()
	return nil
}

func (v *vtable) Server(s transport.Session, addr string) xcmerr.Error {
	sess := s.(*session)

	ln, err := tls.Listen("tcp", addr, sess.tlsConfig(true))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return xcmerr.WithOp(xcmerr.New(xcmerr.CodeAddressInUse), "server")
		}
		return xcmerr.WithOp(xcmerr.Wrap(xcmerr.CodeAddressInUse, err), "server")
	}

	sess.mu.Lock()
	sess.ln = ln
	sess.localAddr = "tls:" + ln.Addr().String()
	sess.mu.Unlock()
	return nil
}

func (v *vtable) Accept(conn transport.Session, srv transport.Session) xcmerr.Error {
	cs := conn.(*session)
	ss := srv.(*session)

	cs.mu.Lock()
	pending := cs.conn
	cs.mu.Unlock()

	if pending == nil {
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

		tconn, ok := raw.(*tls.Conn)
		if !ok {
			_ = raw.Close()
			return xcmerr.New(xcmerr.CodeProtocolError)
		}

		cs.mu.Lock()
		cs.conn = tconn
		cs.mu.Unlock()
	}

	return cs.driveHandshake()
}

func subjectKeyID(conn *tls.Conn) string {
	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return ""
	}
	return hex.EncodeToString(state.PeerCertificates[0].SubjectKeyId)
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
	conn := sess.conn
	eng := sess.engine
	sess.mu.Unlock()

	if dialing {
		return true, nil
	}
	if conn != nil && eng == nil {
		if xerr := sess.driveHandshake(); xerr != nil {
			if xcmerr.IsCode(xerr, xcmerr.CodeWouldBlock) {
				return true, nil
			}
			return false, xerr
		}
		sess.mu.Lock()
		eng = sess.engine
		sess.mu.Unlock()
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
	if conn == nil {
		return nil
	}

	fd, ok := rawFD(conn)
	if !ok {
		return nil
	}

	if eng == nil {
		// Handshake in progress: either direction may make progress next.
		if err := sess.env.Registry.Modify(fd, true, true); err != nil {
			if err2 := sess.env.Registry.Add(fd, true, true); err2 != nil {
				return xcmerr.Wrap(xcmerr.CodeResourceExhausted, err2)
			}
		}
		return nil
	}

	cond := sess.env.Conditions()
	readable := cond.Has(transport.CondAcceptable) || eng.NeedsReadable(cond.Has(transport.CondReceivable))
	writable := eng.NeedsWritable()

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
	if sess.certs != nil {
		_ = sess.certs.Close()
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
	sess.localAddr = "tls:" + addr
	return nil
}

func (v *vtable) MaxMsg(s transport.Session) int64 {
	return s.(*session).maxMsg
}

func (v *vtable) Attrs(s transport.Session) *attr.Surface {
	sess := s.(*session)
	surf := attr.NewSurface()
	if sess.kind != transport.KindConnection {
		return surf
	}
	surf.Add(attr.Attribute{
		Name: "xcm.tls_peer_subject_key_id", Kind: attr.KindString, Mode: attr.ModeReadOnly,
		Get: func() (attr.Value, xcmerr.Error) {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			return attr.Value{Kind: attr.KindString, S: sess.peerSubjectKey}, nil
		},
	})
	return surf
}
