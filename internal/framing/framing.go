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

// Package framing implements the non-blocking message framing engine shared
// by the TCP and TLS transports: a 4-byte big-endian length
// header followed by that many payload bytes, layered over any reliable
// byte stream. TLS rides the identical engine because crypto/tls.Conn
// satisfies the same Conn interface as a raw net.TCPConn; framing doesn't
// know or care that there is a handshake underneath.
package framing

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/nabbar/xcm/internal/counters"
	"github.com/nabbar/xcm/xcmerr"
)

const headerLen = 4

// Conn is the minimal byte-stream contract the engine needs. *net.TCPConn
// and *tls.Conn both satisfy it.
type Conn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type recvPhase uint8

const (
	phaseAwaitingHeader recvPhase = iota
	phaseAwaitingBody
	phaseMessageReady
)

// Engine is one direction-independent framing state machine bound to a
// single Conn.
type Engine struct {
	conn    Conn
	maxMsg  int64
	cnt     *counters.Counters

	recvMu     sync.Mutex
	recvPhase  recvPhase
	header     [headerLen]byte
	headerPos  int
	recvBuf    []byte
	bodyLen    int
	bodyPos    int

	sendMu     sync.Mutex
	sendBuf    []byte
	sendPos    int

	bad    bool
	badErr xcmerr.Error
}

// New builds an Engine over conn. cnt receives from_lower/to_app (on
// receive) and from_app/to_lower (on send) byte/message tallies.
func New(conn Conn, maxMsg int64, cnt *counters.Counters) *Engine {
	return &Engine{conn: conn, maxMsg: maxMsg, cnt: cnt}
}

func isTimeout(err error) bool {
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

func (e *Engine) fail(code xcmerr.CodeError, err error) xcmerr.Error {
	e.bad = true
	e.badErr = xcmerr.Wrap(code, err)
	return e.badErr
}

// Send implements the framed send algorithm: zero-length is rejected, a
// send already in flight yields would-block, otherwise the header+payload
// are queued and a non-blocking write attempted immediately. The call is
// caller-visibly successful, and from_app incremented, the instant the
// full payload is queued, regardless of how much of it actually reached
// the wire; to_lower catches up as the residual drains.
func (e *Engine) Send(buf []byte) (int, xcmerr.Error) {
	if e.bad {
		return 0, e.badErr
	}
	if len(buf) == 0 {
		return 0, xcmerr.New(xcmerr.CodeInvalidInput)
	}
	if int64(len(buf)) > e.maxMsg {
		return 0, xcmerr.New(xcmerr.CodeCapacityExceeded)
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if e.sendBuf != nil {
		return 0, xcmerr.New(xcmerr.CodeWouldBlock)
	}

	frame := make([]byte, headerLen+len(buf))
	binary.BigEndian.PutUint32(frame[:headerLen], uint32(len(buf)))
	copy(frame[headerLen:], buf)

	e.sendBuf = frame
	e.sendPos = 0
	e.cnt.AddFromApp(len(buf))

	if err := e.drainSendLocked(); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// drainSendLocked attempts to push whatever remains of the in-flight send
// buffer, non-blockingly. Called with sendMu held.
func (e *Engine) drainSendLocked() xcmerr.Error {
	if e.sendBuf == nil {
		return nil
	}

	_ = e.conn.SetWriteDeadline(time.Now())
	n, err := e.conn.Write(e.sendBuf[e.sendPos:])
	_ = e.conn.SetWriteDeadline(time.Time{})

	if n > 0 {
		e.accountSentBytes(n)
		e.sendPos += n
	}

	if err != nil {
		if isTimeout(err) {
			return nil
		}
		return e.fail(xcmerr.CodeConnectionReset, err)
	}

	if e.sendPos == len(e.sendBuf) {
		e.sendBuf = nil
		e.sendPos = 0
	}
	return nil
}

// accountSentBytes records the current frame on to_lower once a write of n
// bytes completes it: one message, and its payload length in bytes (the
// header itself is not counted against to_lower, matching the byte
// semantics of from_app/to_app).
func (e *Engine) accountSentBytes(n int) {
	if e.sendPos+n == len(e.sendBuf) {
		e.cnt.AddToLower(len(e.sendBuf) - headerLen)
	}
}

// Receive implements the framed receive algorithm.
func (e *Engine) Receive(buf []byte) (int, xcmerr.Error) {
	if e.bad {
		return 0, e.badErr
	}

	e.recvMu.Lock()
	defer e.recvMu.Unlock()

	if e.recvPhase != phaseMessageReady {
		if err := e.pumpRecvLocked(); err != nil {
			return 0, err
		}
		if e.recvPhase != phaseMessageReady {
			return 0, xcmerr.New(xcmerr.CodeWouldBlock)
		}
	}

	n := copy(buf, e.recvBuf[:e.bodyLen])
	e.cnt.AddFromLower(e.bodyLen)
	e.cnt.AddToApp(n)

	e.recvPhase = phaseAwaitingHeader
	e.headerPos = 0
	e.bodyPos = 0
	e.bodyLen = 0

	return n, nil
}

// pumpRecvLocked advances recv_phase as far as non-blocking reads allow,
// without blocking the caller. Called with recvMu held.
func (e *Engine) pumpRecvLocked() xcmerr.Error {
	for {
		switch e.recvPhase {
		case phaseAwaitingHeader:
			n, err, eof := e.readInto(e.header[e.headerPos:headerLen])
			e.headerPos += n
			if err != nil {
				return err
			}
			if eof {
				if e.headerPos == 0 {
					// Clean end-of-stream on a frame boundary: leave recv_phase
					// alone and let Receive's caller see it via a future call
					// returning (0, nil) is handled by the transport wrapper,
					// which checks peerClosed before calling pumpRecvLocked again.
					e.bad = true
					e.badErr = nil
					return nil
				}
				return e.fail(xcmerr.CodeConnectionReset, io.ErrUnexpectedEOF)
			}
			if e.headerPos < headerLen {
				return nil
			}

			length := binary.BigEndian.Uint32(e.header[:])
			if length == 0 || int64(length) > e.maxMsg {
				return e.fail(xcmerr.CodeProtocolError, errors.New("framing: invalid frame length"))
			}
			if cap(e.recvBuf) < int(length) {
				e.recvBuf = make([]byte, length)
			} else {
				e.recvBuf = e.recvBuf[:length]
			}
			e.bodyLen = int(length)
			e.bodyPos = 0
			e.recvPhase = phaseAwaitingBody

		case phaseAwaitingBody:
			n, err, eof := e.readInto(e.recvBuf[e.bodyPos:e.bodyLen])
			e.bodyPos += n
			if err != nil {
				return err
			}
			if eof {
				return e.fail(xcmerr.CodeConnectionReset, io.ErrUnexpectedEOF)
			}
			if e.bodyPos < e.bodyLen {
				return nil
			}
			e.recvPhase = phaseMessageReady
			return nil

		case phaseMessageReady:
			return nil
		}
	}
}

// readInto performs one non-blocking read attempt into dst. It returns
// (0, nil, false) on would-block (no bytes, no error, not EOF) so the
// caller can distinguish "try later" from a real failure.
func (e *Engine) readInto(dst []byte) (int, xcmerr.Error, bool) {
	if len(dst) == 0 {
		return 0, nil, false
	}

	_ = e.conn.SetReadDeadline(time.Now())
	n, err := e.conn.Read(dst)
	_ = e.conn.SetReadDeadline(time.Time{})

	if n > 0 {
		return n, nil, false
	}
	if err == nil {
		return 0, nil, false
	}
	if isTimeout(err) {
		return 0, nil, false
	}
	if errors.Is(err, io.EOF) {
		return 0, nil, true
	}
	return 0, e.fail(xcmerr.CodeConnectionReset, err), false
}

// PeerClosed reports whether the stream ended cleanly on a frame boundary
//.
func (e *Engine) PeerClosed() bool {
	e.recvMu.Lock()
	defer e.recvMu.Unlock()
	return e.bad && e.badErr == nil
}

// Bad reports whether the session has latched a framing-level error.
func (e *Engine) Bad() (bool, xcmerr.Error) {
	return e.bad, e.badErr
}

// Finish drives the send buffer drain and, for diagnostic purposes, one
// receive step; it reports whether either still has pending work.
func (e *Engine) Finish() (bool, xcmerr.Error) {
	e.sendMu.Lock()
	if err := e.drainSendLocked(); err != nil {
		e.sendMu.Unlock()
		return false, err
	}
	sendPending := e.sendBuf != nil
	e.sendMu.Unlock()

	e.recvMu.Lock()
	if e.recvPhase != phaseMessageReady {
		if err := e.pumpRecvLocked(); err != nil {
			e.recvMu.Unlock()
			return false, err
		}
	}
	recvPending := e.recvPhase == phaseAwaitingBody && e.bodyPos > 0
	e.recvMu.Unlock()

	return sendPending || recvPending, nil
}

// NeedsReadable reports whether the engine still wants readable events: an
// incomplete frame, or the application wants to receive.
func (e *Engine) NeedsReadable(wantReceive bool) bool {
	e.recvMu.Lock()
	defer e.recvMu.Unlock()
	return wantReceive || e.recvPhase != phaseMessageReady
}

// NeedsWritable reports whether a send buffer is still draining.
func (e *Engine) NeedsWritable() bool {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	return e.sendBuf != nil
}

// HasMessageReady reports whether a complete message is already buffered
// and a Receive call would return data without touching the wire.
func (e *Engine) HasMessageReady() bool {
	e.recvMu.Lock()
	defer e.recvMu.Unlock()
	return e.recvPhase == phaseMessageReady
}
