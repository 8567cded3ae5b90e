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

package ctl

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nabbar/xcm/internal/attr"
)

// MaxClients caps the number of concurrent introspection clients per
// socket; past the cap the
// listener stops accepting until a client disconnects.
const MaxClients = 2

// IdleSteps and ActiveSteps are the fairness budgets the owning socket
// spends servicing this channel per call to Service: more per call while
// the socket itself is otherwise idle, fewer while it is busy carrying
// application traffic.
const (
	IdleSteps   = 64
	ActiveSteps = 8
)

// Path derives the control-socket path for one live socket from the
// control directory, process id, and socket id.
func Path(ctlDir string, pid int, socketID uint64) string {
	return filepath.Join(ctlDir, fmt.Sprintf("xcm-%d-%d.ctl", pid, socketID))
}

// AttrSource is whatever the owning socket exposes for the channel to
// answer requests from; kept as a callback instead of a direct *attr.Surface
// so a fresh surface is read on every request (reflecting the socket's
// live state, not a stale snapshot taken at channel creation).
type AttrSource func() *attr.Surface

// Channel is one socket's introspection listener.
type Channel struct {
	path   string
	attrs  AttrSource
	ln     *net.UnixListener

	mu      sync.Mutex
	clients []*net.UnixConn
	closed  bool
}

// New binds a Channel at the path derived from ctlDir/pid/socketID. A
// failure here is never fatal to the socket itself; callers should log
// and continue without introspection rather than fail the whole socket.
func New(ctlDir string, pid int, socketID uint64, attrs AttrSource) (*Channel, error) {
	if err := os.MkdirAll(ctlDir, 0o755); err != nil {
		return nil, err
	}
	path := Path(ctlDir, pid, socketID)
	_ = os.Remove(path)

	addr := &net.UnixAddr{Net: "unixpacket", Name: path}
	ln, err := net.ListenUnix("unixpacket", addr)
	if err != nil {
		return nil, err
	}
	return &Channel{path: path, attrs: attrs, ln: ln}, nil
}

// Close releases the listener, every connected client, and unlinks the
// control-socket path.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, cl := range c.clients {
		_ = cl.Close()
	}
	c.clients = nil
	err := c.ln.Close()
	_ = os.Remove(c.path)
	return err
}

// Service spends up to steps units of work accepting new clients and
// answering pending requests, never blocking. Malformed requests or I/O
// errors drop the offending client silently and are never surfaced to the
// application; logging is the caller's responsibility via xcmlog, since
// ctl has no logger of its own.
func (c *Channel) Service(steps int) {
	for i := 0; i < steps; i++ {
		did := c.acceptOnce() || c.serviceOneClient()
		if !did {
			return
		}
	}
}

func (c *Channel) acceptOnce() bool {
	c.mu.Lock()
	full := len(c.clients) >= MaxClients
	c.mu.Unlock()
	if full {
		return false
	}

	_ = c.ln.SetDeadline(time.Now())
	defer func() { _ = c.ln.SetDeadline(time.Time{}) }()

	conn, err := c.ln.AcceptUnix()
	if err != nil {
		return false
	}

	c.mu.Lock()
	c.clients = append(c.clients, conn)
	c.mu.Unlock()
	return true
}

func (c *Channel) serviceOneClient() bool {
	c.mu.Lock()
	if len(c.clients) == 0 {
		c.mu.Unlock()
		return false
	}
	conn := c.clients[0]
	c.clients = append(c.clients[:0:0], c.clients[1:]...)
	c.mu.Unlock()

	ok := c.handleOnce(conn)
	if ok {
		c.mu.Lock()
		c.clients = append(c.clients, conn)
		c.mu.Unlock()
	} else {
		_ = conn.Close()
	}
	return true
}

// handleOnce reads at most one request and answers it, returning false if
// the client should be dropped (I/O error, clean close, or a malformed
// record).
func (c *Channel) handleOnce(conn *net.UnixConn) bool {
	_ = conn.SetReadDeadline(time.Now())
	buf := make([]byte, ReqSize)
	n, err := conn.Read(buf)
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return true
		}
		return false
	}
	if n < ReqSize {
		return false
	}

	op, name, err := DecodeRequest(buf)
	if err != nil {
		return false
	}

	surf := c.attrs()
	var resp []byte
	switch op {
	case OpGetAttr:
		a, ok := surf.Get(name)
		if !ok {
			resp = encodeValue(StatusNoSuchName, attr.KindBool, attr.Value{})
			break
		}
		v, xerr := a.Get()
		resp = EncodeGetAttrResponse(a.Kind, v, xerr)
	case OpGetAllAttrs:
		resp = EncodeNames(surf.Names())
	default:
		return false
	}

	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err = conn.Write(resp)
	_ = conn.SetWriteDeadline(time.Time{})
	return err == nil
}
