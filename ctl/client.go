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
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nabbar/xcm/internal/attr"
)

// Client dials one socket's control path and issues introspection
// requests; it is the counterpart cmd/xcmctl links against.
type Client struct {
	conn    *net.UnixConn
	timeout time.Duration
}

// Dial connects to the control socket at path. The dial itself is
// blocking and has no timeout of its own; the client's fixed timeout
// applies to each request round trip, since a human-facing CLI tool has
// no facade-level blocking/non-blocking distinction to honor.
func Dial(path string) (*Client, error) {
	addr := &net.UnixAddr{Net: "unixpacket", Name: path}
	conn, err := net.DialUnix("unixpacket", nil, addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, timeout: 2 * time.Second}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetAttr fetches a single named attribute's kind and value.
func (c *Client) GetAttr(name string) (attr.Kind, attr.Value, error) {
	req, err := EncodeRequest(OpGetAttr, name)
	if err != nil {
		return 0, attr.Value{}, err
	}
	resp, err := c.roundTrip(req, 10+ValueMax)
	if err != nil {
		return 0, attr.Value{}, err
	}
	status, k, v, err := DecodeValueResponse(resp)
	if err != nil {
		return 0, attr.Value{}, err
	}
	if status != StatusOK {
		return k, attr.Value{}, fmt.Errorf("ctl: attribute %q: status %d", name, status)
	}
	return k, v, nil
}

// GetAllAttrs fetches the names of every attribute on the surface,
// sorted for stable display.
func (c *Client) GetAllAttrs() ([]string, error) {
	req, err := EncodeRequest(OpGetAllAttrs, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(req, 2+255*64)
	if err != nil {
		return nil, err
	}
	names, err := DecodeNames(resp)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) roundTrip(req []byte, maxResp int) ([]byte, error) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write(req); err != nil {
		return nil, err
	}
	_ = c.conn.SetWriteDeadline(time.Time{})

	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	buf := make([]byte, maxResp)
	n, err := c.conn.Read(buf)
	_ = c.conn.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Entry identifies one live socket's control channel on disk.
type Entry struct {
	PID      int
	SocketID uint64
	Path     string
}

// List enumerates the control-socket files for every live socket in
// ctlDir, parsing (pid, socketID) back out of the filename built by Path.
func List(ctlDir string) ([]Entry, error) {
	entries, err := os.ReadDir(ctlDir)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "xcm-") || !strings.HasSuffix(name, ".ctl") {
			continue
		}
		mid := strings.TrimSuffix(strings.TrimPrefix(name, "xcm-"), ".ctl")
		parts := strings.SplitN(mid, "-", 2)
		if len(parts) != 2 {
			continue
		}
		pid, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		sid, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Entry{PID: pid, SocketID: sid, Path: filepath.Join(ctlDir, name)})
	}
	return out, nil
}
