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

package sctp

import (
	"net"
	"os"
)

// adopt hands a raw one-to-one SCTP socket fd to the runtime network
// poller via net.FileConn, so Read/Write/SetDeadline behave exactly like
// any other net.Conn despite the socket having been created with raw
// syscalls instead of the net package. AF_INET+SOCK_STREAM is adopted as
// a *net.TCPConn regardless of IPPROTO_SCTP, since net.FileConn's family
// detection only looks at address family and socket type.
func adopt(fd int, name string) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer func() { _ = f.Close() }()
	return net.FileConn(f)
}

func adoptListener(fd int, name string) (net.Listener, error) {
	f := os.NewFile(uintptr(fd), name)
	defer func() { _ = f.Close() }()
	return net.FileListener(f)
}

func rawFD(conn net.Conn) (int, bool) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return 0, false
	}
	rc, err := tcpConn.SyscallConn()
	if err != nil {
		return 0, false
	}
	var fd int
	if ctrlErr := rc.Control(func(h uintptr) { fd = int(h) }); ctrlErr != nil {
		return 0, false
	}
	return fd, true
}

func rawFDListener(ln net.Listener) (int, bool) {
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return 0, false
	}
	rc, err := tcpLn.SyscallConn()
	if err != nil {
		return 0, false
	}
	var fd int
	if ctrlErr := rc.Control(func(h uintptr) { fd = int(h) }); ctrlErr != nil {
		return 0, false
	}
	return fd, true
}
