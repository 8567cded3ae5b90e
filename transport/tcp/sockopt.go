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

package tcp

import (
	"net"
)

func rawFD(conn *net.TCPConn) (int, bool) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return 0, false
	}
	var fd int
	if ctrlErr := rc.Control(func(h uintptr) { fd = int(h) }); ctrlErr != nil {
		return 0, false
	}
	return fd, true
}

func rawFDListener(ln *net.TCPListener) (int, bool) {
	rc, err := ln.SyscallConn()
	if err != nil {
		return 0, false
	}
	var fd int
	if ctrlErr := rc.Control(func(h uintptr) { fd = int(h) }); ctrlErr != nil {
		return 0, false
	}
	return fd, true
}

// setUserTimeout is implemented per-platform in sockopt_linux.go /
// sockopt_other.go; this file only hosts the fd-extraction helpers common
// to both.
