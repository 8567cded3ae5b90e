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

//go:build linux

package readiness

import (
	"sync"

	"golang.org/x/sys/unix"
)

type epollRegistry struct {
	mu   sync.Mutex
	epfd int
}

func newRegistry() (Registry, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollRegistry{epfd: fd}, nil
}

func (r *epollRegistry) Fd() int {
	return r.epfd
}

func eventMask(readable, writable bool) uint32 {
	var m uint32
	if readable {
		m |= unix.EPOLLIN
	}
	if writable {
		m |= unix.EPOLLOUT
	}
	return m
}

func (r *epollRegistry) Add(fd int, readable, writable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := unix.EpollEvent{Events: eventMask(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (r *epollRegistry) Modify(fd int, readable, writable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := unix.EpollEvent{Events: eventMask(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (r *epollRegistry) Delete(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	// ENOENT: never added. EBADF: the fd is already closed, and closing it
	// removed it from the epoll set.
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return err
}

// Drain is a no-op: epoll is level-triggered, the kernel re-evaluates
// readiness on every EpollWait rather than requiring the caller to consume
// an edge.
func (r *epollRegistry) Drain() {}

func (r *epollRegistry) Close() error {
	return unix.Close(r.epfd)
}
