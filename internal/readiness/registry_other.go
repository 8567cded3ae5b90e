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

//go:build !linux && !windows

package readiness

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pipeRegistry is the non-Linux fallback: there is no syscall that makes an
// arbitrary descriptor set itself pollable as a single fd (epoll is Linux
// only), so a background goroutine polls the registered fds with unix.Poll
// and signals a self-pipe whenever one of them matches its requested
// interest. The self-pipe's read end is the registry's readiness
// descriptor.
type pipeRegistry struct {
	mu        sync.Mutex
	interest  map[int]uint16 // fd -> unix.POLLIN/POLLOUT mask
	rfd, wfd  int
	done      chan struct{}
	closeOnce sync.Once
}

const pollInterval = 25 * time.Millisecond

func newRegistry() (Registry, error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}

	r := &pipeRegistry{
		interest: make(map[int]uint16),
		rfd:      fds[0],
		wfd:      fds[1],
		done:     make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

func (r *pipeRegistry) Fd() int {
	return r.rfd
}

func pollMask(readable, writable bool) uint16 {
	var m uint16
	if readable {
		m |= unix.POLLIN
	}
	if writable {
		m |= unix.POLLOUT
	}
	return m
}

func (r *pipeRegistry) Add(fd int, readable, writable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interest[fd] = pollMask(readable, writable)
	return nil
}

func (r *pipeRegistry) Modify(fd int, readable, writable bool) error {
	return r.Add(fd, readable, writable)
}

func (r *pipeRegistry) Delete(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.interest, fd)
	return nil
}

func (r *pipeRegistry) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(r.rfd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (r *pipeRegistry) signal() {
	var one [1]byte
	_, _ = unix.Write(r.wfd, one[:])
}

func (r *pipeRegistry) loop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if len(r.interest) == 0 {
				r.mu.Unlock()
				continue
			}
			fds := make([]unix.PollFd, 0, len(r.interest))
			for fd, events := range r.interest {
				fds = append(fds, unix.PollFd{Fd: int32(fd), Events: int16(events)})
			}
			r.mu.Unlock()

			n, err := unix.Poll(fds, 0)
			if err != nil || n <= 0 {
				continue
			}
			for _, pfd := range fds {
				if pfd.Revents != 0 {
					r.signal()
					break
				}
			}
		}
	}
}

func (r *pipeRegistry) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		_ = unix.Close(r.rfd)
		_ = unix.Close(r.wfd)
	})
	return nil
}
