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

//go:build !windows

package xcm

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// pollReadable blocks until fd (a socket's readiness descriptor: a real
// epoll fd on Linux, a self-pipe read end elsewhere) is readable, up to
// timeout. A timeout is not an error: the caller simply loops and retries
// the operation, which is how blocking operations stay interruptible by
// process signals without xcm inventing its own cancellation API. A signal
// interrupting poll() itself (EINTR) is reported via errPollInterrupted
// rather than retried here, so the caller can tell a genuine interruption
// apart from a real poll failure.
func pollReadable(fd int, timeout time.Duration) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err == nil {
		_ = n
		return nil
	}
	if err == unix.EINTR {
		return errPollInterrupted
	}
	return fmt.Errorf("xcm: poll readiness descriptor: %w", err)
}
