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

// Package xcmerr provides the semantic error taxonomy: a small, fixed set
// of error codes shared by every transport, plus the sticky
// "latched error" behavior a socket exposes once one of them is recorded.
//
// Unlike a generic HTTP-status-style error catalogue, this taxonomy is
// closed: the only way to produce an Error is through New/Newf/Wrap, and
// every taxonomy member is declared in code.go. Errors compare with
// errors.Is by code, not by identity, so a latched error read twice from a
// socket compares equal even though the two reads return distinct values.
package xcmerr

// Error is the interface every error returned by the core implements.
type Error interface {
	error

	// Code returns the taxonomy member this error belongs to.
	Code() CodeError

	// Op names the operation that produced the error (e.g. "connect",
	// "send"), or "" if not set.
	Op() string

	// Parent returns the wrapped lower-layer error, or nil.
	Parent() error
}

// Peer-closed-cleanly is a sentinel, not an error: receive
// returns (0, nil) rather than an Error for it. There is deliberately
// no CodeError member for it.
