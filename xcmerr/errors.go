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

package xcmerr

import (
	"errors"
	"fmt"
)

type xcmError struct {
	code CodeError
	msg  string
	op   string
	prnt error
}

// Error implements the standard error interface.
func (e *xcmError) Error() string {
	m := e.msg
	if m == "" {
		m = e.code.String()
	}
	if e.op != "" {
		m = e.op + ": " + m
	}
	if e.prnt != nil {
		return fmt.Sprintf("%s: %s", m, e.prnt.Error())
	}
	return m
}

// Code returns the taxonomy member this error belongs to.
func (e *xcmError) Code() CodeError {
	return e.code
}

// Op returns the operation that raised the error (e.g. "send", "connect"),
// or the empty string if none was recorded.
func (e *xcmError) Op() string {
	return e.op
}

// Parent returns the wrapped lower-layer error, if any (e.g. the raw
// syscall or net.OpError normalized into this taxonomy member).
func (e *xcmError) Parent() error {
	return e.prnt
}

// Unwrap allows errors.Is / errors.As to traverse into the parent error.
func (e *xcmError) Unwrap() error {
	return e.prnt
}

// Is reports whether target is (or wraps) an xcmError with the same code.
func (e *xcmError) Is(target error) bool {
	var o *xcmError
	if errors.As(target, &o) {
		return o.code == e.code
	}
	return false
}

// New builds an Error of the given taxonomy code with a default message.
func New(code CodeError) Error {
	return &xcmError{code: code}
}

// Newf builds an Error of the given taxonomy code with a formatted message.
func Newf(code CodeError, format string, args ...interface{}) Error {
	return &xcmError{code: code, msg: fmt.Sprintf(format, args...)}
}

// WithOp attaches the operation name that raised this error (non-destructive:
// returns a new Error value).
func WithOp(e Error, op string) Error {
	if e == nil {
		return nil
	}
	if x, ok := e.(*xcmError); ok {
		n := *x
		n.op = op
		return &n
	}
	return e
}

// Wrap normalizes a lower-layer error (an OS errno surfaced through net.Error
// or a raw syscall.Errno) into the taxonomy member code, keeping the
// original error reachable through Parent/Unwrap. Returns nil if err is nil.
func Wrap(code CodeError, err error) Error {
	if err == nil {
		return nil
	}
	return &xcmError{code: code, prnt: err}
}

// IsCode reports whether err is (or wraps, via errors.Is) an Error whose
// taxonomy member is code.
func IsCode(err error, code CodeError) bool {
	if err == nil {
		return false
	}
	var x *xcmError
	if errors.As(err, &x) {
		return x.code == code
	}
	return false
}

// AsError extracts the Error, if err is or wraps one.
func AsError(err error) (Error, bool) {
	var x *xcmError
	if errors.As(err, &x) {
		return x, true
	}
	return nil, false
}
