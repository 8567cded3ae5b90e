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

// CodeError is a numeric classification of a transport error, in the spirit
// of an HTTP status code but scoped to the taxonomy a connection-oriented
// messaging transport can actually raise ().
type CodeError uint16

const (
	// CodeNone is the zero value: no error.
	CodeNone CodeError = iota
	CodeInvalidInput
	CodeCapacityExceeded
	CodeWouldBlock
	CodeNoTransport
	CodeAddressInUse
	CodeAccessDenied
	CodeNoSuchName
	CodeResourceExhausted
	CodeConnectionRefused
	CodeConnectionReset
	CodeConnectionAborted
	CodeHostUnreachable
	CodeNetworkUnreachable
	CodeTimedOut
	CodeProtocolError
	CodeInterrupted
)

var idMsg = map[CodeError]string{
	CodeNone:                "",
	CodeInvalidInput:        "invalid input",
	CodeCapacityExceeded:    "capacity exceeded",
	CodeWouldBlock:          "would block",
	CodeNoTransport:         "no such transport",
	CodeAddressInUse:        "address in use",
	CodeAccessDenied:        "access denied",
	CodeNoSuchName:          "no such name",
	CodeResourceExhausted:   "resource exhausted",
	CodeConnectionRefused:   "connection refused",
	CodeConnectionReset:     "connection reset",
	CodeConnectionAborted:   "connection aborted",
	CodeHostUnreachable:     "host unreachable",
	CodeNetworkUnreachable:  "network unreachable",
	CodeTimedOut:            "timed out",
	CodeProtocolError:       "protocol error",
	CodeInterrupted:         "interrupted",
}

// String returns the default message associated with the code. Individual
// Error values may carry a more specific message; this is only the fallback.
func (c CodeError) String() string {
	if m, ok := idMsg[c]; ok {
		return m
	}
	return "unknown error"
}
