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

// Package ctl implements the per-socket introspection channel: a small
// local listener, one per live socket, speaking a fixed-size wire
// protocol so a separate process (cmd/xcmctl) can read a socket's
// attribute surface without touching the owning process's memory.
package ctl

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nabbar/xcm/internal/attr"
)

// Opcode selects the request kind. Both fit in a fixed-size record so the
// channel never needs to buffer a partial message.
type Opcode byte

const (
	OpGetAttr Opcode = iota + 1
	OpGetAllAttrs
)

// Status is the outcome byte leading every response record.
type Status byte

const (
	StatusOK Status = iota
	StatusNoSuchName
	StatusCapacityExceeded
	StatusInternal
)

const (
	// NameMax bounds an attribute name inside a request record.
	NameMax = 64
	// ValueMax bounds a string/binary attribute value inside a response
	// record; a value that does not fit fails closed with
	// StatusCapacityExceeded rather than fragmenting across records.
	ValueMax = 1024
	// ReqSize is the fixed size of every request record.
	ReqSize = 1 + NameMax
)

// EncodeRequest builds a fixed ReqSize-byte request record.
func EncodeRequest(op Opcode, name string) ([]byte, error) {
	if len(name) > NameMax {
		return nil, fmt.Errorf("ctl: attribute name %q exceeds %d bytes", name, NameMax)
	}
	buf := make([]byte, ReqSize)
	buf[0] = byte(op)
	copy(buf[1:], name)
	return buf, nil
}

// DecodeRequest parses a request record produced by EncodeRequest.
func DecodeRequest(buf []byte) (Opcode, string, error) {
	if len(buf) < ReqSize {
		return 0, "", errors.New("ctl: short request record")
	}
	op := Opcode(buf[0])
	nameBytes := buf[1:ReqSize]
	end := 0
	for end < len(nameBytes) && nameBytes[end] != 0 {
		end++
	}
	return op, string(nameBytes[:end]), nil
}

// encodeValue builds one response record carrying an attribute's kind and
// value in the fixed layout: [status][kind][8-byte-value-or-length][payload].
func encodeValue(status Status, k attr.Kind, v attr.Value) []byte {
	buf := make([]byte, 10, 10+ValueMax)
	buf[0] = byte(status)
	buf[1] = byte(k)

	switch k {
	case attr.KindBool:
		if v.B {
			buf[2] = 1
		}
	case attr.KindInt64:
		binary.BigEndian.PutUint64(buf[2:10], uint64(v.I))
	case attr.KindString:
		payload := []byte(v.S)
		if len(payload) > ValueMax {
			buf[0] = byte(StatusCapacityExceeded)
			binary.BigEndian.PutUint64(buf[2:10], 0)
			return buf
		}
		binary.BigEndian.PutUint64(buf[2:10], uint64(len(payload)))
		buf = append(buf, payload...)
	case attr.KindBinary:
		if len(v.Bin) > ValueMax {
			buf[0] = byte(StatusCapacityExceeded)
			binary.BigEndian.PutUint64(buf[2:10], 0)
			return buf
		}
		binary.BigEndian.PutUint64(buf[2:10], uint64(len(v.Bin)))
		buf = append(buf, v.Bin...)
	}
	return buf
}

// EncodeGetAttrResponse builds the response record for one OpGetAttr
// request.
func EncodeGetAttrResponse(k attr.Kind, v attr.Value, xerr error) []byte {
	if xerr != nil {
		return encodeValue(StatusNoSuchName, k, attr.Value{})
	}
	return encodeValue(StatusOK, k, v)
}

// DecodeValueResponse is the inverse of encodeValue, used by the client.
func DecodeValueResponse(buf []byte) (Status, attr.Kind, attr.Value, error) {
	if len(buf) < 10 {
		return StatusInternal, 0, attr.Value{}, errors.New("ctl: short response record")
	}
	status := Status(buf[0])
	k := attr.Kind(buf[1])
	if status != StatusOK {
		return status, k, attr.Value{}, nil
	}
	switch k {
	case attr.KindBool:
		return status, k, attr.Value{Kind: k, B: buf[2] != 0}, nil
	case attr.KindInt64:
		return status, k, attr.Value{Kind: k, I: int64(binary.BigEndian.Uint64(buf[2:10]))}, nil
	case attr.KindString:
		n := binary.BigEndian.Uint64(buf[2:10])
		if uint64(len(buf)) < 10+n {
			return StatusInternal, k, attr.Value{}, errors.New("ctl: truncated string payload")
		}
		return status, k, attr.Value{Kind: k, S: string(buf[10 : 10+n])}, nil
	case attr.KindBinary:
		n := binary.BigEndian.Uint64(buf[2:10])
		if uint64(len(buf)) < 10+n {
			return StatusInternal, k, attr.Value{}, errors.New("ctl: truncated binary payload")
		}
		cp := make([]byte, n)
		copy(cp, buf[10:10+n])
		return status, k, attr.Value{Kind: k, Bin: cp}, nil
	default:
		return status, k, attr.Value{}, nil
	}
}

// EncodeNames packs an attribute-name list for OpGetAllAttrs: a 2-byte
// count followed by, for each name, a 1-byte length and the name bytes.
func EncodeNames(names []string) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(names)))
	for _, n := range names {
		if len(n) > 255 {
			n = n[:255]
		}
		buf = append(buf, byte(len(n)))
		buf = append(buf, n...)
	}
	return buf
}

// DecodeNames is the inverse of EncodeNames.
func DecodeNames(buf []byte) ([]string, error) {
	if len(buf) < 2 {
		return nil, errors.New("ctl: short names record")
	}
	count := int(binary.BigEndian.Uint16(buf[:2]))
	buf = buf[2:]
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if len(buf) < 1 {
			return nil, errors.New("ctl: truncated names record")
		}
		n := int(buf[0])
		buf = buf[1:]
		if len(buf) < n {
			return nil, errors.New("ctl: truncated name")
		}
		out = append(out, string(buf[:n]))
		buf = buf[n:]
	}
	return out, nil
}
