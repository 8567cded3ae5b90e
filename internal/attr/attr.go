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

// Package attr implements the generic attribute surface: typed, named,
// read/write-moded properties exposed by every socket. The surface is
// implemented once here, parameterized by field-selector closures rather
// than one hand-written getter per attribute, and extended per transport
// by registering additional Attribute values.
package attr

import "github.com/nabbar/xcm/xcmerr"

// Kind is the wire type of an attribute's value.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt64
	KindString
	KindBinary
)

// Mode is the read/write policy of an attribute.
type Mode uint8

const (
	ModeReadOnly Mode = iota
	ModeReadWrite
	ModeWriteOnly
)

// Value is a typed attribute value. Exactly one field is meaningful,
// selected by Kind.
type Value struct {
	Kind Kind
	B    bool
	I    int64
	S    string
	Bin  []byte
}

// Getter reads the current value of an attribute from whatever backing
// field it is bound to. Returning a non-nil error aborts the read (e.g. the
// attribute is only valid on connections, and the socket is a server).
type Getter func() (Value, xcmerr.Error)

// Setter writes a new value to an attribute's backing field. Returning a
// non-nil error aborts the write.
type Setter func(Value) xcmerr.Error

// Attribute is one named, typed, moded entry in a socket's attribute
// surface.
type Attribute struct {
	Name string
	Kind Kind
	Mode Mode
	Get  Getter
	Set  Setter
}

// Names used by the generic attribute set.
const (
	NameType           = "xcm.type"
	NameTransport      = "xcm.transport"
	NameLocalAddr      = "xcm.local_addr"
	NameRemoteAddr     = "xcm.remote_addr"
	NameBlocking       = "xcm.blocking"
	NameMaxMsgSize     = "xcm.max_msg_size"
	NameFromAppMsgs    = "xcm.from_app_msgs"
	NameFromAppBytes   = "xcm.from_app_bytes"
	NameToAppMsgs      = "xcm.to_app_msgs"
	NameToAppBytes     = "xcm.to_app_bytes"
	NameFromLowerMsgs  = "xcm.from_lower_msgs"
	NameFromLowerBytes = "xcm.from_lower_bytes"
	NameToLowerMsgs    = "xcm.to_lower_msgs"
	NameToLowerBytes   = "xcm.to_lower_bytes"
)
