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

package xcm

import (
	"github.com/nabbar/xcm/internal/attr"
	"github.com/nabbar/xcm/internal/counters"
	"github.com/nabbar/xcm/transport"
	"github.com/nabbar/xcm/xcmerr"
)

// genericAttrs builds the generic attribute set every socket carries
// regardless of transport: identity, addressing, blocking mode, the
// message-size ceiling, and the four counter pairs.
func (s *Socket) genericAttrs() []attr.Attribute {
	typeName := "server"
	if s.kind == transport.KindConnection {
		typeName = "conn"
	}

	out := []attr.Attribute{
		{
			Name: attr.NameType, Kind: attr.KindString, Mode: attr.ModeReadOnly,
			Get: constString(typeName),
		},
		{
			Name: attr.NameTransport, Kind: attr.KindString, Mode: attr.ModeReadOnly,
			Get: constString(s.tag),
		},
		{
			Name: attr.NameLocalAddr, Kind: attr.KindString, Mode: attr.ModeReadOnly,
			Get: func() (attr.Value, xcmerr.Error) {
				addr, xerr := s.vt.GetLocalAddr(s.sess)
				return attr.Value{Kind: attr.KindString, S: addr}, xerr
			},
		},
		{
			Name: attr.NameRemoteAddr, Kind: attr.KindString, Mode: attr.ModeReadOnly,
			Get: func() (attr.Value, xcmerr.Error) {
				addr, xerr := s.vt.GetRemoteAddr(s.sess)
				return attr.Value{Kind: attr.KindString, S: addr}, xerr
			},
		},
		{
			Name: attr.NameBlocking, Kind: attr.KindBool, Mode: attr.ModeReadWrite,
			Get: func() (attr.Value, xcmerr.Error) {
				s.mu.Lock()
				defer s.mu.Unlock()
				return attr.Value{Kind: attr.KindBool, B: s.blocking}, nil
			},
			Set: func(v attr.Value) xcmerr.Error {
				s.SetBlocking(v.B)
				return nil
			},
		},
		{
			Name: attr.NameMaxMsgSize, Kind: attr.KindInt64, Mode: attr.ModeReadOnly,
			Get: func() (attr.Value, xcmerr.Error) {
				return attr.Value{Kind: attr.KindInt64, I: s.vt.MaxMsg(s.sess)}, nil
			},
		},
	}

	return append(out, s.counterAttrs()...)
}

func constString(v string) attr.Getter {
	return func() (attr.Value, xcmerr.Error) {
		return attr.Value{Kind: attr.KindString, S: v}, nil
	}
}

// counterAttrs exposes the four (messages, bytes) pairs of internal/counters
// as read-only i64 attributes, one selector function per field instead of
// eight hand-written near-duplicate closures.
func (s *Socket) counterAttrs() []attr.Attribute {
	type sel struct {
		name string
		pick func(counters.All) uint64
	}
	sels := []sel{
		{attr.NameFromAppMsgs, func(a counters.All) uint64 { return a.FromApp.Msgs }},
		{attr.NameFromAppBytes, func(a counters.All) uint64 { return a.FromApp.Bytes }},
		{attr.NameToAppMsgs, func(a counters.All) uint64 { return a.ToApp.Msgs }},
		{attr.NameToAppBytes, func(a counters.All) uint64 { return a.ToApp.Bytes }},
		{attr.NameFromLowerMsgs, func(a counters.All) uint64 { return a.FromLower.Msgs }},
		{attr.NameFromLowerBytes, func(a counters.All) uint64 { return a.FromLower.Bytes }},
		{attr.NameToLowerMsgs, func(a counters.All) uint64 { return a.ToLower.Msgs }},
		{attr.NameToLowerBytes, func(a counters.All) uint64 { return a.ToLower.Bytes }},
	}

	out := make([]attr.Attribute, 0, len(sels))
	for _, sl := range sels {
		pick := sl.pick
		out = append(out, attr.Attribute{
			Name: sl.name, Kind: attr.KindInt64, Mode: attr.ModeReadOnly,
			Get: func() (attr.Value, xcmerr.Error) {
				return attr.Value{Kind: attr.KindInt64, I: int64(pick(s.cnt.Snapshot()))}, nil
			},
		})
	}
	return out
}
