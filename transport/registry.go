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

package transport

import (
	"sort"
	"strings"
	"sync"
)

// MaxProtocols bounds the registry the way a static transport table is
// bounded at compile time. A transport package that calls Register beyond
// this after the bootstrap set (ux, uxf, tcp, tls, utls, sctp) is almost
// certainly a caller mistake, not a real new transport.
const MaxProtocols = 16

// Proto is one registered protocol tag, e.g. "tcp" in "tcp:192.168.1.1:1234".
type Proto struct {
	Name  string
	New   Constructor
	Match func(addr string) bool
}

type registry struct {
	mu    sync.RWMutex
	byTag map[string]Proto
	order []string
}

var global = &registry{byTag: make(map[string]Proto)}

// Register adds a protocol under name. It panics on a duplicate name or on
// exceeding MaxProtocols: both are programming errors caught at package-init
// time, not runtime conditions a caller can recover from.
func Register(name string, ctor Constructor, match func(addr string) bool) {
	global.mu.Lock()
	defer global.mu.Unlock()

	if _, exists := global.byTag[name]; exists {
		panic("transport: duplicate protocol registration: " + name)
	}
	if len(global.order) >= MaxProtocols {
		panic("transport: protocol registry capacity exceeded")
	}

	global.byTag[name] = Proto{Name: name, New: ctor, Match: match}
	global.order = append(global.order, name)
}

// Lookup resolves a protocol by its exact tag.
func Lookup(name string) (Proto, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	p, ok := global.byTag[name]
	return p, ok
}

// ByAddress resolves a protocol from a full address of the form
// "tag:rest", falling back to each registered Match predicate for tags
// that accept more than one address shape.
func ByAddress(addr string) (Proto, string, bool) {
	tag, rest, found := strings.Cut(addr, ":")
	if !found {
		return Proto{}, "", false
	}

	global.mu.RLock()
	defer global.mu.RUnlock()

	if p, ok := global.byTag[tag]; ok {
		if p.Match == nil || p.Match(addr) {
			return p, rest, true
		}
	}
	for _, name := range global.order {
		p := global.byTag[name]
		if p.Match != nil && p.Match(addr) {
			return p, rest, true
		}
	}
	return Proto{}, "", false
}

// Names returns every registered protocol tag, sorted.
func Names() []string {
	global.mu.RLock()
	defer global.mu.RUnlock()

	names := make([]string, len(global.order))
	copy(names, global.order)
	sort.Strings(names)
	return names
}

// reset is test-only: it clears the global registry so protocol
// registration tests don't leak state into each other or depend on
// import order.
func reset() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.byTag = make(map[string]Proto)
	global.order = nil
}
