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

package attr

import "sort"

// Surface is an ordered, named collection of Attribute entries. A socket
// builds one Surface from the generic set plus whatever its transport
// contributes; the UTLS hybrid transport additionally merges and rewrites
// the Surface of whichever inner socket is active.
type Surface struct {
	byName map[string]Attribute
	order  []string
}

// NewSurface builds a Surface from an ordered list of attributes. Later
// entries with a name already present replace earlier ones, which is how a
// transport-specific attribute can shadow a generic one if it ever needs to
// (none do today).
func NewSurface(attrs ...Attribute) *Surface {
	s := &Surface{byName: make(map[string]Attribute, len(attrs))}
	for _, a := range attrs {
		s.put(a)
	}
	return s
}

func (s *Surface) put(a Attribute) {
	if _, exists := s.byName[a.Name]; !exists {
		s.order = append(s.order, a.Name)
	}
	s.byName[a.Name] = a
}

// Add appends or replaces attributes in place.
func (s *Surface) Add(attrs ...Attribute) {
	for _, a := range attrs {
		s.put(a)
	}
}

// Merge returns a new Surface holding this surface's entries overlaid with
// other's (other wins on name collision). Used by the UTLS hybrid to present
// the active inner socket's attributes under the outer socket.
func (s *Surface) Merge(other *Surface) *Surface {
	out := NewSurface()
	for _, n := range s.order {
		out.put(s.byName[n])
	}
	if other != nil {
		for _, n := range other.order {
			out.put(other.byName[n])
		}
	}
	return out
}

// Get looks up an attribute by name.
func (s *Surface) Get(name string) (Attribute, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// Names returns every attribute name, sorted, for enumeration across both
// the generic and transport-specific sets.
func (s *Surface) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	sort.Strings(out)
	return out
}
