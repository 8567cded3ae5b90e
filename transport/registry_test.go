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
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTransport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "transport suite")
}

func stubCtor() VTable { return nil }

var _ = Describe("[TC-TP] protocol registry", func() {
	BeforeEach(func() {
		reset()
	})

	AfterEach(func() {
		reset()
	})

	It("[TC-TP-001] registers and looks up a protocol by exact tag", func() {
		Register("tcp", stubCtor, nil)

		p, ok := Lookup("tcp")
		Expect(ok).To(BeTrue())
		Expect(p.Name).To(Equal("tcp"))
	})

	It("[TC-TP-002] rejects a duplicate name", func() {
		Register("tcp", stubCtor, nil)
		Expect(func() { Register("tcp", stubCtor, nil) }).To(Panic())
	})

	It("[TC-TP-003] resolves ByAddress from the leading tag", func() {
		Register("tcp", stubCtor, nil)

		p, rest, ok := ByAddress("tcp:192.168.1.1:1234")
		Expect(ok).To(BeTrue())
		Expect(p.Name).To(Equal("tcp"))
		Expect(rest).To(Equal("192.168.1.1:1234"))
	})

	It("[TC-TP-004] falls back to a Match predicate for ambiguous tags", func() {
		Register("utls", stubCtor, func(addr string) bool {
			return addr == "utls:special"
		})

		p, _, ok := ByAddress("utls:special")
		Expect(ok).To(BeTrue())
		Expect(p.Name).To(Equal("utls"))
	})

	It("[TC-TP-005] ByAddress fails closed on an unregistered tag", func() {
		_, _, ok := ByAddress("nope:foo")
		Expect(ok).To(BeFalse())
	})

	It("[TC-TP-006] Names returns registered tags sorted", func() {
		Register("tcp", stubCtor, nil)
		Register("sctp", stubCtor, nil)

		Expect(Names()).To(Equal([]string{"sctp", "tcp"}))
	})

	It("[TC-TP-007] enforces the registration capacity", func() {
		for i := 0; i < MaxProtocols; i++ {
			Register(string(rune('a'+i)), stubCtor, nil)
		}
		Expect(func() { Register("overflow", stubCtor, nil) }).To(Panic())
	})
})
