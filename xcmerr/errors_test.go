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

package xcmerr_test

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/xcm/xcmerr"
)

func TestXcmErr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "xcmerr suite")
}

var _ = Describe("[TC-ERR] taxonomy errors", func() {
	Context("New", func() {
		It("[TC-ERR-001] carries the requested code", func() {
			e := xcmerr.New(xcmerr.CodeWouldBlock)
			Expect(e.Code()).To(Equal(xcmerr.CodeWouldBlock))
			Expect(e.Error()).To(Equal("would block"))
		})
	})

	Context("Wrap", func() {
		It("[TC-ERR-002] returns nil for a nil cause", func() {
			Expect(xcmerr.Wrap(xcmerr.CodeProtocolError, nil)).To(BeNil())
		})

		It("[TC-ERR-003] keeps the parent reachable via Unwrap", func() {
			cause := errors.New("short read")
			e := xcmerr.Wrap(xcmerr.CodeConnectionReset, cause)
			Expect(e.Parent()).To(Equal(cause))
			Expect(errors.Unwrap(error(e))).To(Equal(cause))
		})
	})

	Context("IsCode", func() {
		It("[TC-ERR-004] is idempotent across repeated reads of a latched error", func() {
			latched := xcmerr.New(xcmerr.CodeConnectionReset)
			Expect(xcmerr.IsCode(latched, xcmerr.CodeConnectionReset)).To(BeTrue())
			Expect(xcmerr.IsCode(latched, xcmerr.CodeConnectionReset)).To(BeTrue())
			Expect(xcmerr.IsCode(latched, xcmerr.CodeTimedOut)).To(BeFalse())
		})

		It("[TC-ERR-005] compares by code, not identity, through errors.Is", func() {
			a := xcmerr.New(xcmerr.CodeAccessDenied)
			b := xcmerr.New(xcmerr.CodeAccessDenied)
			Expect(errors.Is(error(a), error(b))).To(BeTrue())
		})
	})

	Context("WithOp", func() {
		It("[TC-ERR-006] prefixes the error message with the operation", func() {
			e := xcmerr.WithOp(xcmerr.New(xcmerr.CodeTimedOut), "connect")
			Expect(e.Op()).To(Equal("connect"))
			Expect(e.Error()).To(Equal("connect: timed out"))
		})
	})
})
