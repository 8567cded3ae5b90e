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

//go:build !windows

package readiness_test

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/xcm/internal/readiness"
)

func TestReadiness(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "readiness suite")
}

var _ = Describe("[TC-RDY] Registry", func() {
	var (
		reg        readiness.Registry
		r, w       *os.File
	)

	BeforeEach(func() {
		var err error
		reg, err = readiness.New()
		Expect(err).ToNot(HaveOccurred())

		r, w, err = os.Pipe()
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		_ = reg.Close()
		_ = r.Close()
		_ = w.Close()
	})

	It("[TC-RDY-001] exposes a stable fd", func() {
		fd1 := reg.Fd()
		fd2 := reg.Fd()
		Expect(fd1).To(Equal(fd2))
		Expect(fd1).To(BeNumerically(">=", 0))
	})

	It("[TC-RDY-002] Delete on an unregistered fd is a no-op", func() {
		Expect(reg.Delete(99999)).ToNot(HaveOccurred())
	})

	It("[TC-RDY-003] Add/Modify/Delete succeed for a real fd", func() {
		fd := int(r.Fd())
		Expect(reg.Add(fd, true, false)).ToNot(HaveOccurred())
		Expect(reg.Modify(fd, true, true)).ToNot(HaveOccurred())
		Expect(reg.Delete(fd)).ToNot(HaveOccurred())
	})

	It("[TC-RDY-004] Drain does not panic when nothing is pending", func() {
		Expect(func() { reg.Drain() }).ToNot(Panic())
	})

	It("[TC-RDY-005] registering interest on a writable fd does not error", func() {
		fd := int(w.Fd())
		Expect(reg.Add(fd, false, true)).ToNot(HaveOccurred())
	})
})
