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

package counters_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/xcm/internal/counters"
)

func TestCounters(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "counters suite")
}

var _ = Describe("[TC-CNT] Counters", func() {
	It("[TC-CNT-001] starts idle and at zero", func() {
		c := &counters.Counters{}
		Expect(c.Idle()).To(BeTrue())
		s := c.Snapshot()
		Expect(s.FromApp.Msgs).To(BeZero())
	})

	It("[TC-CNT-002] records a send/receive round trip", func() {
		c := &counters.Counters{}
		c.AddFromApp(2)
		c.AddToLower(2)
		c.AddFromLower(2)
		c.AddToApp(2)

		s := c.Snapshot()
		Expect(s.FromApp).To(Equal(counters.Snapshot{Msgs: 1, Bytes: 2}))
		Expect(s.ToApp).To(Equal(counters.Snapshot{Msgs: 1, Bytes: 2}))
		Expect(c.Idle()).To(BeTrue())
	})

	It("[TC-CNT-003] is not idle while a send is still buffered", func() {
		c := &counters.Counters{}
		c.AddFromApp(5)
		Expect(c.Idle()).To(BeFalse())
	})

	It("[TC-CNT-004] is safe for concurrent increments", func() {
		c := &counters.Counters{}
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.AddFromApp(1)
			}()
		}
		wg.Wait()
		Expect(c.Snapshot().FromApp.Msgs).To(Equal(uint64(100)))
	})

	It("[TC-CNT-005] two sockets driven through the same sequence snapshot identically", func() {
		drive := func() counters.All {
			c := &counters.Counters{}
			c.AddFromApp(3)
			c.AddToLower(3)
			c.AddFromLower(3)
			c.AddToApp(3)
			return c.Snapshot()
		}

		got, want := drive(), drive()
		if diff := cmp.Diff(want, got); diff != "" {
			Fail("unexpected snapshot diff (-want +got):\n" + diff)
		}
	})
})
