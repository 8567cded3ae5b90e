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

//go:build linux && sctp

package sctp_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/xcm/internal/counters"
	"github.com/nabbar/xcm/internal/readiness"
	"github.com/nabbar/xcm/transport"
	_ "github.com/nabbar/xcm/transport/sctp"
	"github.com/nabbar/xcm/xcmerr"
)

func TestSCTP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "sctp suite")
}

func newEnv() *transport.Env {
	reg, err := readiness.New()
	Expect(err).ToNot(HaveOccurred())
	return &transport.Env{
		Counters: &counters.Counters{},
		Registry: reg,
		Conditions: func() transport.Condition {
			return transport.CondSendable | transport.CondReceivable
		},
	}
}

// These specs require a kernel with SCTP support loaded (modprobe sctp);
// they are gated behind the same sctp build tag as the transport itself
// and are skipped entirely otherwise.
var _ = Describe("[TC-SCTP] sctp transport", func() {
	It("[TC-SCTP-001] is registered under the sctp tag", func() {
		_, ok := transport.Lookup("sctp")
		Expect(ok).To(BeTrue())
	})

	It("[TC-SCTP-002] binds an ephemeral port and round-trips a message", func() {
		proto, ok := transport.Lookup("sctp")
		Expect(ok).To(BeTrue())

		srvVT := proto.New()
		srvSess, xerr := srvVT.Init(newEnv(), transport.KindServer)
		Expect(xerr).To(BeNil())
		if xerr := srvVT.Server(srvSess, "127.0.0.1:0"); xerr != nil {
			Skip("SCTP kernel module not available: " + xerr.Error())
		}
		defer func() { _ = srvVT.Close(srvSess) }()

		addr, xerr := srvVT.GetLocalAddr(srvSess)
		Expect(xerr).To(BeNil())

		acceptedCh := make(chan transport.Session, 1)
		go func() {
			accVT := proto.New()
			accSess, _ := accVT.Init(newEnv(), transport.KindConnection)
			for {
				if err := accVT.Accept(accSess, srvSess); err == nil {
					acceptedCh <- accSess
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()

		cliVT := proto.New()
		cliSess, xerr := cliVT.Init(newEnv(), transport.KindConnection)
		Expect(xerr).To(BeNil())
		Expect(cliVT.Connect(cliSess, addr[len("sctp:"):])).To(BeNil())
		defer func() { _ = cliVT.Close(cliSess) }()

		accSess := <-acceptedCh
		accVT := proto.New()
		defer func() { _ = accVT.Close(accSess) }()

		n, xerr := cliVT.Send(cliSess, []byte("hello-sctp"))
		Expect(xerr).To(BeNil())
		Expect(n).To(Equal(len("hello-sctp")))

		buf := make([]byte, 64)
		var got int
		Eventually(func() bool {
			var rerr xcmerr.Error
			got, rerr = accVT.Receive(accSess, buf)
			return rerr == nil && got > 0
		}, time.Second, 5*time.Millisecond).Should(BeTrue())
		Expect(string(buf[:got])).To(Equal("hello-sctp"))
	})
})
