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

package tcp_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/xcm/internal/counters"
	"github.com/nabbar/xcm/internal/readiness"
	"github.com/nabbar/xcm/transport"
	_ "github.com/nabbar/xcm/transport/tcp"
	"github.com/nabbar/xcm/xcmerr"
)

func TestTCP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "tcp suite")
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

var _ = Describe("[TC-TCP] tcp transport", func() {
	It("[TC-TCP-001] is registered under the tcp tag", func() {
		_, ok := transport.Lookup("tcp")
		Expect(ok).To(BeTrue())
	})

	It("[TC-TCP-002] binds an ephemeral port and round-trips a message", func() {
		proto, _ := transport.Lookup("tcp")

		srvVT := proto.New()
		srvSess, xerr := srvVT.Init(newEnv(), transport.KindServer)
		Expect(xerr).To(BeNil())
		Expect(srvVT.Server(srvSess, "127.0.0.1:0")).To(BeNil())
		defer func() { _ = srvVT.Close(srvSess) }()

		addr, xerr := srvVT.GetLocalAddr(srvSess)
		Expect(xerr).To(BeNil())
		Expect(addr).To(HavePrefix("tcp:127.0.0.1:"))

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
		Expect(connectEventually(cliVT, cliSess, addr[len("tcp:"):])).To(BeNil())
		defer func() { _ = cliVT.Close(cliSess) }()

		accSess := <-acceptedCh
		accVT := proto.New()
		defer func() { _ = accVT.Close(accSess) }()

		n, xerr := cliVT.Send(cliSess, []byte("hello-tcp"))
		Expect(xerr).To(BeNil())
		Expect(n).To(Equal(len("hello-tcp")))

		buf := make([]byte, 64)
		var got int
		Eventually(func() error {
			var rerr error
			got, rerr = receiveOnce(accVT, accSess, buf)
			return rerr
		}, time.Second, 5*time.Millisecond).Should(Succeed())
		Expect(string(buf[:got])).To(Equal("hello-tcp"))
	})

	It("[TC-TCP-003] rejects SetLocalAddr after Connect", func() {
		proto, _ := transport.Lookup("tcp")
		srvVT := proto.New()
		srvSess, _ := srvVT.Init(newEnv(), transport.KindServer)
		Expect(srvVT.Server(srvSess, "127.0.0.1:0")).To(BeNil())
		defer func() { _ = srvVT.Close(srvSess) }()
		addr, _ := srvVT.GetLocalAddr(srvSess)

		cliVT := proto.New()
		cliSess, _ := cliVT.Init(newEnv(), transport.KindConnection)
		Expect(connectEventually(cliVT, cliSess, addr[len("tcp:"):])).To(BeNil())
		defer func() { _ = cliVT.Close(cliSess) }()

		Expect(cliVT.SetLocalAddr(cliSess, "127.0.0.1:9999")).ToNot(BeNil())
	})

	It("[TC-TCP-004] exposes the keepalive attribute as read-write", func() {
		proto, _ := transport.Lookup("tcp")
		vt := proto.New()
		sess, _ := vt.Init(newEnv(), transport.KindConnection)

		surf := vt.Attrs(sess)
		a, ok := surf.Get("xcm.tcp_keepalive")
		Expect(ok).To(BeTrue())

		v, xerr := a.Get()
		Expect(xerr).To(BeNil())
		Expect(v.B).To(BeTrue())
	})

	It("[TC-TCP-005] Connect reports would-block while the dial is in flight, then resolves", func() {
		proto, _ := transport.Lookup("tcp")

		srvVT := proto.New()
		srvSess, _ := srvVT.Init(newEnv(), transport.KindServer)
		Expect(srvVT.Server(srvSess, "127.0.0.1:0")).To(BeNil())
		defer func() { _ = srvVT.Close(srvSess) }()
		addr, _ := srvVT.GetLocalAddr(srvSess)

		go func() {
			accVT := proto.New()
			accSess, _ := accVT.Init(newEnv(), transport.KindConnection)
			for {
				if err := accVT.Accept(accSess, srvSess); err == nil {
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()

		cliVT := proto.New()
		cliSess, _ := cliVT.Init(newEnv(), transport.KindConnection)
		defer func() { _ = cliVT.Close(cliSess) }()

		first := cliVT.Connect(cliSess, addr[len("tcp:"):])
		Expect(xcmerr.IsCode(first, xcmerr.CodeWouldBlock)).To(BeTrue())

		Expect(connectEventually(cliVT, cliSess, addr[len("tcp:"):])).To(BeNil())
	})
})

// connectEventually drives a deferred Connect to completion, retrying past
// CodeWouldBlock the same way a non-blocking caller's own poll loop would.
func connectEventually(vt transport.VTable, s transport.Session, addr string) xcmerr.Error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		xerr := vt.Connect(s, addr)
		if xerr == nil || !xcmerr.IsCode(xerr, xcmerr.CodeWouldBlock) {
			return xerr
		}
		if time.Now().After(deadline) {
			return xerr
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receiveOnce(vt transport.VTable, s transport.Session, buf []byte) (int, error) {
	n, xerr := vt.Receive(s, buf)
	if xerr != nil {
		return 0, xerr
	}
	if n == 0 {
		return 0, errEmpty
	}
	return n, nil
}

var errEmpty = &emptyReadError{}

type emptyReadError struct{}

func (*emptyReadError) Error() string { return "tcp: no message yet" }
