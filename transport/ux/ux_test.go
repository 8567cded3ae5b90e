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

//go:build linux

package ux_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/xcm/internal/counters"
	"github.com/nabbar/xcm/internal/readiness"
	"github.com/nabbar/xcm/transport"
	_ "github.com/nabbar/xcm/transport/ux"
)

func TestUX(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ux suite")
}

func newEnv(kind transport.Kind) *transport.Env {
	reg, err := readiness.New()
	Expect(err).ToNot(HaveOccurred())
	return &transport.Env{
		Kind:     kind,
		Counters: &counters.Counters{},
		Registry: reg,
		Conditions: func() transport.Condition {
			return transport.CondSendable | transport.CondReceivable
		},
	}
}

var _ = Describe("[TC-UX] local sequenced-packet transport", func() {
	It("[TC-UX-001] registers both ux and uxf tags", func() {
		_, ok := transport.Lookup("ux")
		Expect(ok).To(BeTrue())
		_, ok = transport.Lookup("uxf")
		Expect(ok).To(BeTrue())
	})

	It("[TC-UX-002] round-trips one message over the abstract namespace", func() {
		proto, _ := transport.Lookup("ux")
		addr := fmt.Sprintf("xcm-test-%d", time.Now().UnixNano())

		srvVT := proto.New()
		srvSess, xerr := srvVT.Init(newEnv(transport.KindServer), transport.KindServer)
		Expect(xerr).To(BeNil())
		Expect(srvVT.Server(srvSess, addr)).To(BeNil())
		defer func() { _ = srvVT.Close(srvSess) }()

		cliVT := proto.New()
		cliSess, xerr := cliVT.Init(newEnv(transport.KindConnection), transport.KindConnection)
		Expect(xerr).To(BeNil())

		acceptedCh := make(chan transport.Session, 1)
		go func() {
			accVT := proto.New()
			accSess, _ := accVT.Init(newEnv(transport.KindConnection), transport.KindConnection)
			for {
				if err := accVT.Accept(accSess, srvSess); err == nil {
					acceptedCh <- accSess
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()

		Expect(cliVT.Connect(cliSess, addr)).To(BeNil())
		accSess := <-acceptedCh

		n, xerr := cliVT.Send(cliSess, []byte("hello"))
		Expect(xerr).To(BeNil())
		Expect(n).To(Equal(5))

		buf := make([]byte, 64)
		accVT := proto.New()
		var got int
		Eventually(func() error {
			var rerr error
			got, rerr = readOnce(accVT, accSess, buf)
			return rerr
		}, time.Second, 5*time.Millisecond).Should(Succeed())
		Expect(string(buf[:got])).To(Equal("hello"))

		_ = cliVT.Close(cliSess)
		_ = accVT.Close(accSess)
	})

	It("[TC-UX-003] unlinks the filesystem path for uxf on close", func() {
		proto, _ := transport.Lookup("uxf")
		path := filepath.Join(os.TempDir(), fmt.Sprintf("xcm-uxf-test-%d.sock", time.Now().UnixNano()))

		vt := proto.New()
		sess, xerr := vt.Init(newEnv(transport.KindServer), transport.KindServer)
		Expect(xerr).To(BeNil())
		Expect(vt.Server(sess, path)).To(BeNil())

		_, statErr := os.Stat(path)
		Expect(statErr).ToNot(HaveOccurred())

		Expect(vt.Close(sess)).To(BeNil())

		_, statErr = os.Stat(path)
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	It("[TC-UX-004] rejects a zero-length send", func() {
		proto, _ := transport.Lookup("ux")
		vt := proto.New()
		sess, _ := vt.Init(newEnv(transport.KindConnection), transport.KindConnection)

		_, xerr := vt.Send(sess, nil)
		Expect(xerr).ToNot(BeNil())
	})

	It("[TC-UX-005] SetLocalAddr is rejected once the socket is bound", func() {
		proto, _ := transport.Lookup("ux")
		addr := fmt.Sprintf("xcm-test-setaddr-%d", time.Now().UnixNano())

		vt := proto.New()
		sess, _ := vt.Init(newEnv(transport.KindServer), transport.KindServer)
		Expect(vt.Server(sess, addr)).To(BeNil())
		defer func() { _ = vt.Close(sess) }()

		Expect(vt.SetLocalAddr(sess, "anything")).ToNot(BeNil())
	})
})

func readOnce(vt transport.VTable, s transport.Session, buf []byte) (int, error) {
	n, xerr := vt.Receive(s, buf)
	if xerr != nil {
		return 0, xerr
	}
	return n, nil
}
