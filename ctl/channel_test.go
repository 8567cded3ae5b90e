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

package ctl_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/xcm/ctl"
	"github.com/nabbar/xcm/internal/attr"
	"github.com/nabbar/xcm/xcmerr"
)

func TestCtl(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ctl suite")
}

var _ = Describe("[TC-CTL] wire protocol", func() {
	It("[TC-CTL-001] round-trips a request record", func() {
		buf, err := ctl.EncodeRequest(ctl.OpGetAttr, attr.NameTransport)
		Expect(err).ToNot(HaveOccurred())
		Expect(buf).To(HaveLen(ctl.ReqSize))

		op, name, err := ctl.DecodeRequest(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(op).To(Equal(ctl.OpGetAttr))
		Expect(name).To(Equal(attr.NameTransport))
	})

	It("[TC-CTL-002] rejects a name longer than NameMax", func() {
		long := make([]byte, ctl.NameMax+1)
		_, err := ctl.EncodeRequest(ctl.OpGetAttr, string(long))
		Expect(err).To(HaveOccurred())
	})

	It("[TC-CTL-003] round-trips a string attribute value", func() {
		resp := ctl.EncodeGetAttrResponse(attr.KindString, attr.Value{Kind: attr.KindString, S: "tcp"}, nil)
		status, k, v, err := ctl.DecodeValueResponse(resp)
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(ctl.StatusOK))
		Expect(k).To(Equal(attr.KindString))
		Expect(v.S).To(Equal("tcp"))
	})

	It("[TC-CTL-004] fails closed on an oversized string value", func() {
		oversized := make([]byte, ctl.ValueMax+1)
		resp := ctl.EncodeGetAttrResponse(attr.KindString, attr.Value{Kind: attr.KindString, S: string(oversized)}, nil)
		status, _, _, err := ctl.DecodeValueResponse(resp)
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(ctl.StatusCapacityExceeded))
	})

	It("[TC-CTL-005] round-trips a name list", func() {
		names := []string{attr.NameTransport, attr.NameBlocking, attr.NameMaxMsgSize}
		buf := ctl.EncodeNames(names)
		got, err := ctl.DecodeNames(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(Equal(names))
	})
})

var _ = Describe("[TC-CTL] channel", func() {
	It("[TC-CTL-010] derives a stable path from its inputs", func() {
		p := ctl.Path("/tmp/xcm-ctl", 123, 456)
		Expect(p).To(Equal(filepath.Join("/tmp/xcm-ctl", "xcm-123-456.ctl")))
	})

	It("[TC-CTL-011] serves a get-attr request end to end over the listener", func() {
		dir, err := os.MkdirTemp("", "xcm-ctl-test")
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = os.RemoveAll(dir) }()

		surf := attr.NewSurface(attr.Attribute{
			Name: attr.NameTransport,
			Kind: attr.KindString,
			Mode: attr.ModeReadOnly,
			Get: func() (attr.Value, xcmerr.Error) {
				return attr.Value{Kind: attr.KindString, S: "tcp"}, nil
			},
		})

		ch, err := ctl.New(dir, os.Getpid(), 1, func() *attr.Surface { return surf })
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = ch.Close() }()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 200; i++ {
				ch.Service(ctl.IdleSteps)
				time.Sleep(5 * time.Millisecond)
			}
		}()

		path := ctl.Path(dir, os.Getpid(), 1)
		var cli *ctl.Client
		Eventually(func() error {
			c, derr := ctl.Dial(path)
			if derr == nil {
				cli = c
			}
			return derr
		}, time.Second).Should(Succeed())
		defer func() { _ = cli.Close() }()

		_, v, err := cli.GetAttr(attr.NameTransport)
		Expect(err).ToNot(HaveOccurred())
		Expect(v.S).To(Equal("tcp"))

		names, err := cli.GetAllAttrs()
		Expect(err).ToNot(HaveOccurred())
		Expect(names).To(ContainElement(attr.NameTransport))

		<-done
	})
})
