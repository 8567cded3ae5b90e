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

package tls_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/xcm/internal/counters"
	"github.com/nabbar/xcm/internal/readiness"
	"github.com/nabbar/xcm/transport"
	_ "github.com/nabbar/xcm/transport/tls"
)

func TestTLS(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "tls suite")
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

func writeTestCertDir(dir string) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).ToNot(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "xcm-tls-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:         true,
		DNSNames:     []string{"localhost"},
		SubjectKeyId: []byte{0xAA, 0xBB},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).ToNot(HaveOccurred())

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	Expect(err).ToNot(HaveOccurred())
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	Expect(os.WriteFile(filepath.Join(dir, "cert.pem"), certPEM, 0o600)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "key.pem"), keyPEM, 0o600)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "tc.pem"), certPEM, 0o600)).To(Succeed())
}

var _ = Describe("[TC-TLS] tls transport", func() {
	It("[TC-TLS-001] is registered under the tls tag", func() {
		_, ok := transport.Lookup("tls")
		Expect(ok).To(BeTrue())
	})

	It("[TC-TLS-002] Init fails with a protocol error when no cert material exists", func() {
		dir := GinkgoT().TempDir()
		Expect(os.Setenv("XCM_TLS_CERT", dir)).To(Succeed())
		defer func() { _ = os.Unsetenv("XCM_TLS_CERT") }()

		proto, _ := transport.Lookup("tls")
		vt := proto.New()
		_, xerr := vt.Init(newEnv(), transport.KindConnection)
		Expect(xerr).ToNot(BeNil())
	})

	It("[TC-TLS-003] Init succeeds once cert/key/trust-chain files exist", func() {
		dir := GinkgoT().TempDir()
		writeTestCertDir(dir)
		Expect(os.Setenv("XCM_TLS_CERT", dir)).To(Succeed())
		defer func() { _ = os.Unsetenv("XCM_TLS_CERT") }()

		proto, _ := transport.Lookup("tls")
		vt := proto.New()
		sess, xerr := vt.Init(newEnv(), transport.KindServer)
		Expect(xerr).To(BeNil())
		Expect(sess).ToNot(BeNil())
		defer func() { _ = vt.Close(sess) }()
	})
})
