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

package certs_test

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

	"github.com/nabbar/xcm/internal/certs"
)

func TestCerts(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "certs suite")
}

// selfSigned generates a throwaway self-signed cert/key PEM pair with the
// given serial number, so successive calls produce distinguishable content
// for hot-reload assertions.
func selfSigned(serial int64, cn string) (certPEM, keyPEM []byte) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).ToNot(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:         true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).ToNot(HaveOccurred())

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyDER, err := x509.MarshalECPrivateKey(key)
	Expect(err).ToNot(HaveOccurred())
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return
}

func writeBundle(dir string, serial int64, cn string) {
	certPEM, keyPEM := selfSigned(serial, cn)
	Expect(os.WriteFile(filepath.Join(dir, "cert.pem"), certPEM, 0o600)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "key.pem"), keyPEM, 0o600)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "tc.pem"), certPEM, 0o600)).To(Succeed())
}

var _ = Describe("[TC-CERT] certificate directory watcher", func() {
	It("[TC-CERT-001] fails with a protocol error when a file is missing", func() {
		dir := GinkgoT().TempDir()
		_, xerr := certs.NewWatcher(
			filepath.Join(dir, "cert.pem"),
			filepath.Join(dir, "key.pem"),
			filepath.Join(dir, "tc.pem"),
		)
		Expect(xerr).ToNot(BeNil())
	})

	It("[TC-CERT-002] loads a valid triple and exposes it as a Bundle", func() {
		dir := GinkgoT().TempDir()
		writeBundle(dir, 1, "xcm-test-1")

		w, xerr := certs.NewWatcher(
			filepath.Join(dir, "cert.pem"),
			filepath.Join(dir, "key.pem"),
			filepath.Join(dir, "tc.pem"),
		)
		Expect(xerr).To(BeNil())
		defer func() { _ = w.Close() }()

		b := w.Current()
		Expect(b.Cert.Certificate).ToNot(BeEmpty())
		Expect(b.TrustChain).ToNot(BeNil())
	})

	It("[TC-CERT-003] picks up a content change via atomic rename", func() {
		dir := GinkgoT().TempDir()
		writeBundle(dir, 1, "xcm-test-1")

		w, xerr := certs.NewWatcher(
			filepath.Join(dir, "cert.pem"),
			filepath.Join(dir, "key.pem"),
			filepath.Join(dir, "tc.pem"),
		)
		Expect(xerr).To(BeNil())
		defer func() { _ = w.Close() }()

		first := w.Current().TrustChain

		staging := filepath.Join(dir, "staging")
		Expect(os.MkdirAll(staging, 0o755)).To(Succeed())
		writeBundle(staging, 2, "xcm-test-2")
		for _, name := range []string{"cert.pem", "key.pem", "tc.pem"} {
			Expect(os.Rename(filepath.Join(staging, name), filepath.Join(dir, name))).To(Succeed())
		}

		Eventually(func() bool {
			return w.Current().TrustChain != first
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
	})
})
