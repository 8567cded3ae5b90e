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

package xcmconfig_test

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/xcm/xcmconfig"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "xcmconfig suite")
}

var _ = Describe("[TC-CFG] environment resolution", func() {
	AfterEach(func() {
		_ = os.Unsetenv("XCM_TLS_CERT")
		_ = os.Unsetenv("XCM_CTL")
	})

	It("[TC-CFG-001] reads XCM_TLS_CERT from the environment", func() {
		Expect(os.Setenv("XCM_TLS_CERT", "/tmp/xcm-cert-test")).To(Succeed())
		cfg := xcmconfig.FromEnv()
		Expect(cfg.TLSCertDir).To(Equal("/tmp/xcm-cert-test"))
	})

	It("[TC-CFG-002] derives namespaced cert file paths", func() {
		cfg := xcmconfig.Config{TLSCertDir: "/etc/xcm/tls"}
		cert, key, tc := cfg.CertPaths("red")
		Expect(cert).To(Equal("/etc/xcm/tls/cert_red.pem"))
		Expect(key).To(Equal("/etc/xcm/tls/key_red.pem"))
		Expect(tc).To(Equal("/etc/xcm/tls/tc_red.pem"))
	})

	It("[TC-CFG-003] the default namespace has no suffix", func() {
		cfg := xcmconfig.Config{TLSCertDir: "/etc/xcm/tls"}
		cert, _, _ := cfg.CertPaths("")
		Expect(cert).To(Equal("/etc/xcm/tls/cert.pem"))
	})
})
