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

// Package xcmconfig resolves the handful of directory paths xcm reads from
// its environment, with viper bound in so
// a host application can override them from a config file or flags instead
// of bare env vars.
package xcmconfig

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	// EnvTLSCertDir names the directory holding cert_<ns>.pem, key_<ns>.pem,
	// tc_<ns>.pem.
	EnvTLSCertDir = "XCM_TLS_CERT"
	// EnvCtlDir names the directory the introspection channel binds its
	// per-socket control sockets under.
	EnvCtlDir = "XCM_CTL"

	defaultTLSCertDir = "/etc/xcm/tls"
	defaultCtlDir     = "/run/xcm/ctl"
)

// Config holds the resolved directory paths for one process.
type Config struct {
	TLSCertDir string
	CtlDir     string
}

// FromEnv builds a Config from the environment, falling back to a
// user-writable directory under the home folder when the system-wide
// control directory isn't usable, an env-var-with-home-fallback convention
// for unprivileged deployments.
func FromEnv() Config {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetDefault("XCM_TLS_CERT", defaultTLSCertDir)
	v.SetDefault("XCM_CTL", defaultCtlDir)

	cfg := Config{
		TLSCertDir: v.GetString(EnvTLSCertDir),
		CtlDir:     v.GetString(EnvCtlDir),
	}

	if !writable(cfg.CtlDir) {
		if home, err := homedir.Dir(); err == nil {
			cfg.CtlDir = filepath.Join(home, ".xcm", "ctl")
		}
	}
	return cfg
}

func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".xcm-write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	_ = f.Close()
	_ = os.Remove(probe)
	return true
}

// CertPaths returns the cert/key/trust-chain file paths for namespace ns
// (empty string selects the default namespace).
func (c Config) CertPaths(ns string) (cert, key, trustChain string) {
	suffix := ns
	if suffix != "" {
		suffix = "_" + suffix
	}
	return filepath.Join(c.TLSCertDir, "cert"+suffix+".pem"),
		filepath.Join(c.TLSCertDir, "key"+suffix+".pem"),
		filepath.Join(c.TLSCertDir, "tc"+suffix+".pem")
}

// BindViper lets a host application register these keys against its own
// viper instance (e.g. to source them from a config file instead of env
// vars), returning a Config read back from v.
func BindViper(v *viper.Viper) Config {
	v.SetDefault(EnvTLSCertDir, defaultTLSCertDir)
	v.SetDefault(EnvCtlDir, defaultCtlDir)
	return Config{
		TLSCertDir: v.GetString(EnvTLSCertDir),
		CtlDir:     v.GetString(EnvCtlDir),
	}
}
