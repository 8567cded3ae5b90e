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

// Package certs loads the TLS certificate/key/trust-chain triple from a
// namespaced directory layout and keeps the loaded Bundle current as the files
// are swapped on disk, via symlink rename, not
// in-place rewrite, so readers never observe a half-written file. Reload
// decides by content hash, never mtime, since an atomic symlink swap can
// leave mtimes unchanged or out of order across the three files.
package certs

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/nabbar/xcm/xcmerr"
)

// Bundle is one loaded cert/key/trust-chain triple.
type Bundle struct {
	Cert       tls.Certificate
	TrustChain *x509.CertPool
}

func load(certFile, keyFile, trustChainFile string) (Bundle, [3][32]byte, xcmerr.Error) {
	var sums [3][32]byte

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return Bundle{}, sums, xcmerr.Wrap(xcmerr.CodeProtocolError, err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return Bundle{}, sums, xcmerr.Wrap(xcmerr.CodeProtocolError, err)
	}
	tcPEM, err := os.ReadFile(trustChainFile)
	if err != nil {
		return Bundle{}, sums, xcmerr.Wrap(xcmerr.CodeProtocolError, err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return Bundle{}, sums, xcmerr.Wrap(xcmerr.CodeProtocolError, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(tcPEM) {
		return Bundle{}, sums, xcmerr.New(xcmerr.CodeProtocolError)
	}

	sums[0] = sha256.Sum256(certPEM)
	sums[1] = sha256.Sum256(keyPEM)
	sums[2] = sha256.Sum256(tcPEM)

	return Bundle{Cert: cert, TrustChain: pool}, sums, nil
}

// Watcher holds the live Bundle for one (certDir, namespace) pair and
// refreshes it when fsnotify reports the directory changed and the new
// file contents actually differ.
type Watcher struct {
	certFile, keyFile, trustChainFile string

	current atomic.Pointer[Bundle]
	sums    [3][32]byte
	mu      sync.Mutex

	fsw    *fsnotify.Watcher
	closed chan struct{}
}

// NewWatcher performs the initial load (failing as CodeProtocolError if any
// file is missing or unparseable) and starts
// watching the containing directory for subsequent swaps.
func NewWatcher(certFile, keyFile, trustChainFile string) (*Watcher, xcmerr.Error) {
	bundle, sums, xerr := load(certFile, keyFile, trustChainFile)
	if xerr != nil {
		return nil, xerr
	}

	w := &Watcher{
		certFile:       certFile,
		keyFile:        keyFile,
		trustChainFile: trustChainFile,
		sums:           sums,
		closed:         make(chan struct{}),
	}
	w.current.Store(&bundle)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		// Hot-reload is a convenience; a process that can't start an inotify
		// watch still has a perfectly usable certificate loaded once.
		return w, nil
	}
	dir := filepath.Dir(certFile)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return w, nil
	}
	w.fsw = fsw
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.closed:
			return
		case _, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.maybeReload()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) maybeReload() {
	bundle, sums, xerr := load(w.certFile, w.keyFile, w.trustChainFile)
	if xerr != nil {
		// A reload failure (e.g. observed mid-swap) keeps serving the last
		// good bundle; the next fsnotify event tries again.
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if sums == w.sums {
		return
	}
	w.sums = sums
	w.current.Store(&bundle)
}

// Current returns the most recently loaded Bundle.
func (w *Watcher) Current() Bundle {
	return *w.current.Load()
}

// Close stops the watch goroutine.
func (w *Watcher) Close() error {
	select {
	case <-w.closed:
		return nil
	default:
		close(w.closed)
	}
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
