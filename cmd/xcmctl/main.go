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

// Command xcmctl is a small operator CLI over the introspection channel: it
// lists live sockets' control sockets under a process's control directory
// and queries their attribute surface, without touching the owning
// process's memory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/xcm/xcmconfig"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xcmctl",
		Short:         "Inspect live xcm sockets from outside their owning process",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("ctl-dir", "", "control-socket directory (defaults to "+xcmconfig.EnvCtlDir+" resolution)")
	_ = viper.BindPFlag("ctl-dir", root.PersistentFlags().Lookup("ctl-dir"))

	root.AddCommand(newListCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newGetAllCmd())
	return root
}

func resolveCtlDir() string {
	if v := viper.GetString("ctl-dir"); v != "" {
		return v
	}
	return xcmconfig.FromEnv().CtlDir
}
