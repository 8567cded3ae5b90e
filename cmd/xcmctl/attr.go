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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nabbar/xcm/ctl"
	"github.com/nabbar/xcm/internal/attr"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <control-socket-path> <attribute-name>",
		Short: "Read one attribute from a live socket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := ctl.Dial(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = cli.Close() }()

			k, v, err := cli.GetAttr(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatValue(k, v))
			return nil
		},
	}
}

func newGetAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "getall <control-socket-path>",
		Short: "List every attribute name exposed by a live socket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := ctl.Dial(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = cli.Close() }()

			names, err := cli.GetAllAttrs()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func formatValue(k attr.Kind, v attr.Value) string {
	switch k {
	case attr.KindBool:
		return fmt.Sprintf("%t", v.B)
	case attr.KindInt64:
		return fmt.Sprintf("%d", v.I)
	case attr.KindString:
		return v.S
	case attr.KindBinary:
		return fmt.Sprintf("% x", v.Bin)
	default:
		return ""
	}
}
