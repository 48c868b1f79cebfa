// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var keyTablePath string
	var offset int64

	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List the entries in an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, f, err := openArchive(cmd.Context(), args[0], keyTablePath, offset)
			if err != nil {
				return err
			}
			defer f.Close()

			for _, e := range a.Index.Entries {
				fmt.Printf("%-6s offset=%-10d size=%-10d %s\n", e.Tag, e.Offset, e.Size, e.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyTablePath, "keytable", "", "path to a key table file or executable to scan for one")
	cmd.Flags().Int64Var(&offset, "offset", 0, "extra bytes between the header's declared end and the first entry body (SAR/NSA)")
	return cmd
}
