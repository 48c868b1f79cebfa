// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/playmer/rnscripter/archive"
)

func newPackCommand() *cobra.Command {
	var bzip2Flag, spbFlag bool
	var offset int64

	cmd := &cobra.Command{
		Use:   "pack <src-dir> <out-archive>",
		Short: "Build a SAR or NSA archive from a directory tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srcDir, outPath := args[0], args[1]
			variant, err := variantFromPath(outPath)
			if err != nil {
				return err
			}
			if variant == archive.NS2 {
				return fmt.Errorf("writing NS2 archives is not supported")
			}

			var names []string
			if err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() {
					rel, err := filepath.Rel(srcDir, path)
					if err != nil {
						return err
					}
					names = append(names, rel)
				}
				return nil
			}); err != nil {
				return err
			}
			sort.Strings(names)

			out, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			switch variant {
			case archive.SAR:
				files := make([]archive.SARFile, len(names))
				for i, name := range names {
					f, err := os.Open(filepath.Join(srcDir, name))
					if err != nil {
						return err
					}
					defer f.Close()
					files[i] = archive.SARFile{Name: filepath.ToSlash(name), Body: f}
				}
				return archive.WriteSAR(ctx, out, files, offset)

			case archive.NSA:
				files := make([]archive.NSAFile, len(names))
				for i, name := range names {
					f, err := os.Open(filepath.Join(srcDir, name))
					if err != nil {
						return err
					}
					defer f.Close()
					files[i] = archive.NSAFile{Name: filepath.ToSlash(name), Body: f}
				}
				var enc archive.SPBEncoder
				if spbFlag {
					enc = encodeBMPToSPB
				}
				return archive.WriteNSA(ctx, out, files, bzip2Flag, spbFlag, enc, offset)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&bzip2Flag, "bzip2", false, "compress RIFF/BMP entries with bzip2 (NSA only)")
	cmd.Flags().BoolVar(&spbFlag, "spb", false, "compress BMP entries with the SPB image codec (NSA only)")
	cmd.Flags().Int64Var(&offset, "offset", 0, "extra zero bytes to reserve between the header and the first entry body")
	return cmd
}
