// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"

	"github.com/playmer/rnscripter/archive"
	"github.com/playmer/rnscripter/internal/codec"
)

func newExtractCommand() *cobra.Command {
	var keyTablePath, outDir string
	var offset int64
	var names []string

	cmd := &cobra.Command{
		Use:   "extract <archive>",
		Short: "Extract one, several, or all entries from an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, f, err := openArchive(ctx, args[0], keyTablePath, offset)
			if err != nil {
				return err
			}
			defer f.Close()

			targets := names
			if len(targets) == 0 {
				for _, e := range a.Index.Entries {
					targets = append(targets, e.Name)
				}
			}

			for _, name := range targets {
				dest := filepath.Join(outDir, filepath.FromSlash(name))
				data, dest, err := extractOne(ctx, a, name, dest)
				if err != nil {
					return fmt.Errorf("extracting %q: %w", name, err)
				}
				if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
					return err
				}
				if err := os.WriteFile(dest, data, 0o644); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyTablePath, "keytable", "", "path to a key table file or executable to scan for one")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory to extract into")
	cmd.Flags().Int64Var(&offset, "offset", 0, "extra bytes between the header's declared end and the first entry body (SAR/NSA)")
	cmd.Flags().StringSliceVar(&names, "name", nil, "entry names to extract (default: all)")
	return cmd
}

// extractOne materializes name's bytes. SPB entries are re-serialized as
// BMP (swapping the destination's extension) since the archive's
// extract contract hands back a flat pixel buffer, not a file format;
// everything else extracts verbatim.
func extractOne(ctx context.Context, a *archive.Archive, name, dest string) (data []byte, outPath string, err error) {
	entry, ok := a.Index.Lookup(name)
	if !ok {
		return nil, dest, fmt.Errorf("no such entry %q", name)
	}
	if entry.Tag != codec.SPB {
		data, err = a.Extract(ctx, name)
		return data, dest, err
	}

	img, err := a.ExtractImage(ctx, name)
	if err != nil {
		return nil, dest, err
	}
	ext := filepath.Ext(dest)
	bmpPath := dest[:len(dest)-len(ext)] + ".bmp"
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, spbImageToGo(img)); err != nil {
		return nil, dest, err
	}
	return buf.Bytes(), bmpPath, nil
}
