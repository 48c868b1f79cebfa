// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/playmer/rnscripter/archive"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rnarc",
		Short: "Inspect and build SAR/NSA/NS2 archives and SPB images",
	}

	root.AddCommand(newListCommand())
	root.AddCommand(newExtractCommand())
	root.AddCommand(newPackCommand())
	root.AddCommand(newSPBCommand())

	return root
}

// variantFromPath maps a file extension to an archive.Variant, the one
// piece of archive-type detection left to the caller per spec.md §6.
func variantFromPath(path string) (archive.Variant, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sar":
		return archive.SAR, nil
	case ".nsa":
		return archive.NSA, nil
	case ".ns2":
		return archive.NS2, nil
	default:
		return 0, fmt.Errorf("cannot infer archive type from extension of %q", path)
	}
}

// openArchive opens path, inferring its Variant from the extension. offset
// is added to header-relative addresses, for a container embedded inside a
// foreign prefix (spec.md's "NSA base offset parameter").
func openArchive(ctx context.Context, path, keyTablePath string, offset int64) (*archive.Archive, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	variant, err := variantFromPath(path)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	kt, err := loadKeyTable(keyTablePath)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	a, err := archive.Open(ctx, f, variant, offset, kt)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return a, f, nil
}
