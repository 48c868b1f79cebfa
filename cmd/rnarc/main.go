// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command rnarc lists, extracts, and packs SAR/NSA archives, and
// converts single SPB images to and from raw pixel buffers.
package main

import (
	"fmt"
	"os"

	"github.com/playmer/rnscripter/internal/vnio"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rnarc:", err)
		os.Exit(1)
	}
}

// loadKeyTable resolves the --keytable flag to a KeyTable: the identity
// table when unset, a flat key table when the file is exactly 256 bytes, or
// a scan for an embedded permutation for any other size (e.g. a game
// executable).
func loadKeyTable(path string) (vnio.KeyTable, error) {
	if path == "" {
		return vnio.NewIdentityKeyTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return vnio.KeyTable{}, err
	}
	if len(raw) == 256 {
		return vnio.LoadKeyTableFromBytes(raw)
	}
	return vnio.ScanKeyTableFromExecutable(raw)
}
