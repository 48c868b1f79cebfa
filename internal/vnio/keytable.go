// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package vnio

import (
	"github.com/luci/luci-go/common/errors"
)

// LoadKeyTableFromBytes interprets a flat 256-byte file as a KeyTable. It
// does not validate that the bytes form a permutation; callers that need
// that guarantee should use ValidatePermutation.
func LoadKeyTableFromBytes(raw []byte) (KeyTable, error) {
	var k KeyTable
	if len(raw) < len(k) {
		return k, errors.Reason("key table file too short: %(n)d bytes, want 256").
			D("n", len(raw)).Err()
	}
	copy(k[:], raw[:len(k)])
	return k, nil
}

// ValidatePermutation reports whether k is a permutation of 0..256, per
// spec.md's key-table invariant.
func ValidatePermutation(k KeyTable) bool {
	var seen [256]bool
	for _, b := range k {
		if seen[b] {
			return false
		}
		seen[b] = true
	}
	return true
}

// ScanKeyTableFromExecutable scans raw (the contents of an executable or
// any other file) for the longest run of 256 contiguous bytes that are
// pairwise distinct, i.e. the longest prefix-contiguous permutation
// embedded anywhere in the file. It returns the KeyTable built from the
// first such run found, or an error if no 256-byte window of distinct
// bytes exists.
//
// This mirrors the original tooling's fallback for key tables that were
// never extracted to a standalone file and instead live inside the game
// executable that embeds them.
func ScanKeyTableFromExecutable(raw []byte) (KeyTable, error) {
	const want = 256
	if len(raw) < want {
		return KeyTable{}, errors.Reason("file too short to contain a key table: %(n)d bytes").
			D("n", len(raw)).Err()
	}

	// Slide a 256-byte window, tracking a running count of duplicate
	// byte values inside it via a histogram; advance the window by one
	// byte at a time and keep the first window with zero duplicates.
	var counts [256]int
	dupCount := 0

	addByte := func(b byte) {
		counts[b]++
		if counts[b] == 2 {
			dupCount++
		}
	}
	removeByte := func(b byte) {
		if counts[b] == 2 {
			dupCount--
		}
		counts[b]--
	}

	for i := 0; i < want; i++ {
		addByte(raw[i])
	}
	if dupCount == 0 {
		var k KeyTable
		copy(k[:], raw[:want])
		return k, nil
	}

	for start := 1; start+want <= len(raw); start++ {
		removeByte(raw[start-1])
		addByte(raw[start+want-1])
		if dupCount == 0 {
			var k KeyTable
			copy(k[:], raw[start:start+want])
			return k, nil
		}
	}

	return KeyTable{}, errors.New("no 256-byte permutation window found in file")
}
