// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package archive implements the SAR, NSA, and NS2 container formats: a
// parsed Index over entries, extraction through the codec package, and
// bit-exact SAR/NSA writers.
package archive

import (
	"github.com/luci/luci-go/common/data/stringset"
	"github.com/luci/luci-go/common/errors"

	"github.com/playmer/rnscripter/internal/codec"
)

// Entry is one record of an archive's index: a name, its location and
// stored size within the container, the compression it's stored under, and
// (when known) its decompressed size.
type Entry struct {
	Name   string
	Offset int64
	Size   int64
	Tag    codec.Tag

	// DecompressedSize is unknown for SPB and BZ2 entries (-1), mandatory
	// for LZSS, and always equal to Size for RAW.
	DecompressedSize int64
}

// UnknownSize marks an Entry whose decompressed size isn't recorded on
// disk.
const UnknownSize int64 = -1

// Index is an ordered sequence of entries, insertion order preserved (it
// is significant for container round-trip), plus a name to position
// lookup and the byte offset at which entry bodies begin.
type Index struct {
	Entries         []Entry
	HeaderEndOffset int64

	byName map[string]int
}

// NewIndex builds an Index from entries in container order, rejecting
// duplicate names.
func NewIndex(headerEnd int64, entries []Entry) (*Index, error) {
	names := stringset.New(len(entries))
	byName := make(map[string]int, len(entries))
	for i, e := range entries {
		if !names.Add(e.Name) {
			return nil, errors.Reason("duplicate entry name %(name)q").D("name", e.Name).Err()
		}
		byName[e.Name] = i
	}
	return &Index{Entries: entries, HeaderEndOffset: headerEnd, byName: byName}, nil
}

// Lookup returns the entry named name and whether it was found.
func (idx *Index) Lookup(name string) (Entry, bool) {
	i, ok := idx.byName[name]
	if !ok {
		return Entry{}, false
	}
	return idx.Entries[i], true
}

// Len reports the number of entries in the index.
func (idx *Index) Len() int { return len(idx.Entries) }
