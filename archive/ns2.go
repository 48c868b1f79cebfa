// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package archive

import (
	"context"
	"strings"

	"github.com/luci/luci-go/common/logging"

	"github.com/playmer/rnscripter/internal/codec"
	"github.com/playmer/rnscripter/internal/rnerr"
	"github.com/playmer/rnscripter/internal/vnio"
)

// ns2Compression infers a codec tag from a name's lowercase extension;
// NS2 carries no explicit per-entry tag byte.
func ns2Compression(name string) codec.Tag {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".nbz"):
		return codec.BZ2
	case strings.HasSuffix(lower, ".spb"):
		return codec.SPB
	default:
		return codec.RAW
	}
}

func parseNS2Header(ctx context.Context, s *vnio.Stream) (*Index, error) {
	baseOffset := s.Position()

	headerEndDelta, err := s.ReadU32LE()
	if err != nil {
		return nil, err
	}
	// header_end_delta marks where the loop should stop, but (per the
	// scenario this format was validated against) an entry's fields can
	// carry the position past that checkpoint rather than landing on it
	// exactly; the declared value is a loop bound, not the authoritative
	// body start. The actual post-terminator position is used for that.
	declaredHeaderEnd := baseOffset + int64(headerEndDelta)

	type nameSize struct {
		name string
		size uint32
	}
	var records []nameSize

	for s.Position() < declaredHeaderEnd-1 {
		name, err := s.ReadQuotedShiftJIS()
		if err != nil {
			return nil, err
		}
		size, err := s.ReadU32LE()
		if err != nil {
			return nil, err
		}
		records = append(records, nameSize{name, size})
	}

	if _, err := s.ReadU8(); err != nil { // terminator byte, value unchecked
		return nil, err
	}
	headerEnd := s.Position()
	logging.Debugf(ctx, "ns2 header: %d entries, header end at %d (declared %d)", len(records), headerEnd, declaredHeaderEnd)

	entries := make([]Entry, len(records))
	offset := headerEnd
	for i, rec := range records {
		tag := ns2Compression(rec.name)
		decompressed := int64(rec.size)
		if tag == codec.BZ2 || tag == codec.SPB {
			decompressed = UnknownSize
		}
		entries[i] = Entry{
			Name:             rec.name,
			Offset:           offset,
			Size:             int64(rec.size),
			Tag:              tag,
			DecompressedSize: decompressed,
		}
		offset += int64(rec.size)
	}

	return NewIndex(headerEnd, entries)
}

// WriteNS2 is unsupported: writing NS2 containers is left as commented-out,
// unfinished branches in the source this was distilled from. Guessing at
// the missing semantics would silently produce archives no real reader
// could open.
func WriteNS2(ctx context.Context) error {
	return rnerr.Unsupported
}
