// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package archive

import (
	"context"
	"io"

	"github.com/luci/luci-go/common/errors"
	"github.com/luci/luci-go/common/logging"

	"github.com/playmer/rnscripter/internal/codec"
	"github.com/playmer/rnscripter/internal/codec/spb"
	"github.com/playmer/rnscripter/internal/rnerr"
	"github.com/playmer/rnscripter/internal/vnio"
)

// Variant names one of the three container formats an Archive can wrap.
type Variant int

const (
	SAR Variant = iota
	NSA
	NS2
)

func (v Variant) String() string {
	switch v {
	case SAR:
		return "SAR"
	case NSA:
		return "NSA"
	case NS2:
		return "NS2"
	default:
		return "unknown"
	}
}

// Archive owns a single Byte I/O stream and the Index parsed from it. It
// exclusively owns the stream for its lifetime: concurrent extractions
// from the same Archive are not safe, since extraction repositions the
// stream.
type Archive struct {
	Variant Variant
	Index   *Index

	stream *vnio.Stream
}

// Open parses variant's header out of rw (starting at whatever position rw
// is currently positioned at) into an Index, without reading any entry
// bodies. offset is added on top of the header's own declared header-end
// delta when computing entry addresses, letting a container be opened from
// inside a larger file (e.g. an NSA payload appended after an executable,
// per the "NSA base offset parameter" supplemented feature); pass 0 when
// the container isn't embedded in a foreign prefix. NS2 headers carry no
// equivalent in the original tooling and ignore offset.
func Open(ctx context.Context, rw io.ReadWriteSeeker, variant Variant, offset int64, keyTable vnio.KeyTable) (*Archive, error) {
	s, err := vnio.NewStream(rw, keyTable)
	if err != nil {
		return nil, err
	}

	var idx *Index
	switch variant {
	case SAR:
		idx, err = parseSARHeader(ctx, s, offset)
	case NSA:
		idx, err = parseNSAHeader(ctx, s, offset)
	case NS2:
		idx, err = parseNS2Header(ctx, s)
	default:
		return nil, errors.Reason("unknown archive variant %(v)d").D("v", int(variant)).Err()
	}
	if err != nil {
		return nil, errors.Annotate(err).Reason("parsing %(variant)s header").D("variant", variant.String()).Err()
	}
	logging.Debugf(ctx, "opened %s archive: %d entries, header ends at %d", variant, idx.Len(), idx.HeaderEndOffset)

	return &Archive{Variant: variant, Index: idx, stream: s}, nil
}

// Extract materializes the named entry's decompressed bytes, dispatching
// on its compression tag. This is the extract(entry) contract: a plain
// match over a 4-case tagged variant, no dynamic dispatch.
func (a *Archive) Extract(ctx context.Context, name string) ([]byte, error) {
	entry, ok := a.Index.Lookup(name)
	if !ok {
		return nil, errors.Reason("no such entry %(name)q").D("name", name).Err()
	}
	return a.extractEntry(ctx, entry)
}

// ExtractImage is Extract for an SPB entry, returning the decoded image
// (width, height, and pixels) rather than the flattened byte sequence, for
// callers that need dimensions to re-serialize the pixels as BMP or
// another image format.
func (a *Archive) ExtractImage(ctx context.Context, name string) (spb.Image, error) {
	entry, ok := a.Index.Lookup(name)
	if !ok {
		return spb.Image{}, errors.Reason("no such entry %(name)q").D("name", name).Err()
	}
	if entry.Tag != codec.SPB {
		return spb.Image{}, errors.Reason("entry %(name)q is not an SPB image").D("name", name).Err()
	}
	logging.Debugf(ctx, "decoding spb entry %q (%d bytes)", name, entry.Size)
	raw, err := a.stream.ReadSlice(entry.Offset, entry.Size)
	if err != nil {
		return spb.Image{}, err
	}
	return spb.Decode(raw)
}

// ExtractAt is Extract by index position rather than by name.
func (a *Archive) ExtractAt(ctx context.Context, i int) ([]byte, error) {
	if i < 0 || i >= len(a.Index.Entries) {
		return nil, errors.Reason("entry index %(i)d out of range").D("i", i).Err()
	}
	return a.extractEntry(ctx, a.Index.Entries[i])
}

func (a *Archive) extractEntry(ctx context.Context, entry Entry) ([]byte, error) {
	logging.Debugf(ctx, "extracting %q: tag=%s offset=%d size=%d", entry.Name, entry.Tag, entry.Offset, entry.Size)
	switch entry.Tag {
	case codec.RAW:
		return a.stream.ReadSliceThroughKeyTable(entry.Offset, entry.Size)

	case codec.SPB:
		raw, err := a.stream.ReadSlice(entry.Offset, entry.Size)
		if err != nil {
			return nil, err
		}
		img, err := spb.Decode(raw)
		if err != nil {
			return nil, err
		}
		return bgrPixelsToBytes(img), nil

	case codec.LZSS:
		raw, err := a.stream.ReadSliceThroughKeyTable(entry.Offset, entry.Size)
		if err != nil {
			return nil, err
		}
		return codec.DecodeLZSS(raw)

	case codec.BZ2:
		raw, err := a.stream.ReadSlice(entry.Offset, entry.Size)
		if err != nil {
			return nil, err
		}
		return codec.DecodeBZ2(raw)

	default:
		// Unreachable after a successful parse: TagFromByte already
		// rejects anything outside {RAW, SPB, LZSS, BZ2}.
		return nil, rnerr.New(rnerr.UnknownCompressionTag, "entry carries an unrecognized compression tag")
	}
}

func bgrPixelsToBytes(img spb.Image) []byte {
	out := make([]byte, 0, len(img.Pixels)*3)
	for _, px := range img.Pixels {
		out = append(out, px[0], px[1], px[2])
	}
	return out
}
