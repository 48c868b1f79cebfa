// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package codec implements the four entry compressions understood by the
// archive formats: RAW (identity), BZ2 (bzip2 with a size prefix), LZSS
// (fixed-parameter decode only), and SPB (see the spb subpackage).
package codec

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/luci/luci-go/common/errors"

	"github.com/playmer/rnscripter/internal/rnerr"
)

// Tag identifies one of the four compressions an archive entry may carry.
// It is a tagged variant, not an interface: extract is a dispatch over this
// single byte, not a set of dynamically-chosen implementations.
type Tag uint8

const (
	RAW  Tag = 0
	SPB  Tag = 1
	LZSS Tag = 2
	BZ2  Tag = 4
)

func (t Tag) String() string {
	switch t {
	case RAW:
		return "RAW"
	case SPB:
		return "SPB"
	case LZSS:
		return "LZSS"
	case BZ2:
		return "BZ2"
	default:
		return "unknown"
	}
}

// TagFromByte maps an on-disk NSA tag byte to a Tag, rejecting anything
// outside {0, 1, 2, 4}.
func TagFromByte(b byte) (Tag, error) {
	switch Tag(b) {
	case RAW, SPB, LZSS, BZ2:
		return Tag(b), nil
	default:
		return 0, rnerr.New(rnerr.UnknownCompressionTag, "nsa tag byte not in {0,1,2,4}")
	}
}

// DecodeBZ2 strips the 4-byte decompressed-size prefix (informational only,
// per spec) and bzip2-decompresses the remainder.
func DecodeBZ2(stored []byte) ([]byte, error) {
	if len(stored) < 4 {
		return nil, rnerr.New(rnerr.UnexpectedEof, "bz2 entry shorter than its size prefix")
	}
	zr, err := bzip2.NewReader(bytes.NewReader(stored[4:]), nil)
	if err != nil {
		return nil, rnerr.Wrap(rnerr.CodecFailure, err, "opening bzip2 stream")
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, rnerr.Wrap(rnerr.CodecFailure, err, "decompressing bzip2 stream")
	}
	return out, nil
}

// EncodeBZ2 writes the 4-byte little-endian decompressed size (matching the
// original tooling; the decoder ignores it) followed by a bzip2 stream
// compressed at the best available ratio.
func EncodeBZ2(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	size := uint32(len(raw))
	out.WriteByte(byte(size))
	out.WriteByte(byte(size >> 8))
	out.WriteByte(byte(size >> 16))
	out.WriteByte(byte(size >> 24))

	zw, err := bzip2.NewWriterLevel(&out, bzip2.BestCompression)
	if err != nil {
		return nil, errors.Annotate(err).Reason("opening bzip2 writer").Err()
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, rnerr.Wrap(rnerr.CodecFailure, err, "compressing bzip2 stream")
	}
	if err := zw.Close(); err != nil {
		return nil, rnerr.Wrap(rnerr.CodecFailure, err, "closing bzip2 stream")
	}
	return out.Bytes(), nil
}
