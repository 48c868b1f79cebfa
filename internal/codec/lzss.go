// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package codec

import (
	"github.com/playmer/rnscripter/internal/rnerr"
)

// LZSS fixed parameters (EI=8, EJ=4, P=0x00, N=256 per spec.md's
// normative parameter table). The offset field is 8 bits wide, so it
// addresses the N=256 ring buffer directly with no extra bits borrowed
// from the length byte - unlike the classic 12-bit-offset lzss.c variant,
// where the offset's high nibble rides along in the length byte.
const (
	lzssRingBits = 8
	lzssRingSize = 1 << lzssRingBits // N
	lzssLenBits  = 4                 // EJ
	lzssFillByte = 0x00              // P
)

// DecodeLZSS reverses the fixed-parameter LZSS stream described in
// spec.md §4.2/§6. Only decoding is implemented: the source's encoder
// path is unfinished upstream, so EncodeLZSS is Unsupported.
func DecodeLZSS(stored []byte) ([]byte, error) {
	var ring [lzssRingSize]byte
	for i := range ring {
		ring[i] = lzssFillByte
	}
	// Matches the classic Okumura scheme's starting write cursor,
	// N - F, leaving room for the first window of lookahead.
	r := lzssRingSize - (1 << lzssLenBits)

	var out []byte
	br := newLzssBitReader(stored)

	for {
		useLiteral, ok := br.readBit()
		if !ok {
			break
		}
		if useLiteral {
			c, ok := br.readByte()
			if !ok {
				break
			}
			out = append(out, c)
			ring[r] = c
			r = (r + 1) & (lzssRingSize - 1)
			continue
		}

		pos, ok := br.readByte()
		if !ok {
			return nil, rnerr.New(rnerr.CodecFailure, "lzss stream truncated mid-match")
		}
		lenField, ok := br.readBits(lzssLenBits)
		if !ok {
			return nil, rnerr.New(rnerr.CodecFailure, "lzss stream truncated mid-match")
		}
		count := int(lenField) + 1

		for k := 0; k < count; k++ {
			c := ring[(int(pos)+k)&(lzssRingSize-1)]
			out = append(out, c)
			ring[r] = c
			r = (r + 1) & (lzssRingSize - 1)
		}
	}

	return out, nil
}

// EncodeLZSS is unimplemented: the source this was distilled from leaves
// LZSS encoding as unfinished, commented-out branches. Guessing at the
// missing semantics would silently produce archives no real reader could
// open.
func EncodeLZSS([]byte) ([]byte, error) {
	return nil, rnerr.Unsupported
}

// lzssBitReader reads flag bits and byte-aligned fields from an LZSS
// stream. Flags are one bit per token (1 = literal, 0 = match), packed
// 8 to a byte, LSB-first per token within the flag byte - matching the
// control-byte convention of the classic LZSS bitstream this format
// descends from.
type lzssBitReader struct {
	buf      []byte
	pos      int
	flags    uint16
	flagBits int
}

func newLzssBitReader(buf []byte) *lzssBitReader {
	return &lzssBitReader{buf: buf}
}

func (r *lzssBitReader) readByte() (byte, bool) {
	if r.pos >= len(r.buf) {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}

func (r *lzssBitReader) readBits(n uint) (uint16, bool) {
	if r.pos >= len(r.buf) {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return uint16(b) & ((1 << n) - 1), true
}

// readBit reports the next flag bit: whether the upcoming token is a
// literal byte (true) or a position/length match (false). Flag bytes are
// consumed from the stream on demand, one every 8 tokens.
func (r *lzssBitReader) readBit() (bool, bool) {
	if r.flagBits == 0 {
		b, ok := r.readByte()
		if !ok {
			return false, false
		}
		r.flags = uint16(b)
		r.flagBits = 8
	}
	bit := r.flags&1 != 0
	r.flags >>= 1
	r.flagBits--
	return bit, true
}
