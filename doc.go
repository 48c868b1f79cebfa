// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package rnscripter reads and writes the archive containers used by the
// NScripter/ONScripter family of visual novel engines: SAR, NSA, and NS2.
//
// The module is laid out by concern:
//
//   - archive: the three container formats (header parsing, entry lookup,
//     and writing). Open dispatches on Variant to the matching header
//     parser; Extract and ExtractAt decompress an entry's body according to
//     its tag.
//
//   - internal/vnio: positioned byte I/O with the single-byte substitution
//     cipher ("key table") some archives apply to their RAW entries, plus
//     the Shift-JIS string helpers the header formats use for entry names.
//
//   - internal/codec: the tagged compression union an entry's body is
//     stored under (RAW, SPB, LZSS, BZ2), including the hand-rolled LZSS
//     decoder and a bzip2 wrapper around github.com/dsnet/compress/bzip2.
//
//   - internal/codec/spb: the bespoke 24-bit image codec used for NSA/NS2
//     picture entries.
//
//   - cmd/rnarc: a cobra-based CLI (list/extract/pack/spb) over the above.
//
// SAR and NSA entries are offsets into the container as stored; NS2 adds a
// quoted, Shift-JIS entry name encoding and per-extension compression
// defaults. See SPEC_FULL.md for the exact wire layouts and DESIGN.md for
// how each piece is grounded against its reference implementation.
package rnscripter
