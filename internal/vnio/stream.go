// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package vnio implements the positioned, keytable-substituted byte I/O
// shared by the SAR/NSA/NS2 parsers and writers: fixed-width big/little
// endian integers, NUL-terminated and quoted Shift-JIS strings, and the
// offset-addressed slice reads the compression codecs consume.
//
// A Stream owns a single io.ReadWriteSeeker for its lifetime; it is not
// safe for concurrent use, matching the archive's single-threaded,
// cooperative resource model.
package vnio

import (
	"io"
	"strings"
	"unicode"

	"github.com/luci/luci-go/common/errors"
	"github.com/luci/luci-go/common/iotools"
	"golang.org/x/text/encoding/japanese"

	"github.com/playmer/rnscripter/internal/rnerr"
)

// KeyTable is a 256-entry byte substitution table. Identity is the
// untouched table built by NewIdentityKeyTable.
type KeyTable [256]byte

// NewIdentityKeyTable returns the no-op permutation [0, 1, ..., 255].
func NewIdentityKeyTable() KeyTable {
	var k KeyTable
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

// Stream is a positioned reader/writer over a seekable byte source, with an
// optional keytable substitution applied to bytes as they cross the read
// path. Writes never apply the keytable (see SPEC_FULL.md's "Keytable on
// writes" open question).
type Stream struct {
	rw       io.ReadWriteSeeker
	keyTable KeyTable
	pos      int64
}

// NewStream wraps rw for positioned, keytable-aware access, starting at
// whatever position rw is currently at (callers opening a fresh writer
// should pass a stream at offset 0).
func NewStream(rw io.ReadWriteSeeker, keyTable KeyTable) (*Stream, error) {
	pos, err := rw.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Annotate(err).Reason("getting initial stream position").Err()
	}
	return &Stream{rw: rw, keyTable: keyTable, pos: pos}, nil
}

// Position returns the stream's current absolute byte offset.
func (s *Stream) Position() int64 { return s.pos }

// Whence mirrors io.Seeker's constants for Seek.
type Whence = int

// Seek repositions the stream. whence is one of io.SeekStart, io.SeekCurrent
// or io.SeekEnd.
func (s *Stream) Seek(offset int64, whence Whence) (int64, error) {
	pos, err := s.rw.Seek(offset, whence)
	if err != nil {
		return 0, errors.Annotate(err).Reason("seeking stream").Err()
	}
	s.pos = pos
	return pos, nil
}

func (s *Stream) readRaw(buf []byte) error {
	if _, err := io.ReadFull(s.rw, buf); err != nil {
		return rnerr.Wrap(rnerr.UnexpectedEof, err, "reading fixed-width field")
	}
	s.pos += int64(len(buf))
	return nil
}

func (s *Stream) substitute(buf []byte) {
	for i, b := range buf {
		buf[i] = s.keyTable[b]
	}
}

// ReadU8 reads one keytable-substituted byte.
func (s *Stream) ReadU8() (byte, error) {
	var buf [1]byte
	if err := s.readRaw(buf[:]); err != nil {
		return 0, err
	}
	s.substitute(buf[:])
	return buf[0], nil
}

// ReadU16BE reads a big-endian uint16, keytable-substituted byte by byte
// before being interpreted.
func (s *Stream) ReadU16BE() (uint16, error) {
	var buf [2]byte
	if err := s.readRaw(buf[:]); err != nil {
		return 0, err
	}
	s.substitute(buf[:])
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// ReadU32BE reads a big-endian uint32, keytable-substituted.
func (s *Stream) ReadU32BE() (uint32, error) {
	var buf [4]byte
	if err := s.readRaw(buf[:]); err != nil {
		return 0, err
	}
	s.substitute(buf[:])
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}

// ReadU32LE reads a little-endian uint32, keytable-substituted.
func (s *Stream) ReadU32LE() (uint32, error) {
	var buf [4]byte
	if err := s.readRaw(buf[:]); err != nil {
		return 0, err
	}
	s.substitute(buf[:])
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
}

var shiftJIS = japanese.ShiftJIS.NewDecoder()
var shiftJISEnc = japanese.ShiftJIS.NewEncoder()

func decodeShiftJIS(raw []byte) (string, error) {
	out, err := shiftJIS.Bytes(raw)
	if err != nil {
		return "", rnerr.Wrap(rnerr.BadString, err, "decoding shift-jis")
	}
	// The x/text decoder substitutes unmappable bytes with U+FFFD instead
	// of erroring; spec.md treats that substitution itself as the failure.
	if strings.ContainsRune(string(out), unicode.ReplacementChar) {
		return "", rnerr.New(rnerr.BadString, "shift-jis decode produced a replacement character")
	}
	return string(out), nil
}

// ReadShiftJIS reads keytable-substituted bytes until a NUL terminator and
// decodes them as Shift-JIS.
func (s *Stream) ReadShiftJIS() (string, error) {
	var raw []byte
	for {
		b, err := s.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		raw = append(raw, b)
	}
	return decodeShiftJIS(raw)
}

// ReadQuotedShiftJIS requires the next byte to be '"', reads bytes until the
// next '"', and decodes them as Shift-JIS.
func (s *Stream) ReadQuotedShiftJIS() (string, error) {
	open, err := s.ReadU8()
	if err != nil {
		return "", err
	}
	if open != '"' {
		return "", rnerr.New(rnerr.BadString, "missing opening quote in quoted shift-jis string")
	}

	var raw []byte
	for {
		b, err := s.ReadU8()
		if err != nil {
			return "", err
		}
		if b == '"' {
			break
		}
		raw = append(raw, b)
	}
	return decodeShiftJIS(raw)
}

// ReadSlice seeks to offset and reads size raw (non-substituted) bytes.
// Used by codecs that interpret the bytes themselves (SPB, the bzip2
// prefix).
func (s *Stream) ReadSlice(offset, size int64) ([]byte, error) {
	if _, err := s.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if err := s.readRaw(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadSliceThroughKeyTable is ReadSlice followed by a keytable substitution
// of every byte. Used for RAW and LZSS payloads.
func (s *Stream) ReadSliceThroughKeyTable(offset, size int64) ([]byte, error) {
	buf, err := s.ReadSlice(offset, size)
	if err != nil {
		return nil, err
	}
	s.substitute(buf)
	return buf, nil
}

func (s *Stream) writeRaw(buf []byte) error {
	if _, err := s.rw.Write(buf); err != nil {
		return errors.Annotate(err).Reason("writing %(n)d bytes").D("n", len(buf)).Err()
	}
	s.pos += int64(len(buf))
	return nil
}

// WriteU8 writes one byte. Writes are never keytable-substituted (see the
// package doc).
func (s *Stream) WriteU8(v byte) error {
	return s.writeRaw([]byte{v})
}

// WriteU16BE writes a big-endian uint16.
func (s *Stream) WriteU16BE(v uint16) error {
	return s.writeRaw([]byte{byte(v >> 8), byte(v)})
}

// WriteU32BE writes a big-endian uint32.
func (s *Stream) WriteU32BE(v uint32) error {
	return s.writeRaw([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// WriteU32LE writes a little-endian uint32.
func (s *Stream) WriteU32LE(v uint32) error {
	return s.writeRaw([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// WriteBuffer writes raw bytes verbatim.
func (s *Stream) WriteBuffer(buf []byte) error {
	return s.writeRaw(buf)
}

// WriteShiftJIS encodes value as Shift-JIS and writes it followed by a NUL.
func (s *Stream) WriteShiftJIS(value string) error {
	raw, err := shiftJISEnc.Bytes([]byte(value))
	if err != nil {
		return rnerr.Wrap(rnerr.BadString, err, "encoding shift-jis")
	}
	if err := s.writeRaw(raw); err != nil {
		return err
	}
	return s.writeRaw([]byte{0})
}

// WriteQuotedShiftJIS writes '"', value encoded as Shift-JIS, then '"'.
func (s *Stream) WriteQuotedShiftJIS(value string) error {
	raw, err := shiftJISEnc.Bytes([]byte(value))
	if err != nil {
		return rnerr.Wrap(rnerr.BadString, err, "encoding shift-jis")
	}
	if err := s.writeRaw([]byte{'"'}); err != nil {
		return err
	}
	if err := s.writeRaw(raw); err != nil {
		return err
	}
	return s.writeRaw([]byte{'"'})
}

// WriteStream pumps src in fixed-size chunks until EOF, returning the
// number of bytes copied. Wraps the stream in an iotools.CountingWriter so
// the copy count doesn't need separate bookkeeping against s.pos.
func (s *Stream) WriteStream(src io.Reader) (int64, error) {
	counter := &iotools.CountingWriter{Writer: writerFunc(s.writeRaw)}
	n, err := io.CopyBuffer(counter, src, make([]byte, 64*1024))
	if err != nil {
		return n, errors.Annotate(err).Reason("pumping entry body").Err()
	}
	return counter.Count, nil
}

type writerFunc func([]byte) error

func (f writerFunc) Write(buf []byte) (int, error) {
	if err := f(buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}
