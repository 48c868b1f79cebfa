// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package archive

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/luci/luci-go/common/errors"
	"github.com/luci/luci-go/common/logging"

	"github.com/playmer/rnscripter/internal/codec"
	"github.com/playmer/rnscripter/internal/rnerr"
	"github.com/playmer/rnscripter/internal/vnio"
)

func parseNSAHeader(ctx context.Context, s *vnio.Stream, offset int64) (*Index, error) {
	baseOffset := s.Position()

	numEntries, err := s.ReadU16BE()
	if err != nil {
		return nil, err
	}
	headerEndDelta, err := s.ReadU32BE()
	if err != nil {
		return nil, err
	}
	headerEnd := baseOffset + int64(headerEndDelta) + offset
	logging.Debugf(ctx, "nsa header: %d entries, header end at %d (base=%d delta=%d offset=%d)",
		numEntries, headerEnd, baseOffset, headerEndDelta, offset)

	entries := make([]Entry, numEntries)
	for i := range entries {
		name, err := s.ReadShiftJIS()
		if err != nil {
			return nil, err
		}
		tagByte, err := s.ReadU8()
		if err != nil {
			return nil, err
		}
		tag, err := codec.TagFromByte(tagByte)
		if err != nil {
			return nil, err
		}
		offsetDelta, err := s.ReadU32BE()
		if err != nil {
			return nil, err
		}
		size, err := s.ReadU32BE()
		if err != nil {
			return nil, err
		}
		decompressedSize, err := s.ReadU32BE()
		if err != nil {
			return nil, err
		}

		// A tag-0 entry's name suffix can force an override to BZ2 or
		// SPB; this applies only when the explicit tag is 0.
		if tag == codec.RAW {
			lower := strings.ToLower(name)
			switch {
			case strings.HasSuffix(lower, ".nbz"):
				tag = codec.BZ2
				logging.Warningf(ctx, "nsa entry %q: tag 0 overridden to bz2 by extension", name)
			case strings.HasSuffix(lower, ".spb"):
				tag = codec.SPB
				logging.Warningf(ctx, "nsa entry %q: tag 0 overridden to spb by extension", name)
			}
		}

		declaredSize := int64(decompressedSize)
		if tag == codec.RAW {
			declaredSize = int64(size)
		}
		if tag == codec.BZ2 || tag == codec.SPB {
			// The original runtime defers this computation; treat the
			// on-disk value as unknown for these two tags.
			declaredSize = UnknownSize
		}

		entries[i] = Entry{
			Name:             name,
			Offset:           headerEnd + int64(offsetDelta),
			Size:             int64(size),
			Tag:              tag,
			DecompressedSize: declaredSize,
		}
	}

	return NewIndex(headerEnd, entries)
}

// NSAFile is one input to WriteNSA.
type NSAFile struct {
	Name string
	Body io.Reader
}

// CodecChoice decides a file's NSA compression tag from its content and
// the writer's bzip2/spb flags, per spec.md §4.5's NSA codec-choice
// table: peek the first 4 bytes for a RIFF or BM magic, defaulting to RAW
// for anything else or when neither flag is set.
func CodecChoice(header [4]byte, bzip2Flag, spbFlag bool) codec.Tag {
	switch {
	case bytes.HasPrefix(header[:], []byte("RIFF")):
		if bzip2Flag {
			return codec.BZ2
		}
		return codec.RAW
	case bytes.HasPrefix(header[:], []byte("BM")):
		if spbFlag {
			return codec.SPB
		}
		if bzip2Flag {
			return codec.BZ2
		}
		return codec.RAW
	default:
		return codec.RAW
	}
}

// SPBEncoder converts a source file's raw bytes (a BMP, per the codec
// choice table) into an SPB payload. Supplying one lets WriteNSA honor
// spbFlag; without one, BM content chosen for SPB falls back to RAW,
// since turning arbitrary BMP bytes into pixels isn't this package's
// job (BMP is an external collaborator per spec.md §1).
type SPBEncoder func(bmpBytes []byte) ([]byte, error)

// WriteNSA builds an NSA container. Entry bodies are fully buffered (NSA's
// compression codecs need the whole entry in hand regardless), and each
// one's codec is chosen per CodecChoice unless neither bzip2Flag nor
// spbFlag is set, in which case everything is RAW.
func WriteNSA(ctx context.Context, w io.WriteSeeker, files []NSAFile, bzip2Flag, spbFlag bool, spbEnc SPBEncoder, offset int64) error {
	entries := make([]NSAEncodedEntry, len(files))
	for i, f := range files {
		raw, err := io.ReadAll(f.Body)
		if err != nil {
			return errors.Annotate(err).Reason("reading source for %(name)q").D("name", f.Name).Err()
		}

		var tag codec.Tag
		if !bzip2Flag && !spbFlag {
			tag = codec.RAW
		} else {
			var header [4]byte
			copy(header[:], raw)
			tag = CodecChoice(header, bzip2Flag, spbFlag)
		}

		var stored []byte
		switch tag {
		case codec.BZ2:
			stored, err = codec.EncodeBZ2(raw)
		case codec.SPB:
			if spbEnc == nil {
				tag = codec.RAW
				stored = raw
			} else {
				stored, err = spbEnc(raw)
			}
		default:
			tag = codec.RAW
			stored = raw
		}
		if err != nil {
			return errors.Annotate(err).Reason("compressing %(name)q").D("name", f.Name).Err()
		}

		entries[i] = NSAEncodedEntry{Name: f.Name, Tag: tag, Stored: stored, RawSize: len(raw)}
	}

	return WriteNSAEntries(ctx, w, entries, offset)
}

// NSAEncodedEntry is one already-compressed entry body, for callers (such
// as the SPB-aware CLI packer) that decide and perform compression
// themselves rather than going through WriteNSA's flag-driven choice.
type NSAEncodedEntry struct {
	Name    string
	Tag     codec.Tag
	Stored  []byte
	RawSize int
}

// WriteNSAEntries writes an NSA container from pre-compressed entries.
// offset reserves that many extra zero bytes between the header and the
// first body; see WriteSAR's doc comment for why it isn't baked into the
// header's own declared delta.
func WriteNSAEntries(ctx context.Context, w io.WriteSeeker, files []NSAEncodedEntry, offset int64) error {
	if len(files) > MaxEntries {
		return rnerr.New(rnerr.TooManyEntries, "nsa writer asked to emit more than 65535 entries")
	}
	logging.Debugf(ctx, "writing nsa archive: %d entries, offset=%d", len(files), offset)

	bodies := make([][]byte, len(files))
	tags := make([]codec.Tag, len(files))
	rawSizes := make([]int, len(files))
	for i, f := range files {
		bodies[i] = f.Stored
		tags[i] = f.Tag
		rawSizes[i] = f.RawSize
	}

	s, err := vnio.NewStream(w, vnio.NewIdentityKeyTable())
	if err != nil {
		return err
	}

	baseOffset := s.Position()
	if err := s.WriteU16BE(uint16(len(files))); err != nil {
		return err
	}
	headerEndPos := s.Position()
	if err := s.WriteU32BE(0); err != nil {
		return err
	}

	type reservation struct {
		offsetPos, sizePos, decompPos int64
	}
	reservations := make([]reservation, len(files))

	for i, f := range files {
		if err := s.WriteShiftJIS(f.Name); err != nil {
			return err
		}
		if err := s.WriteU8(byte(tags[i])); err != nil {
			return err
		}
		reservations[i].offsetPos = s.Position()
		if err := s.WriteU32BE(0); err != nil {
			return err
		}
		reservations[i].sizePos = s.Position()
		if err := s.WriteU32BE(0); err != nil {
			return err
		}
		reservations[i].decompPos = s.Position()
		if err := s.WriteU32BE(0); err != nil {
			return err
		}
	}

	headerEnd := s.Position()
	if _, err := s.Seek(headerEndPos, io.SeekStart); err != nil {
		return err
	}
	if err := s.WriteU32BE(uint32(headerEnd - baseOffset)); err != nil {
		return err
	}
	if _, err := s.Seek(headerEnd, io.SeekStart); err != nil {
		return err
	}
	if offset > 0 {
		if err := s.WriteBuffer(make([]byte, offset)); err != nil {
			return err
		}
	}
	bodyBase := headerEnd + offset

	for i, body := range bodies {
		bodyOffset := s.Position()
		if err := s.WriteBuffer(body); err != nil {
			return err
		}
		endPos := s.Position()

		if _, err := s.Seek(reservations[i].offsetPos, io.SeekStart); err != nil {
			return err
		}
		if err := s.WriteU32BE(uint32(bodyOffset - bodyBase)); err != nil {
			return err
		}
		if _, err := s.Seek(reservations[i].sizePos, io.SeekStart); err != nil {
			return err
		}
		if err := s.WriteU32BE(uint32(len(body))); err != nil {
			return err
		}
		if _, err := s.Seek(reservations[i].decompPos, io.SeekStart); err != nil {
			return err
		}
		if err := s.WriteU32BE(uint32(rawSizes[i])); err != nil {
			return err
		}
		if _, err := s.Seek(endPos, io.SeekStart); err != nil {
			return err
		}
	}

	return nil
}
