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
	"github.com/playmer/rnscripter/internal/rnerr"
	"github.com/playmer/rnscripter/internal/vnio"
)

// MaxEntries is the largest entry count any container may hold; writers
// reject anything larger before emitting a single byte.
const MaxEntries = 65535

func parseSARHeader(ctx context.Context, s *vnio.Stream, offset int64) (*Index, error) {
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
	logging.Debugf(ctx, "sar header: %d entries, header end at %d (base=%d delta=%d offset=%d)",
		numEntries, headerEnd, baseOffset, headerEndDelta, offset)

	entries := make([]Entry, numEntries)
	for i := range entries {
		name, err := s.ReadShiftJIS()
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
		entries[i] = Entry{
			Name:             name,
			Offset:           headerEnd + int64(offsetDelta),
			Size:             int64(size),
			Tag:              codec.RAW,
			DecompressedSize: int64(size),
		}
	}

	return NewIndex(headerEnd, entries)
}

// SARFile is one input to WriteSAR: an inner archive name paired with its
// raw (pre-compression; SAR never compresses) byte source.
type SARFile struct {
	Name string
	Body io.Reader
}

// WriteSAR builds a SAR container from files in the given order, writing
// to w. It uses the two-pass approach from spec.md §4.5: reserve the
// header with zeroed offset/size placeholders, write bodies while
// recording positions, then back-patch. offset reserves that many extra
// zero bytes between the header and the first body, mirroring the base
// offset Open accepts when reading the container back (the header's own
// declared delta never includes it; Open re-adds offset on top).
func WriteSAR(ctx context.Context, w io.WriteSeeker, files []SARFile, offset int64) error {
	if len(files) > MaxEntries {
		return rnerr.New(rnerr.TooManyEntries, "sar writer asked to emit more than 65535 entries")
	}
	logging.Debugf(ctx, "writing sar archive: %d entries, offset=%d", len(files), offset)

	s, err := vnio.NewStream(w, vnio.NewIdentityKeyTable())
	if err != nil {
		return err
	}

	baseOffset := s.Position()

	if err := s.WriteU16BE(uint16(len(files))); err != nil {
		return err
	}
	headerEndPos := s.Position()
	if err := s.WriteU32BE(0); err != nil { // placeholder
		return err
	}

	type reservation struct {
		offsetPos, sizePos int64
	}
	reservations := make([]reservation, len(files))

	for i, f := range files {
		if err := s.WriteShiftJIS(f.Name); err != nil {
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

	for i, f := range files {
		bodyOffset := s.Position()
		n, err := s.WriteStream(f.Body)
		if err != nil {
			return errors.Annotate(err).Reason("writing body for %(name)q").D("name", f.Name).Err()
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
		if err := s.WriteU32BE(uint32(n)); err != nil {
			return err
		}
		if _, err := s.Seek(endPos, io.SeekStart); err != nil {
			return err
		}
	}

	return nil
}
