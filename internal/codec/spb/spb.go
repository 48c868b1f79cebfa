// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package spb implements the bespoke lossless 24-bit RGB image codec used
// to embed pictures inside NSA/NS2 archives: a big-endian width/height
// header followed by three serpentine-scanned, bit-packed predictive
// channel streams.
//
// There is no reference library for this format; it is implemented
// directly from the bit-level description in SPEC_FULL.md (spec.md §4.2),
// cross-checked against the original Rust encoder/decoder.
package spb

import (
	"github.com/luci/luci-go/common/errors"

	"github.com/playmer/rnscripter/internal/rnerr"
)

// Image is a width x height grid of 24-bit BGR pixels, row-major,
// top-to-bottom, each pixel stored as [B, G, R].
type Image struct {
	Width, Height int
	// Pixels is Width*Height entries of [3]byte{B, G, R}.
	Pixels [][3]byte
}

func minBits(v uint8) uint {
	if v == 0 {
		return 0
	}
	bits := uint(1)
	v >>= 1
	for v != 0 {
		v >>= 1
		bits++
	}
	return bits
}

// chunkPlan is the result of examining 4 upcoming samples relative to prev.
type chunkPlan struct {
	header  uint8 // 3-bit chunk header value
	bits    uint  // ReadBits: magnitude width (field adds a sign bit); ReadBitPlusOne: whole field width
	add     [4]bool
	magnitude [4]uint8
	literal [4]uint8 // only used for Read4
}

// planChunk decides, for 4 upcoming channel samples, which of the four SPB
// chunk encodings (Stamp4 / ReadBits / Read4 / ReadBitPlusOne) to emit, per
// the header-selection table in spec.md §4.2.
func planChunk(prev uint8, samples [4]uint8) chunkPlan {
	var plan chunkPlan
	maxBits := uint(0)
	anyAdd := false

	cur := prev
	for i, sample := range samples {
		add := cur < sample
		diff := sample - cur
		if !add {
			diff = cur - sample
		}
		var magnitude uint8
		if add {
			cur = cur + diff
			magnitude = diff - 1 // decoder adds 1 back
		} else {
			cur = cur - diff
			magnitude = diff
		}
		plan.add[i] = add
		plan.magnitude[i] = magnitude
		plan.literal[i] = sample
		if add {
			anyAdd = true
		}
		if b := minBits(magnitude); b > maxBits {
			maxBits = b
		}
	}

	switch {
	case maxBits == 0 && !anyAdd:
		plan.header = 0
	case maxBits == 0 && anyAdd:
		plan.header = 7
		plan.bits = 1
	case maxBits == 1:
		plan.header = 7
		plan.bits = 2
	case maxBits >= 2 && maxBits <= 6:
		plan.header = uint8(maxBits - 1)
		plan.bits = maxBits
	default:
		plan.header = 6
	}
	return plan
}

// Encode serializes img into the SPB wire format.
func Encode(img Image) ([]byte, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return nil, errors.Reason("spb image must have positive dimensions").Err()
	}
	if len(img.Pixels) != img.Width*img.Height {
		return nil, errors.Reason("spb image pixel count %(got)d doesn't match %(w)dx%(h)d").
			D("got", len(img.Pixels)).D("w", img.Width).D("h", img.Height).Err()
	}

	pixels := make([][3]byte, len(img.Pixels), len(img.Pixels)+4)
	copy(pixels, img.Pixels)

	w := img.Width
	for row := 1; row < img.Height; row += 2 {
		start, end := row*w, (row+1)*w
		reverseRows(pixels[start:end])
	}

	// Scratch tail: lets the 4-wide encoder window walk past the last
	// real pixel without special-casing the final, possibly-partial chunk.
	last := pixels[len(pixels)-1]
	pixels = append(pixels, last, last, last, last)

	bw := newBitWriter()
	bw.writeBits(uint64(img.Width), 16)
	bw.writeBits(uint64(img.Height), 16)

	total := img.Width * img.Height
	for channel := 0; channel < 3; channel++ {
		prev := pixels[0][channel]
		bw.writeBits(uint64(prev), 8)

		i := 1
		for i < total {
			var samples [4]uint8
			for j := 0; j < 4; j++ {
				samples[j] = pixels[i+j][channel]
			}
			plan := planChunk(prev, samples)

			switch plan.header {
			case 0:
				bw.writeBits(0, 3)
			case 6:
				bw.writeBits(6, 3)
				for _, lit := range plan.literal {
					bw.writeBits(uint64(lit), 8)
				}
				prev = plan.literal[3]
			case 7:
				bw.writeBits(7, 3)
				bw.writeBool(plan.bits == 2)
				for k := 0; k < 4; k++ {
					if plan.bits == 2 {
						bw.writeBits(uint64(plan.magnitude[k]), 1)
					}
					bw.writeBool(plan.add[k])
					prev = applyDelta(prev, plan.add[k], plan.magnitude[k])
				}
			default: // 1..5
				bw.writeBits(uint64(plan.header), 3)
				for k := 0; k < 4; k++ {
					bw.writeBits(uint64(plan.magnitude[k]), int(plan.bits))
					bw.writeBool(plan.add[k])
					prev = applyDelta(prev, plan.add[k], plan.magnitude[k])
				}
			}

			i += 4
		}
	}

	return bw.bytes(), nil
}

func applyDelta(prev uint8, add bool, magnitude uint8) uint8 {
	if add {
		return prev + magnitude + 1
	}
	return prev - magnitude
}

func reverseRows(row [][3]byte) {
	for l, r := 0, len(row)-1; l < r; l, r = l+1, r-1 {
		row[l], row[r] = row[r], row[l]
	}
}

// Decode parses an SPB byte stream back into an Image.
func Decode(buf []byte) (Image, error) {
	br := newBitReader(buf)

	width, err := br.readBits(16)
	if err != nil {
		return Image{}, err
	}
	height, err := br.readBits(16)
	if err != nil {
		return Image{}, err
	}
	w, h := int(width), int(height)
	total := w * h
	channelLen := total + 4

	channels := [3][]uint8{
		make([]uint8, channelLen),
		make([]uint8, channelLen),
		make([]uint8, channelLen),
	}

	// Channels are transmitted B, G, R: channel index 2 first, then 1,
	// then 0.
	for _, channel := range [3]int{2, 1, 0} {
		cbuf := channels[channel]
		first, err := br.readBits(8)
		if err != nil {
			return Image{}, err
		}
		cbuf[0] = uint8(first)

		i := 1
		for i < total {
			header, err := br.readBits(3)
			if err != nil {
				return Image{}, err
			}

			prevByte := cbuf[i-1]

			switch header {
			case 0:
				for k := 0; k < 4; k++ {
					cbuf[i+k] = prevByte
				}
				i += 4
				continue
			case 6:
				for k := 0; k < 4; k++ {
					lit, err := br.readBits(8)
					if err != nil {
						return Image{}, err
					}
					cbuf[i+k] = uint8(lit)
				}
				i += 4
				continue
			}

			var bitsToRead uint
			switch {
			case header >= 1 && header <= 5:
				bitsToRead = uint(header) + 2
			case header == 7:
				b, err := br.readBits(1)
				if err != nil {
					return Image{}, err
				}
				bitsToRead = uint(b) + 1
			default:
				return Image{}, rnerr.New(rnerr.CorruptSpb, "spb chunk header out of range")
			}

			data := prevByte
			for k := 0; k < 4; k++ {
				field, err := br.readBits(bitsToRead)
				if err != nil {
					return Image{}, err
				}
				add := field&1 != 0
				magnitude := uint8(field >> 1)
				if add {
					data = data + magnitude + 1
				} else {
					data = data - magnitude
				}
				cbuf[i] = data
				i++
			}
		}
	}

	pixels := make([][3]byte, total)
	for y := 0; y < h; y++ {
		rowStart := y * w
		for x := 0; x < w; x++ {
			i := x + rowStart
			if y&1 == 1 {
				i = (w-1-x) + rowStart
			}
			pixels[rowStart+x] = [3]byte{channels[2][i], channels[1][i], channels[0][i]}
		}
	}

	return Image{Width: w, Height: h, Pixels: pixels}, nil
}
