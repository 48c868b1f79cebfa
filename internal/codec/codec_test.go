// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package codec

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/playmer/rnscripter/internal/rnerr"
)

func TestTagFromByte(t *testing.T) {
	t.Parallel()

	Convey("TagFromByte", t, func() {
		Convey("accepts the four known tags", func() {
			for _, b := range []byte{0, 1, 2, 4} {
				tag, err := TagFromByte(b)
				So(err, ShouldBeNil)
				So(tag, ShouldEqual, Tag(b))
			}
		})

		Convey("rejects anything else", func() {
			_, err := TagFromByte(3)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestBZ2RoundTrip(t *testing.T) {
	t.Parallel()

	Convey("BZ2", t, func() {
		Convey("round-trips arbitrary bytes", func() {
			raw := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 200)
			stored, err := EncodeBZ2(raw)
			So(err, ShouldBeNil)

			got, err := DecodeBZ2(stored)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, raw)
		})

		Convey("round-trips the empty entry", func() {
			stored, err := EncodeBZ2(nil)
			So(err, ShouldBeNil)

			got, err := DecodeBZ2(stored)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 0)
		})

		Convey("rejects a stream shorter than the size prefix", func() {
			_, err := DecodeBZ2([]byte{0x01, 0x02})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLZSSDecode(t *testing.T) {
	t.Parallel()

	Convey("LZSS", t, func() {
		Convey("a stream of only literal tokens reproduces the bytes verbatim", func() {
			// flag byte 0xFF: all 8 tokens are literals.
			stored := []byte{0xFF, 'h', 'e', 'l', 'l', 'o', ' ', 'w', 'o'}
			got, err := DecodeLZSS(stored)
			So(err, ShouldBeNil)
			So(string(got), ShouldEqual, "hello wo")
		})

		Convey("a match token replays previously emitted bytes", func() {
			// 8 tokens: literal a,b,c,d (ring positions 240..243), a
			// match replaying 2 bytes from position 240 ("ab"), then
			// literal e,f,g.
			const flags = 1 | 1<<1 | 1<<2 | 1<<3 | 0<<4 | 1<<5 | 1<<6 | 1<<7
			stored := []byte{flags, 'a', 'b', 'c', 'd', 240, 1, 'e', 'f', 'g'}
			got, err := DecodeLZSS(stored)
			So(err, ShouldBeNil)
			So(string(got), ShouldEqual, "abcdabefg")
		})

		Convey("EncodeLZSS is unsupported", func() {
			_, err := EncodeLZSS([]byte("anything"))
			So(err, ShouldEqual, rnerr.Unsupported)
		})
	})
}
