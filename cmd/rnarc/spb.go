// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bytes"
	"image"
	"image/color"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"

	"github.com/playmer/rnscripter/internal/codec/spb"
)

func newSPBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spb",
		Short: "Convert between the SPB image codec and BMP",
	}
	cmd.AddCommand(newSPBDecodeCommand())
	cmd.AddCommand(newSPBEncodeCommand())
	return cmd
}

func newSPBDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <in.spb> <out.bmp>",
		Short: "Decode a raw SPB stream to a BMP file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			img, err := spb.Decode(raw)
			if err != nil {
				return err
			}

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()
			return bmp.Encode(out, spbImageToGo(img))
		},
	}
}

func newSPBEncodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <in.bmp> <out.spb>",
		Short: "Encode a BMP file to a raw SPB stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			stored, err := encodeBMPToSPB(raw)
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], stored, 0o644)
		},
	}
}

// encodeBMPToSPB decodes bmpBytes with the standard BMP codec and
// re-encodes the pixels as SPB. It is passed to archive.WriteNSA as an
// archive.SPBEncoder so packing honors --spb.
func encodeBMPToSPB(bmpBytes []byte) ([]byte, error) {
	img, err := bmp.Decode(bytes.NewReader(bmpBytes))
	if err != nil {
		return nil, err
	}
	return spb.Encode(goImageToSPB(img))
}

func spbImageToGo(img spb.Image) image.Image {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			px := img.Pixels[y*img.Width+x]
			out.SetNRGBA(x, y, color.NRGBA{R: px[2], G: px[1], B: px[0], A: 0xFF})
		}
	}
	return out
}

func goImageToSPB(img image.Image) spb.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([][3]byte, 0, w*h)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pixels = append(pixels, [3]byte{byte(b >> 8), byte(g >> 8), byte(r >> 8)})
		}
	}
	return spb.Image{Width: w, Height: h, Pixels: pixels}
}
