// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/klauspost/compress/zlib"
	exiftiff "github.com/rwcarlsen/goexif/tiff"
	xtiff "golang.org/x/image/tiff"
)

func newTestGray16Image(w, h int) *image.Gray16 {
	m := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Pix[y*m.Stride+x*2] = byte(y)
			m.Pix[y*m.Stride+x*2+1] = byte(x * 7)
		}
	}
	return m
}

// Files written by golang.org/x/image/tiff.
func TestDecodeXImageTIFF(t *testing.T) {
	c := qt.New(t)
	m := newTestGray16Image(13, 9)

	c.Run("Uncompressed", func(c *qt.C) {
		var buf bytes.Buffer
		c.Assert(xtiff.Encode(&buf, m, nil), qt.IsNil)

		img, err := Decode(Options{R: bytes.NewReader(buf.Bytes())})
		c.Assert(err, qt.IsNil)
		c.Assert(img.Warnings, qt.IsNil)
		c.Assert(img.IFD.Width, qt.Equals, uint32(13))
		c.Assert(img.IFD.Height, qt.Equals, uint32(9))
		c.Assert(img.IFD.BitsPerSample, qt.Equals, uint16(16))

		for y := 0; y < 9; y++ {
			for x := 0; x < 13; x++ {
				v, err := img.PixelValue(x, y)
				c.Assert(err, qt.IsNil)
				c.Assert(v, qt.Equals, m.Gray16At(x, y).Y, qt.Commentf("(%d, %d)", x, y))
			}
		}
	})

	c.Run("Deflate", func(c *qt.C) {
		var buf bytes.Buffer
		c.Assert(xtiff.Encode(&buf, m, &xtiff.Options{Compression: xtiff.Deflate}), qt.IsNil)

		img, err := Decode(Options{R: bytes.NewReader(buf.Bytes())})
		c.Assert(err, qt.IsNil)
		c.Assert(img.IFD.Compression, qt.Equals, CompressionDeflate)

		_, err = img.PixelValue(0, 0)
		c.Assert(err, qt.ErrorIs, ErrUnsupported)

		// The raw strips are there for the caller to decompress.
		var pix bytes.Buffer
		for i := 0; i < img.IFD.StripCount(); i++ {
			b, err := img.ReadStrip(i)
			c.Assert(err, qt.IsNil)
			zr, err := zlib.NewReader(bytes.NewReader(b))
			c.Assert(err, qt.IsNil)
			_, err = io.Copy(&pix, zr)
			c.Assert(err, qt.IsNil)
			c.Assert(zr.Close(), qt.IsNil)
		}
		c.Assert(pix.Len(), qt.Equals, 13*9*2)
		c.Assert(img.ByteOrder.Uint16(pix.Bytes()[(4*13+5)*2:]), qt.Equals, m.Gray16At(5, 4).Y)
	})
}

// Files written by the test builder, read by golang.org/x/image/tiff.
func TestXImageDecodesTestTIFF(t *testing.T) {
	c := qt.New(t)

	for _, o := range testByteOrders {
		tt := newStripped(o, Classic, 7, 5, 2).withEntries(shortEntry(o, TagPhotometricInterpretation, 1))
		m, err := xtiff.Decode(tt.reader())
		c.Assert(err, qt.IsNil)
		g, ok := m.(*image.Gray16)
		c.Assert(ok, qt.IsTrue, qt.Commentf("%T", m))

		img, _ := decodeTestTIFF(c, tt)
		for y := 0; y < 5; y++ {
			for x := 0; x < 7; x++ {
				v, err := img.PixelValue(x, y)
				c.Assert(err, qt.IsNil)
				c.Assert(v, qt.Equals, g.Gray16At(x, y).Y)
			}
		}
	}
}

// The raw entries agree with github.com/rwcarlsen/goexif/tiff.
func TestEntriesMatchGoexif(t *testing.T) {
	c := qt.New(t)

	for _, o := range testByteOrders {
		c.Run(fmt.Sprint(o), func(c *qt.C) {
			b := newGeographicTIFF(o, Classic).withEntries(
				testEntry{tag: TagXResolution, typ: TypeRational, count: 1, data: enc32(o, 300, 1)},
			).bytes()

			img, err := Decode(Options{R: bytes.NewReader(b)})
			c.Assert(err, qt.IsNil)

			x, err := exiftiff.Decode(bytes.NewReader(b))
			c.Assert(err, qt.IsNil)
			c.Assert(x.Order, qt.Equals, binary.ByteOrder(o))
			c.Assert(x.Dirs, qt.HasLen, 1)

			tags := x.Dirs[0].Tags
			entries := img.Entries()
			c.Assert(entries, qt.HasLen, len(tags))

			for i, e := range entries {
				tag := tags[i]
				c.Assert(uint16(e.Tag), qt.Equals, tag.Id)
				c.Assert(uint16(e.Type), qt.Equals, uint16(tag.Type))
				c.Assert(e.Count, qt.Equals, int64(tag.Count))

				v, err := img.EntryValue(e)
				c.Assert(err, qt.IsNil)

				switch vv := v.(type) {
				case IntegerList:
					for j, want := range vv {
						got, err := tag.Int64(j)
						c.Assert(err, qt.IsNil)
						c.Assert(got, qt.Equals, want, qt.Commentf("%s[%d]", e.Tag, j))
					}
				case DoubleList:
					for j, want := range vv {
						got, err := tag.Float(j)
						c.Assert(err, qt.IsNil)
						c.Assert(got, qt.Equals, want, qt.Commentf("%s[%d]", e.Tag, j))
					}
				case RationalList:
					num, den, err := tag.Rat2(0)
					c.Assert(err, qt.IsNil)
					c.Assert(vv[0], qt.Equals, Rational{num, den})
				case ASCII:
					got, err := tag.StringVal()
					c.Assert(err, qt.IsNil)
					c.Assert(string(vv), qt.Equals, got)
				default:
					c.Fatalf("unexpected value type %T", v)
				}
			}
		})
	}
}
