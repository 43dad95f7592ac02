// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"golang.org/x/image/tiff"
)

func writeTestTIFF(c *qt.C) string {
	m := image.NewGray16(image.Rect(0, 0, 13, 9))
	var buf bytes.Buffer
	c.Assert(tiff.Encode(&buf, m, nil), qt.IsNil)
	filename := filepath.Join(c.TempDir(), "gray16.tif")
	c.Assert(os.WriteFile(filename, buf.Bytes(), 0o644), qt.IsNil)
	return filename
}

func TestRun(t *testing.T) {
	c := qt.New(t)
	filename := writeTestTIFF(c)

	c.Run("Text", func(c *qt.C) {
		var out bytes.Buffer
		c.Assert(run(&out, filename, false, false, false, time.Minute), qt.IsNil)
		c.Assert(out.String(), qt.Contains, "Format:      Classic TIFF, LittleEndian\n")
		c.Assert(out.String(), qt.Contains, "Size:        13x9, 1 x 16 bits, UnsignedInt\n")
		c.Assert(out.String(), qt.Contains, "Compression: None, predictor None\n")
		c.Assert(out.String(), qt.Not(qt.Contains), "Bounds:")
	})

	c.Run("JSON", func(c *qt.C) {
		var out bytes.Buffer
		c.Assert(run(&out, filename, false, true, true, time.Minute), qt.IsNil)
		var ifd struct {
			Width, Height uint32
			BitsPerSample uint16
		}
		c.Assert(json.Unmarshal(out.Bytes(), &ifd), qt.IsNil)
		c.Assert(ifd.Width, qt.Equals, uint32(13))
		c.Assert(ifd.Height, qt.Equals, uint32(9))
		c.Assert(ifd.BitsPerSample, qt.Equals, uint16(16))
	})

	c.Run("Not a TIFF", func(c *qt.C) {
		filename := filepath.Join(c.TempDir(), "text.tif")
		c.Assert(os.WriteFile(filename, []byte("hello, world"), 0o644), qt.IsNil)
		err := run(&bytes.Buffer{}, filename, false, false, false, time.Minute)
		c.Assert(err, qt.ErrorMatches, "geotiff: invalid TIFF format: .*")
	})
}
