// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go"
	qt "github.com/frankban/quicktest"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func assertGray16Pixels(c *qt.C, r io.ReadSeeker, w, h int) {
	c.Helper()
	img, err := Decode(Options{R: r})
	c.Assert(err, qt.IsNil)
	c.Assert(img.IFD.Width, qt.Equals, uint32(w))
	for _, p := range [][2]int{{0, 0}, {w - 1, 0}, {w / 2, h / 2}, {w - 1, h - 1}} {
		v, err := img.PixelValue(p[0], p[1])
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint16(p[1]*w+p[0]+1))
	}
}

func writeTempFile(c *qt.C, name string, b []byte) string {
	filename := filepath.Join(c.TempDir(), name)
	c.Assert(os.WriteFile(filename, b, 0o644), qt.IsNil)
	return filename
}

func TestOpenFile(t *testing.T) {
	c := qt.New(t)
	filename := writeTempFile(c, "gray16.tif", newStripped(binary.LittleEndian, Big, 40, 30, 7).bytes())

	c.Run("File", func(c *qt.C) {
		f, err := Open(filename)
		c.Assert(err, qt.IsNil)
		defer f.Close()
		assertGray16Pixels(c, f, 40, 30)
	})

	c.Run("Mmap", func(c *qt.C) {
		f, err := OpenMmap(filename)
		c.Assert(err, qt.IsNil)
		defer f.Close()
		assertGray16Pixels(c, f, 40, 30)
	})

	c.Run("OpenSource", func(c *qt.C) {
		for _, useMmap := range []bool{false, true} {
			f, err := OpenSource(filename, useMmap)
			c.Assert(err, qt.IsNil)
			assertGray16Pixels(c, f, 40, 30)
			c.Assert(f.Close(), qt.IsNil)
		}
	})

	c.Run("Not found", func(c *qt.C) {
		_, err := OpenSource(filepath.Join(c.TempDir(), "nope.tif"), false)
		c.Assert(os.IsNotExist(err), qt.IsTrue)
	})
}

func encodeSeekableZstd(c *qt.C, b []byte, frameSize int) []byte {
	enc, err := zstd.NewWriter(nil)
	c.Assert(err, qt.IsNil)
	defer enc.Close()

	var buf bytes.Buffer
	w, err := seekable.NewWriter(&buf, enc)
	c.Assert(err, qt.IsNil)
	for len(b) > 0 {
		n := min(frameSize, len(b))
		_, err := w.Write(b[:n])
		c.Assert(err, qt.IsNil)
		b = b[n:]
	}
	c.Assert(w.Close(), qt.IsNil)
	return buf.Bytes()
}

func TestZstdSource(t *testing.T) {
	c := qt.New(t)
	raw := newStripped(binary.BigEndian, Classic, 40, 30, 7).bytes()
	z := encodeSeekableZstd(c, raw, 256)

	c.Run("Reader", func(c *qt.C) {
		src, err := OpenZstdSeekable(bytes.NewReader(z))
		c.Assert(err, qt.IsNil)
		assertGray16Pixels(c, src, 40, 30)

		n, err := src.Seek(0, io.SeekEnd)
		c.Assert(err, qt.IsNil)
		c.Assert(n, qt.Equals, int64(len(raw)))
		c.Assert(src.Close(), qt.IsNil)
	})

	c.Run("OpenSource", func(c *qt.C) {
		filename := writeTempFile(c, "gray16.tif.zst", z)
		src, err := OpenSource(filename, false)
		c.Assert(err, qt.IsNil)
		assertGray16Pixels(c, src, 40, 30)
		c.Assert(src.Close(), qt.IsNil)
	})

	c.Run("Not seekable zstd", func(c *qt.C) {
		_, err := OpenZstdSeekable(bytes.NewReader(raw))
		c.Assert(err, qt.IsNotNil)
	})
}

type testHTTPServer struct {
	data        []byte
	ignoreRange bool
	requests    atomic.Int32
}

func (s *testHTTPServer) handle(ctx *fasthttp.RequestCtx) {
	s.requests.Add(1)
	if string(ctx.Path()) != "/gray16.tif" {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	var start, end int
	rng := string(ctx.Request.Header.Peek("Range"))
	if s.ignoreRange || rng == "" {
		ctx.SetBody(s.data)
		return
	}
	if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil || start >= len(s.data) {
		ctx.SetStatusCode(fasthttp.StatusRequestedRangeNotSatisfiable)
		return
	}
	end = min(end, len(s.data)-1)
	ctx.SetStatusCode(fasthttp.StatusPartialContent)
	ctx.Response.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(s.data)))
	ctx.SetBody(s.data[start : end+1])
}

func startTestHTTPServer(c *qt.C, s *testHTTPServer) *fasthttp.Client {
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: s.handle}
	go srv.Serve(ln)
	c.Cleanup(func() {
		ln.Close()
	})
	return &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
}

func TestHTTPSource(t *testing.T) {
	c := qt.New(t)
	data := newStripped(binary.LittleEndian, Classic, 300, 200, 16).bytes()
	c.Assert(len(data) > httpBlockSize+100, qt.IsTrue)

	c.Run("Range requests", func(c *qt.C) {
		s := &testHTTPServer{data: data}
		client := startTestHTTPServer(c, s)

		src, err := NewHTTPSource(client, "http://example.com/gray16.tif")
		c.Assert(err, qt.IsNil)
		c.Assert(src.Size(), qt.Equals, int64(len(data)))
		assertGray16Pixels(c, src, 300, 200)

		// The header and the IFD are read from a few read ahead blocks.
		c.Assert(s.requests.Load() < 10, qt.IsTrue, qt.Commentf("%d requests", s.requests.Load()))

		// Large reads bypass the read ahead block.
		big := make([]byte, httpBlockSize+10)
		n, err := src.ReadAt(big, 100)
		c.Assert(err, qt.IsNil)
		c.Assert(n, qt.Equals, len(big))
		c.Assert(big, qt.DeepEquals, data[100:100+len(big)])

		// Reads at the end are short.
		tail := make([]byte, 10)
		n, err = src.ReadAt(tail, int64(len(data)-4))
		c.Assert(err, qt.Equals, io.EOF)
		c.Assert(n, qt.Equals, 4)
		_, err = src.ReadAt(tail, int64(len(data)))
		c.Assert(err, qt.Equals, io.EOF)

		pos, err := src.Seek(-2, io.SeekEnd)
		c.Assert(err, qt.IsNil)
		c.Assert(pos, qt.Equals, int64(len(data)-2))
		b, err := io.ReadAll(src)
		c.Assert(err, qt.IsNil)
		c.Assert(b, qt.DeepEquals, data[len(data)-2:])

		_, err = src.Seek(-1, io.SeekStart)
		c.Assert(err, qt.IsNotNil)
		c.Assert(src.Close(), qt.IsNil)
	})

	c.Run("Range ignored", func(c *qt.C) {
		s := &testHTTPServer{data: data, ignoreRange: true}
		client := startTestHTTPServer(c, s)

		src, err := NewHTTPSource(client, "http://example.com/gray16.tif")
		c.Assert(err, qt.IsNil)
		assertGray16Pixels(c, src, 300, 200)
		c.Assert(s.requests.Load(), qt.Equals, int32(1))
	})

	c.Run("Not found", func(c *qt.C) {
		client := startTestHTTPServer(c, &testHTTPServer{data: data})
		_, err := NewHTTPSource(client, "http://example.com/missing.tif")
		c.Assert(err, qt.ErrorMatches, ".*unexpected status 404")
	})
}

func TestParseContentRangeTotal(t *testing.T) {
	c := qt.New(t)

	n, err := parseContentRangeTotal("bytes 0-0/12345")
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(12345))

	_, err = parseContentRangeTotal("bytes 0-0/*")
	c.Assert(err, qt.IsNotNil)
	_, err = parseContentRangeTotal("")
	c.Assert(err, qt.IsNotNil)
}
