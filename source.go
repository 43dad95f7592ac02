// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fasthttp"
	"golang.org/x/exp/mmap"
)

// Open opens the file at path for decoding.
func Open(path string) (*os.File, error) {
	return os.Open(path)
}

// MmapFile is a memory mapped file.
type MmapFile struct {
	*io.SectionReader
	m *mmap.ReaderAt
}

// OpenMmap memory maps the file at path.
func OpenMmap(path string) (*MmapFile, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &MmapFile{
		SectionReader: io.NewSectionReader(m, 0, int64(m.Len())),
		m:             m,
	}, nil
}

func (f *MmapFile) Close() error {
	return f.m.Close()
}

const httpBlockSize = 64 << 10

// HTTPSource reads a remote file with HTTP range requests.
// Small reads are served from a read ahead block.
// It is not safe for concurrent use.
type HTTPSource struct {
	client *fasthttp.Client
	url    string
	size   int64
	pos    int64

	block    []byte
	blockOff int64
}

// NewHTTPSource returns a source for url.
// If client is nil, a client with 30 second timeouts is used.
func NewHTTPSource(client *fasthttp.Client, url string) (*HTTPSource, error) {
	if client == nil {
		client = &fasthttp.Client{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
	}
	s := &HTTPSource{client: client, url: url}

	body, total, err := s.fetch(0, 1)
	if err != nil {
		return nil, err
	}
	s.size = total
	if int64(len(body)) == total {
		// The server ignored the range and sent everything.
		s.block = body
	}
	return s, nil
}

// Size returns the size of the remote file.
func (s *HTTPSource) Size() int64 {
	return s.size
}

// fetch gets the bytes [start, end) and returns them with the total size of the remote file.
func (s *HTTPSource) fetch(start, end int64) ([]byte, int64, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end-1))

	if err := s.client.Do(req, resp); err != nil {
		return nil, 0, fmt.Errorf("fetching %s: %w", s.url, err)
	}

	body := resp.Body()
	switch resp.StatusCode() {
	case fasthttp.StatusPartialContent:
		total, err := parseContentRangeTotal(string(resp.Header.Peek("Content-Range")))
		if err != nil {
			return nil, 0, err
		}
		return append([]byte(nil), body...), total, nil
	case fasthttp.StatusOK:
		return append([]byte(nil), body...), int64(len(body)), nil
	default:
		return nil, 0, fmt.Errorf("fetching %s: unexpected status %d", s.url, resp.StatusCode())
	}
}

// parseContentRangeTotal returns the complete length from a "bytes a-b/total" header.
func parseContentRangeTotal(s string) (int64, error) {
	i := strings.LastIndexByte(s, '/')
	if i < 0 || s[i+1:] == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", s)
	}
	return strconv.ParseInt(s[i+1:], 10, 64)
}

func (s *HTTPSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= s.size {
		return 0, io.EOF
	}
	end := min(off+int64(len(p)), s.size)

	if s.block != nil && off >= s.blockOff && end <= s.blockOff+int64(len(s.block)) {
		n := copy(p, s.block[off-s.blockOff:end-s.blockOff])
		return n, eofIfShort(n, len(p))
	}

	if end-off < httpBlockSize {
		blockEnd := min(off+httpBlockSize, s.size)
		b, _, err := s.fetch(off, blockEnd)
		if err != nil {
			return 0, err
		}
		if int64(len(b)) == s.size {
			// Whole file.
			s.block, s.blockOff = b, 0
		} else {
			s.block, s.blockOff = b, off
		}
		if end > s.blockOff+int64(len(s.block)) {
			return 0, io.ErrUnexpectedEOF
		}
		n := copy(p, s.block[off-s.blockOff:end-s.blockOff])
		return n, eofIfShort(n, len(p))
	}

	b, _, err := s.fetch(off, end)
	if err != nil {
		return 0, err
	}
	if int64(len(b)) == s.size && off > 0 {
		b = b[off:min(end, int64(len(b)))]
	}
	n := copy(p, b)
	return n, eofIfShort(n, len(p))
}

func eofIfShort(n, want int) error {
	if n < want {
		return io.EOF
	}
	return nil
}

func (s *HTTPSource) Read(p []byte) (int, error) {
	n, err := s.ReadAt(p, s.pos)
	s.pos += int64(n)
	return n, err
}

func (s *HTTPSource) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = s.size + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	s.pos = abs
	return abs, nil
}

func (s *HTTPSource) Close() error {
	s.block = nil
	return nil
}

// ZstdSource reads a TIFF stored in the seekable zstd format.
type ZstdSource struct {
	seekable.Reader
	dec *zstd.Decoder
}

// OpenZstdSeekable returns a source decompressing r on the fly.
// r must be in the seekable zstd format, see
// https://github.com/facebook/zstd/blob/dev/contrib/seekable_format/zstd_seekable_compression_format.md
func OpenZstdSeekable(r io.ReadSeeker) (*ZstdSource, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	sr, err := seekable.NewReader(r, dec)
	if err != nil {
		dec.Close()
		return nil, err
	}
	return &ZstdSource{Reader: sr, dec: dec}, nil
}

func (s *ZstdSource) Close() error {
	err := s.Reader.Close()
	s.dec.Close()
	return err
}

// OpenSource opens a local path or, for http and https URLs, a remote file.
// Local files are memory mapped if useMmap is set;
// files ending in .zst are read as seekable zstd.
func OpenSource(pathOrURL string, useMmap bool) (io.ReadSeekCloser, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return NewHTTPSource(nil, pathOrURL)
	}

	var (
		f   io.ReadSeekCloser
		err error
	)
	if useMmap {
		f, err = OpenMmap(pathOrURL)
	} else {
		f, err = Open(pathOrURL)
	}
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(pathOrURL, ".zst") {
		return f, nil
	}
	z, err := OpenZstdSeekable(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdFile{ZstdSource: z, f: f}, nil
}

// zstdFile closes both the decompressor and the file.
type zstdFile struct {
	*ZstdSource
	f io.Closer
}

func (z *zstdFile) Close() error {
	return errors.Join(z.ZstdSource.Close(), z.f.Close())
}
