// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

type byteBuffer struct {
	b []byte
}

var byteBufferPool = &sync.Pool{
	New: func() any {
		return &byteBuffer{
			b: make([]byte, 1024),
		}
	},
}

func getByteBuffer(length int) *byteBuffer {
	b := byteBufferPool.Get().(*byteBuffer)
	if length > cap(b.b) {
		b.b = make([]byte, length)
	}
	b.b = b.b[:length]
	return b
}

func putByteBuffer(b *byteBuffer) {
	b.b = b.b[:0]
	byteBufferPool.Put(b)
}

// streamReader is a wrapper around a ReadSeeker that provides methods to read binary data
// in a byte order chosen at runtime.
// Note that this is not thread safe.
type streamReader struct {
	r         io.ReadSeeker
	byteOrder binary.ByteOrder

	// Total size of the source in bytes.
	length int64

	buf []byte
}

// newStreamReader wraps r. The current position of r is kept.
func newStreamReader(r io.ReadSeeker, byteOrder binary.ByteOrder) (*streamReader, error) {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(cur, io.SeekStart); err != nil {
		return nil, err
	}
	return &streamReader{
		r:         r,
		byteOrder: byteOrder,
		length:    end,
	}, nil
}

func (e *streamReader) allocateBuf(length int) {
	if length > cap(e.buf) {
		e.buf = make([]byte, length)
	}
}

// pos returns the position of the underlying source, not a cached copy.
func (e *streamReader) pos() (int64, error) {
	return e.r.Seek(0, io.SeekCurrent)
}

func (e *streamReader) seek(off int64) error {
	if off < 0 || off >= e.length {
		return newInvalidFormatErrorf("seek to %d outside of [0, %d)", off, e.length)
	}
	_, err := e.r.Seek(off, io.SeekStart)
	return err
}

// seekUpTo is like seek, but the end of the source is a valid position.
func (e *streamReader) seekUpTo(off int64) error {
	if off < 0 || off > e.length {
		return newInvalidFormatErrorf("seek to %d outside of [0, %d]", off, e.length)
	}
	_, err := e.r.Seek(off, io.SeekStart)
	return err
}

func (e *streamReader) skip(n int64) error {
	p, err := e.pos()
	if err != nil {
		return err
	}
	return e.seek(p + n)
}

// withOffset runs f with the cursor at off and restores the previous
// cursor position when f returns, also when f fails.
func (e *streamReader) withOffset(off int64, f func() error) error {
	_, err := atOffset(e, off, func() (struct{}, error) {
		return struct{}{}, f()
	})
	return err
}

// atOffset is the value returning variant of withOffset.
func atOffset[T any](e *streamReader, off int64, f func() (T, error)) (v T, err error) {
	saved, err := e.pos()
	if err != nil {
		return v, err
	}
	defer func() {
		if _, serr := e.r.Seek(saved, io.SeekStart); serr != nil {
			err = errors.Join(err, fmt.Errorf("restore position %d: %w", saved, serr))
		}
	}()
	if err = e.seek(off); err != nil {
		return v, err
	}
	return f()
}

func (e *streamReader) readNIntoBuf(n int) error {
	e.allocateBuf(n)
	return e.readFull(e.buf[:n])
}

func (e *streamReader) readFull(b []byte) error {
	_, err := io.ReadFull(e.r, b)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errShortRead
	}
	return err
}

func (e *streamReader) read1() (uint8, error) {
	if err := e.readNIntoBuf(1); err != nil {
		return 0, err
	}
	return e.buf[0], nil
}

func (e *streamReader) read2() (uint16, error) {
	const n = 2
	if err := e.readNIntoBuf(n); err != nil {
		return 0, err
	}
	return e.byteOrder.Uint16(e.buf[:n]), nil
}

func (e *streamReader) read4() (uint32, error) {
	const n = 4
	if err := e.readNIntoBuf(n); err != nil {
		return 0, err
	}
	return e.byteOrder.Uint32(e.buf[:n]), nil
}

func (e *streamReader) read8() (uint64, error) {
	const n = 8
	if err := e.readNIntoBuf(n); err != nil {
		return 0, err
	}
	return e.byteOrder.Uint64(e.buf[:n]), nil
}

func (e *streamReader) readFloat32() (float32, error) {
	v, err := e.read4()
	return math.Float32frombits(v), err
}

func (e *streamReader) readFloat64() (float64, error) {
	v, err := e.read8()
	return math.Float64frombits(v), err
}

// readUints reads count unsigned values of the given width (1, 2, 4 or 8 bytes)
// with a single read from the source.
func (e *streamReader) readUints(width int, count int64) ([]uint64, error) {
	if count < 0 || (count > 0 && int64(width) > math.MaxInt32/count) {
		return nil, newInvalidFormatErrorf("array of %d values too large", count)
	}
	size := int(count) * width
	if p, err := e.pos(); err == nil && p+int64(size) > e.length {
		return nil, errShortRead
	}
	bb := getByteBuffer(size)
	defer putByteBuffer(bb)
	if err := e.readFull(bb.b); err != nil {
		return nil, err
	}
	vals := make([]uint64, count)
	b := bb.b
	for i := range vals {
		switch width {
		case 1:
			vals[i] = uint64(b[i])
		case 2:
			vals[i] = uint64(e.byteOrder.Uint16(b[i*2:]))
		case 4:
			vals[i] = uint64(e.byteOrder.Uint32(b[i*4:]))
		case 8:
			vals[i] = e.byteOrder.Uint64(b[i*8:])
		default:
			return nil, fmt.Errorf("unsupported value width %d", width)
		}
	}
	return vals, nil
}

func (e *streamReader) readBytes(n int64) ([]byte, error) {
	if n < 0 {
		return nil, newInvalidFormatErrorf("negative length")
	}
	if p, err := e.pos(); err == nil && p+n > e.length {
		return nil, errShortRead
	}
	b := make([]byte, n)
	if err := e.readFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

// readASCII reads count bytes and returns them as a string with the
// trailing NUL terminator(s) removed.
// Bytes outside of 7-bit ASCII are decoded as ISO-8859-1.
func (e *streamReader) readASCII(count int64) (string, error) {
	b, err := e.readBytes(count)
	if err != nil {
		return "", err
	}
	return decodeASCII(b), nil
}

func decodeASCII(b []byte) string {
	b = bytes.TrimRight(b, "\x00")
	for _, c := range b {
		if c >= utf8.RuneSelf {
			s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
			if err != nil {
				return string(b)
			}
			return string(s)
		}
	}
	return string(b)
}

// readAt fills buf from the absolute offset off.
// If r is an io.ReaderAt the cursor is not touched,
// otherwise the cursor is restored after the read.
func readAt(r io.ReadSeeker, off int64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrIndexOutOfRange, off)
	}
	if ra, ok := r.(io.ReaderAt); ok {
		n, err := ra.ReadAt(buf, off)
		if n == len(buf) {
			return n, nil
		}
		if err == nil || err == io.EOF {
			err = errShortRead
		}
		return n, err
	}
	sr, err := newStreamReader(r, binary.LittleEndian)
	if err != nil {
		return 0, err
	}
	if off+int64(len(buf)) > sr.length {
		return 0, errShortRead
	}
	err = sr.withOffset(off, func() error {
		return sr.readFull(buf)
	})
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}
