// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package geotiff decodes the first image file directory of TIFF, BigTIFF and GeoTIFF files
// and reads uncompressed pixel data from its strips or tiles without loading the image.
package geotiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
)

// FormatVersion is the TIFF flavor, given by the version field of the header.
type FormatVersion uint16

const (
	// Classic is TIFF with 32-bit offsets.
	Classic FormatVersion = 42
	// Big is BigTIFF with 64-bit offsets.
	Big FormatVersion = 43
)

func (v FormatVersion) String() string {
	switch v {
	case Classic:
		return "Classic"
	case Big:
		return "Big"
	}
	return fmt.Sprintf("FormatVersion(%d)", uint16(v))
}

// offsetSize is the width of offsets, counts and the entry value field.
func (v FormatVersion) offsetSize() int {
	if v == Big {
		return 8
	}
	return 4
}

func (v FormatVersion) entrySize() int {
	if v == Big {
		return 20
	}
	return 12
}

const (
	byteOrderBigEndian    = 0x4d4d
	byteOrderLittleEndian = 0x4949
)

// Options contains the options for the Decode function.
type Options struct {
	// The Reader (typically a *os.File) to read the TIFF from.
	R io.ReadSeeker

	// Warnf will be called for each warning,
	// e.g. skipped tags or invalid values in descriptive fields.
	Warnf func(string, ...any)

	// Debugf will be called with trace output of the decode.
	Debugf func(string, ...any)

	// Timeout is the maximum time the decoder will spend on reading the IFD.
	// If set to 0, the decoder will not time out.
	Timeout time.Duration

	// LimitNumTags is the maximum number of entries in the IFD.
	// Default value is 5000.
	LimitNumTags uint32

	// LimitTagSize is the maximum size in bytes of a tag value to read.
	// Default value is 10 MiB.
	LimitTagSize uint32

	// ChunkCacheSize is the number of strips or tiles kept by Image.ReadStrip and Image.ReadTile.
	// Default value is 16.
	ChunkCacheSize int
}

// Image is a decoded TIFF with the reader it was decoded from.
// It is not safe for concurrent use; see ReadRow and PixelValue for that.
type Image struct {
	IFD            *IFD
	ByteOrder      binary.ByteOrder
	FormatVersion  FormatVersion
	FirstIFDOffset int64

	// NextIFDOffset is the offset of the next IFD in the chain, 0 if none.
	// Only the first IFD is decoded.
	NextIFDOffset int64

	// Warnings holds the errors recovered during decode, nil if none.
	Warnings error

	entries []DirectoryEntry
	r       io.ReadSeeker
	size    int64
	opts    Options
	chunks  *lru.Cache[chunkKey, []byte]
}

// HasMoreIFDs reports whether the file declares IFDs after the first.
func (img *Image) HasMoreIFDs() bool {
	return img.NextIFDOffset != 0
}

// Entries returns all directory entries of the first IFD in file order, unknown tags included.
func (img *Image) Entries() []DirectoryEntry {
	return img.entries
}

// EntryValue returns the values of e, reading them from the source if they are not inline.
func (img *Image) EntryValue(e DirectoryEntry) (TagValue, error) {
	if !e.Indirect {
		return e.Value, nil
	}
	sr, err := newStreamReader(img.r, img.ByteOrder)
	if err != nil {
		return nil, err
	}
	d := &decoder{streamReader: sr, version: img.FormatVersion, opts: img.opts}
	return d.entryValues(e)
}

// Close closes the underlying reader if it is an io.Closer.
func (img *Image) Close() error {
	if img.chunks != nil {
		img.chunks.Purge()
	}
	if c, ok := img.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// DecodeIFD decodes the first IFD in r with default options.
func DecodeIFD(r io.ReadSeeker) (*IFD, error) {
	img, err := Decode(Options{R: r})
	if err != nil {
		return nil, err
	}
	return img.IFD, nil
}

// Decode reads the header and the first IFD from opts.R.
func Decode(opts Options) (img *Image, err error) {
	errFromRecover := func(r any) (err2 error) {
		if r == nil {
			return nil
		}
		if errp, ok := r.(error); ok {
			var rerr runtime.Error
			if errors.As(errp, &rerr) {
				err2 = newInvalidFormatErrorf("%v", errp)
			} else {
				err2 = errp
			}
		} else {
			err2 = fmt.Errorf("unknown panic: %v", r)
		}
		return
	}

	defer func() {
		err2 := errFromRecover(recover())
		if err == nil && err2 != nil {
			img, err = nil, err2
		}
	}()

	if opts.R == nil {
		return nil, fmt.Errorf("no reader provided")
	}

	const (
		defaultLimitNumTags   = 5000
		defaultLimitTagSize   = 10 << 20
		defaultChunkCacheSize = 16
	)

	if opts.LimitNumTags == 0 {
		opts.LimitNumTags = defaultLimitNumTags
	}
	if opts.LimitTagSize == 0 {
		opts.LimitTagSize = defaultLimitTagSize
	}
	if opts.ChunkCacheSize <= 0 {
		opts.ChunkCacheSize = defaultChunkCacheSize
	}
	if opts.Warnf == nil {
		opts.Warnf = func(string, ...any) {}
	}
	if opts.Debugf == nil {
		opts.Debugf = func(string, ...any) {}
	}

	dec := &decoder{opts: opts}

	type result struct {
		img *Image
		err error
	}

	decode := func() chan result {
		resc := make(chan result, 1)
		go func() {
			defer func() {
				err2 := errFromRecover(recover())
				if err2 != nil {
					resc <- result{err: err2}
				}
			}()
			img, err := dec.decode()
			resc <- result{img: img, err: err}
		}()
		return resc
	}

	if opts.Timeout > 0 {
		select {
		case <-time.After(opts.Timeout):
			return nil, fmt.Errorf("timed out after %s", opts.Timeout)
		case res := <-decode():
			img, err = res.img, res.err
		}
	} else {
		img, err = dec.decode()
	}
	if err != nil {
		return nil, err
	}

	img.chunks, err = lru.New[chunkKey, []byte](opts.ChunkCacheSize)
	if err != nil {
		return nil, err
	}

	return img, nil
}

type decoder struct {
	*streamReader
	version  FormatVersion
	opts     Options
	warnings *multierror.Error
}

// warn records a recovered error.
func (d *decoder) warn(err error) {
	d.opts.Warnf("%v", err)
	d.warnings = multierror.Append(d.warnings, err)
}

func (d *decoder) warnf(format string, args ...any) {
	d.opts.Warnf(format, args...)
}

func (d *decoder) debugf(format string, args ...any) {
	d.opts.Debugf(format, args...)
}

func (d *decoder) decode() (*Image, error) {
	if _, err := d.opts.R.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	sr, err := newStreamReader(d.opts.R, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	d.streamReader = sr

	img := &Image{
		r:    d.opts.R,
		size: sr.length,
		opts: d.opts,
	}

	if err := d.readHeader(img); err != nil {
		return nil, err
	}
	d.debugf("%s TIFF, %s, first IFD at %d", img.FormatVersion, img.ByteOrder, img.FirstIFDOffset)

	if err := d.seek(img.FirstIFDOffset); err != nil {
		return nil, err
	}
	if img.IFD, err = d.readIFD(img); err != nil {
		return nil, err
	}
	img.Warnings = d.warnings.ErrorOrNil()

	return img, nil
}

func (d *decoder) readHeader(img *Image) error {
	bom, err := d.read2()
	if err != nil {
		return err
	}
	switch bom {
	case byteOrderLittleEndian:
		d.byteOrder = binary.LittleEndian
	case byteOrderBigEndian:
		d.byteOrder = binary.BigEndian
	default:
		return newInvalidFormatErrorf("invalid byte order mark 0x%04x", bom)
	}
	img.ByteOrder = d.byteOrder

	version, err := d.read2()
	if err != nil {
		return err
	}
	d.version = FormatVersion(version)
	switch d.version {
	case Classic:
	case Big:
		offsetSize, err := d.read2()
		if err != nil {
			return err
		}
		if offsetSize != 8 {
			return fmt.Errorf("%w: %d", ErrInvalidOffsetSize, offsetSize)
		}
		padding, err := d.read2()
		if err != nil {
			return err
		}
		if padding != 0 {
			return newInvalidFormatErrorf("invalid BigTIFF header padding %d", padding)
		}
	default:
		return newInvalidFormatErrorf("invalid version %d", version)
	}
	img.FormatVersion = d.version

	img.FirstIFDOffset, err = d.readOffsetField()
	return err
}

func (d *decoder) readIFD(img *Image) (*IFD, error) {
	numEntries, err := d.readEntryCount()
	if err != nil {
		return nil, err
	}
	if numEntries == 0 {
		return nil, newInvalidFormatErrorf("IFD has no entries")
	}
	if numEntries > int64(d.opts.LimitNumTags) {
		return nil, newInvalidFormatErrorf("IFD has %d entries, limit is %d", numEntries, d.opts.LimitNumTags)
	}

	ifd := newIFD(d.byteOrder, d.version)
	img.entries = make([]DirectoryEntry, 0, numEntries)

	for i := int64(0); i < numEntries; i++ {
		e, err := d.readEntry()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		d.debugf("entry %d: %s", i, e)
		img.entries = append(img.entries, e)

		if err := d.handleEntry(ifd, e); err != nil {
			if required(e.Tag) {
				return nil, err
			}
			d.warn(err)
		}
	}

	// Only detected, never followed.
	img.NextIFDOffset, err = d.readOffsetField()
	if err != nil {
		d.warn(fmt.Errorf("reading next IFD offset: %w", err))
		img.NextIFDOffset = 0
	}
	if img.NextIFDOffset != 0 {
		d.debugf("there are more IFDs, next at %d", img.NextIFDOffset)
	}

	d.resolveGeoKeys(ifd)

	if !ifd.IsTiled() && ifd.RowsPerStrip == 0 {
		ifd.RowsPerStrip = ifd.Height
	}

	if err := ifd.Validate(); err != nil {
		return nil, err
	}

	counts, offsets := ifd.StripByteCounts, ifd.StripOffsets
	if ifd.IsTiled() {
		counts, offsets = ifd.TileByteCounts, ifd.TileOffsets
	}
	if len(counts) != len(offsets) {
		d.warn(newInvalidFormatErrorf("got %d byte counts for %d chunks", len(counts), len(offsets)))
	}

	return ifd, nil
}
