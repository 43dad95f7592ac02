// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"fmt"
	"image"
	"io"
)

// checkReadable returns an error if the pixel data of ifd cannot be addressed directly.
func checkReadable(ifd *IFD) error {
	if ifd == nil {
		return ErrNoImage
	}
	if ifd.Compression != CompressionNone {
		return fmt.Errorf("%w: %s compressed pixel data", ErrUnsupported, ifd.Compression)
	}
	if ifd.BitsPerSample == 0 || ifd.BitsPerSample%8 != 0 {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupported, ifd.BitsPerSample)
	}
	if ifd.PlanarConfiguration == 2 && ifd.SamplesPerPixel > 1 {
		return fmt.Errorf("%w: planar configuration 2 with %d samples", ErrUnsupported, ifd.SamplesPerPixel)
	}
	return nil
}

// TileIndex returns the index into TileOffsets of the tile holding the pixel (x, y).
func TileIndex(ifd *IFD, x, y int) (int, error) {
	if ifd == nil {
		return 0, ErrNoImage
	}
	if !ifd.IsTiled() {
		return 0, fmt.Errorf("%w: image is not tiled", ErrUnsupported)
	}
	if x < 0 || y < 0 || x >= int(ifd.Width) || y >= int(ifd.Height) {
		return 0, fmt.Errorf("%w: pixel (%d, %d) outside of %dx%d", ErrIndexOutOfRange, x, y, ifd.Width, ifd.Height)
	}
	i := (y/int(ifd.TileLength))*ifd.TilesAcross() + x/int(ifd.TileWidth)
	if i >= len(ifd.TileOffsets) {
		return 0, fmt.Errorf("%w: tile %d of %d", ErrIndexOutOfRange, i, len(ifd.TileOffsets))
	}
	return i, nil
}

// RowOffset returns the absolute file offset of the pixel at startColumn in row.
func RowOffset(ifd *IFD, row, startColumn int) (int64, error) {
	if err := checkReadable(ifd); err != nil {
		return 0, err
	}
	if row < 0 || row >= int(ifd.Height) || startColumn < 0 || startColumn >= int(ifd.Width) {
		return 0, fmt.Errorf("%w: pixel (%d, %d) outside of %dx%d", ErrIndexOutOfRange, startColumn, row, ifd.Width, ifd.Height)
	}
	bpp := int64(ifd.BytesPerPixel())

	if ifd.IsTiled() {
		i, err := TileIndex(ifd, startColumn, row)
		if err != nil {
			return 0, err
		}
		tw, tl := int64(ifd.TileWidth), int64(ifd.TileLength)
		return ifd.TileOffsets[i] + (int64(row)%tl)*tw*bpp + (int64(startColumn)%tw)*bpp, nil
	}

	rps := int(ifd.RowsPerStrip)
	if rps == 0 {
		return 0, newInvalidFormatErrorf("RowsPerStrip is zero")
	}
	stripIndex, rowInStrip := row/rps, row%rps
	if stripIndex >= len(ifd.StripOffsets) {
		return 0, fmt.Errorf("%w: strip %d of %d", ErrIndexOutOfRange, stripIndex, len(ifd.StripOffsets))
	}
	rowBytes := int64(ifd.Width) * bpp
	return ifd.StripOffsets[stripIndex] + int64(rowInStrip)*rowBytes + int64(startColumn)*bpp, nil
}

// ReadRow reads pixel data of row, starting at startColumn, into buf.
// It reads at most to the end of the row and returns the number of bytes read.
// If r is not an io.ReaderAt its cursor is restored before returning.
// Each goroutine needs its own r.
func ReadRow(ifd *IFD, r io.ReadSeeker, row, startColumn int, buf []byte) (int, error) {
	off, err := RowOffset(ifd, row, startColumn)
	if err != nil {
		return 0, err
	}
	bpp := ifd.BytesPerPixel()

	if !ifd.IsTiled() {
		n := min(len(buf), (int(ifd.Width)-startColumn)*bpp)
		return readAt(r, off, buf[:n])
	}

	// One read per tile crossed.
	var written int
	col := startColumn
	for written < len(buf) && col < int(ifd.Width) {
		if col != startColumn {
			if off, err = RowOffset(ifd, row, col); err != nil {
				return written, err
			}
		}
		inTile := min(int(ifd.TileWidth)-col%int(ifd.TileWidth), int(ifd.Width)-col)
		n := min(inTile*bpp, len(buf)-written)
		m, err := readAt(r, off, buf[written:written+n])
		written += m
		if err != nil {
			return written, err
		}
		col += inTile
	}
	return written, nil
}

// PixelValue returns the first sample of the pixel (x, y).
// Only 16 bits per sample is supported.
func PixelValue(ifd *IFD, r io.ReadSeeker, x, y int) (uint16, error) {
	if ifd == nil {
		return 0, ErrNoImage
	}
	if ifd.BitsPerSample != 16 {
		return 0, fmt.Errorf("%w: pixel value for %d bits per sample", ErrUnsupported, ifd.BitsPerSample)
	}
	off, err := RowOffset(ifd, y, x)
	if err != nil {
		return 0, err
	}
	var b [2]byte
	if _, err := readAt(r, off, b[:]); err != nil {
		return 0, err
	}
	return ifd.ByteOrder.Uint16(b[:]), nil
}

// ReadRegion reads the pixels in rect into dst, one row every stride bytes.
// A stride of 0 means rows are packed.
func ReadRegion(ifd *IFD, r io.ReadSeeker, rect image.Rectangle, dst []byte, stride int) error {
	if err := checkReadable(ifd); err != nil {
		return err
	}
	if rect.Empty() {
		return nil
	}
	if !rect.In(image.Rect(0, 0, int(ifd.Width), int(ifd.Height))) {
		return fmt.Errorf("%w: region %v outside of %dx%d", ErrIndexOutOfRange, rect, ifd.Width, ifd.Height)
	}
	rowBytes := rect.Dx() * ifd.BytesPerPixel()
	if stride == 0 {
		stride = rowBytes
	}
	if stride < rowBytes {
		return fmt.Errorf("stride %d is less than the row size %d", stride, rowBytes)
	}
	if need := (rect.Dy()-1)*stride + rowBytes; len(dst) < need {
		return fmt.Errorf("%w: dst has %d bytes, need %d", ErrIndexOutOfRange, len(dst), need)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		i := (y - rect.Min.Y) * stride
		if _, err := ReadRow(ifd, r, y, rect.Min.X, dst[i:i+rowBytes]); err != nil {
			return fmt.Errorf("row %d: %w", y, err)
		}
	}
	return nil
}

type chunkKey struct {
	tile  bool
	index int
}

// chunk returns the raw bytes of strip or tile i.
func (img *Image) chunk(key chunkKey) ([]byte, error) {
	if img.IFD == nil {
		return nil, ErrNoImage
	}
	if b, ok := img.chunks.Get(key); ok {
		return b, nil
	}

	ifd := img.IFD
	offsets, counts := ifd.StripOffsets, ifd.StripByteCounts
	if key.tile {
		if !ifd.IsTiled() {
			return nil, fmt.Errorf("%w: image is not tiled", ErrUnsupported)
		}
		offsets, counts = ifd.TileOffsets, ifd.TileByteCounts
	} else if ifd.IsTiled() {
		return nil, fmt.Errorf("%w: image is tiled", ErrUnsupported)
	}
	if key.index < 0 || key.index >= len(offsets) {
		return nil, fmt.Errorf("%w: chunk %d of %d", ErrIndexOutOfRange, key.index, len(offsets))
	}

	off := offsets[key.index]
	var size int64
	if key.index < len(counts) {
		size = counts[key.index]
	} else if ifd.Compression == CompressionNone {
		size = img.uncompressedChunkSize(key)
	} else {
		return nil, fmt.Errorf("%w: no byte count for chunk %d", ErrInvalidTIFFFormat, key.index)
	}
	if size < 0 || off < 0 || size > img.size || off > img.size-size {
		return nil, fmt.Errorf("%w: chunk %d at %d with %d bytes exceeds file size %d", ErrUnexpectedEOF, key.index, off, size, img.size)
	}

	b := make([]byte, size)
	if _, err := readAt(img.r, off, b); err != nil {
		return nil, err
	}
	img.chunks.Add(key, b)
	return b, nil
}

func (img *Image) uncompressedChunkSize(key chunkKey) int64 {
	ifd := img.IFD
	bpp := int64(ifd.BytesPerPixel())
	if ifd.PlanarConfiguration == 2 {
		bpp = int64(ifd.BitsPerSample) / 8
	}
	if key.tile {
		return int64(ifd.TileWidth) * int64(ifd.TileLength) * bpp
	}
	rows := int64(ifd.RowsPerStrip)
	if last := int64(ifd.Height) - int64(key.index%ifd.StripCount())*rows; last < rows {
		rows = last
	}
	return rows * int64(ifd.Width) * bpp
}

// ReadStrip returns the raw, possibly compressed, bytes of strip i.
// The returned slice is shared with the cache and must not be modified.
func (img *Image) ReadStrip(i int) ([]byte, error) {
	return img.chunk(chunkKey{index: i})
}

// ReadTile returns the raw, possibly compressed, bytes of tile i.
// The returned slice is shared with the cache and must not be modified.
func (img *Image) ReadTile(i int) ([]byte, error) {
	return img.chunk(chunkKey{tile: true, index: i})
}

// ReadRow is like the package level ReadRow using the image's reader.
func (img *Image) ReadRow(row, startColumn int, buf []byte) (int, error) {
	return ReadRow(img.IFD, img.r, row, startColumn, buf)
}

// ReadRegion is like the package level ReadRegion using the image's reader.
func (img *Image) ReadRegion(rect image.Rectangle, dst []byte, stride int) error {
	return ReadRegion(img.IFD, img.r, rect, dst, stride)
}

// PixelValue is like the package level PixelValue using the image's reader.
// Unsupported bit depths are also reported through Options.Warnf.
func (img *Image) PixelValue(x, y int) (uint16, error) {
	v, err := PixelValue(img.IFD, img.r, x, y)
	if err != nil && img.IFD != nil && img.IFD.BitsPerSample != 16 {
		img.opts.Warnf("pixel value not read: %d bits per sample", img.IFD.BitsPerSample)
	}
	return v, err
}
