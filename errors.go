// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTIFFFormat is returned for a bad byte order mark, version, padding or IFD structure.
	ErrInvalidTIFFFormat = errors.New("geotiff: invalid TIFF format")

	// ErrInvalidOffsetSize is returned when a BigTIFF header declares an offset size other than 8.
	ErrInvalidOffsetSize = errors.New("geotiff: invalid offset size")

	// ErrInvalidCompression is returned for a compression code outside the recognized set.
	ErrInvalidCompression = errors.New("geotiff: invalid compression")

	// ErrInvalidResolutionUnit is returned for a resolution unit other than 1, 2 or 3.
	ErrInvalidResolutionUnit = errors.New("geotiff: invalid resolution unit")

	// ErrInvalidPredictor is returned for a predictor other than 1, 2 or 3.
	ErrInvalidPredictor = errors.New("geotiff: invalid predictor")

	// ErrInvalidModelType is returned for a GTModelTypeGeoKey value other than 1, 2 or 3.
	ErrInvalidModelType = errors.New("geotiff: invalid model type")

	// ErrInvalidRasterType is returned for a GTRasterTypeGeoKey value other than 1 or 2.
	ErrInvalidRasterType = errors.New("geotiff: invalid raster type")

	// ErrTagTypeConversion is returned when a tag's declared type or count
	// does not fit the field it is decoded into.
	ErrTagTypeConversion = errors.New("geotiff: tag type conversion error")

	// ErrUnexpectedEOF is returned when fewer bytes remain in the source than a read requires.
	ErrUnexpectedEOF = errors.New("geotiff: unexpected end of file")

	// ErrIndexOutOfRange is returned for strip, tile, pixel or parameter indices beyond their bounds.
	ErrIndexOutOfRange = errors.New("geotiff: index out of range")

	// ErrNoImage is returned when pixel access is attempted without a decoded IFD.
	ErrNoImage = errors.New("geotiff: no image")

	// ErrUnsupported is returned for valid but unimplemented pixel layouts,
	// e.g. compressed payloads or bit depths other than 16 in PixelValue.
	ErrUnsupported = errors.New("geotiff: unsupported")
)

var errShortRead = fmt.Errorf("%w: short read", ErrUnexpectedEOF)

func newInvalidFormatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTIFFFormat, fmt.Sprintf(format, args...))
}

// IsInvalidFormat reports whether err is caused by malformed input,
// as opposed to an I/O failure or an unsupported feature.
func IsInvalidFormat(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		ErrInvalidTIFFFormat,
		ErrInvalidOffsetSize,
		ErrInvalidCompression,
		ErrInvalidResolutionUnit,
		ErrInvalidPredictor,
		ErrInvalidModelType,
		ErrInvalidRasterType,
		ErrTagTypeConversion,
		ErrUnexpectedEOF,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
