// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Compression is the compression scheme of the pixel data.
// Only CompressionNone can be read by this package; the others are recorded.
type Compression uint16

const (
	CompressionNone         Compression = 1
	CompressionCCITT        Compression = 2
	CompressionT4           Compression = 3
	CompressionT6           Compression = 4
	CompressionLZW          Compression = 5
	CompressionJPEGOld      Compression = 6
	CompressionJPEG         Compression = 7
	CompressionDeflate      Compression = 8
	CompressionPKZipDeflate Compression = 32946
	CompressionPackBits     Compression = 32773
)

var compressionNames = map[Compression]string{
	CompressionNone:         "None",
	CompressionCCITT:        "CCITT",
	CompressionT4:           "T4",
	CompressionT6:           "T6",
	CompressionLZW:          "LZW",
	CompressionJPEGOld:      "JPEGOld",
	CompressionJPEG:         "JPEG",
	CompressionDeflate:      "Deflate",
	CompressionPKZipDeflate: "PKZipDeflate",
	CompressionPackBits:     "PackBits",
}

func (c Compression) Known() bool {
	_, ok := compressionNames[c]
	return ok
}

func (c Compression) String() string {
	if s, ok := compressionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Compression(%d)", uint16(c))
}

// Predictor is the differencing applied before compression.
type Predictor uint16

const (
	PredictorNone                    Predictor = 1
	PredictorHorizontal              Predictor = 2
	PredictorFloatingPointHorizontal Predictor = 3
)

func (p Predictor) String() string {
	switch p {
	case PredictorNone:
		return "None"
	case PredictorHorizontal:
		return "Horizontal"
	case PredictorFloatingPointHorizontal:
		return "FloatingPointHorizontal"
	}
	return fmt.Sprintf("Predictor(%d)", uint16(p))
}

// SampleFormat is the interpretation of each sample.
// Values outside of the constants below are kept as is.
type SampleFormat uint16

const (
	SampleFormatUnsignedInt  SampleFormat = 1
	SampleFormatSignedInt    SampleFormat = 2
	SampleFormatFloat        SampleFormat = 3
	SampleFormatVoid         SampleFormat = 4
	SampleFormatComplexInt   SampleFormat = 5
	SampleFormatComplexFloat SampleFormat = 6
)

func (s SampleFormat) Known() bool {
	return s >= SampleFormatUnsignedInt && s <= SampleFormatComplexFloat
}

func (s SampleFormat) String() string {
	switch s {
	case SampleFormatUnsignedInt:
		return "UnsignedInt"
	case SampleFormatSignedInt:
		return "SignedInt"
	case SampleFormatFloat:
		return "Float"
	case SampleFormatVoid:
		return "Void"
	case SampleFormatComplexInt:
		return "ComplexInt"
	case SampleFormatComplexFloat:
		return "ComplexFloat"
	}
	return fmt.Sprintf("Unknown(%d)", uint16(s))
}

// ResolutionUnit is the unit of XResolution and YResolution.
type ResolutionUnit uint16

const (
	ResolutionUnitNone       ResolutionUnit = 1
	ResolutionUnitInch       ResolutionUnit = 2
	ResolutionUnitCentimeter ResolutionUnit = 3
)

func (r ResolutionUnit) String() string {
	switch r {
	case ResolutionUnitNone:
		return "None"
	case ResolutionUnitInch:
		return "Inch"
	case ResolutionUnitCentimeter:
		return "Centimeter"
	}
	return fmt.Sprintf("ResolutionUnit(%d)", uint16(r))
}

// ModelTiePoint ties the raster point (I, J, K) to the model point (X, Y, Z).
type ModelTiePoint struct {
	I, J, K float64
	X, Y, Z float64
}

// IFD is the decoded first image file directory.
// It is not modified after Decode returns and can be shared between goroutines.
type IFD struct {
	ByteOrder     binary.ByteOrder `json:"-"`
	FormatVersion FormatVersion

	Width           uint32
	Height          uint32
	BitsPerSample   uint16
	SamplesPerPixel uint16
	Compression     Compression

	// Photometric is the raw PhotometricInterpretation.
	Photometric            uint16
	PhotometricBlackIsZero bool

	PlanarConfiguration uint16
	RowsPerStrip        uint32
	StripOffsets        []int64
	StripByteCounts     []int64

	TileWidth      uint32
	TileLength     uint32
	TileOffsets    []int64
	TileByteCounts []int64

	Predictor    Predictor
	SampleFormat SampleFormat
	ExtraSamples []int64
	Orientation  uint16

	XResolution      Rational
	YResolution      Rational
	ResolutionUnit   ResolutionUnit
	ImageDescription string
	Software         string
	DateTime         string

	// XMP is the raw XMP packet, if any.
	XMP []byte `json:"-"`

	ModelPixelScale     [3]float64
	ModelTiePoints      []ModelTiePoint
	ModelTransformation []float64

	GeoKeyDirectoryVersion uint16
	GeoKeyRevision         uint16
	GeoKeyMinorRevision    uint16
	GeoKeyEntries          []GeoKeyEntry
	GeoDoubleParams        []float64
	GeoAsciiParams         string
	GeoAsciiStrings        []string

	// geoASCIIRaw is GeoAsciiParams as stored. Citation keys index into these bytes.
	geoASCIIRaw []byte

	// Resolved from the GeoKeys.
	ModelType              *ModelType
	RasterType             *RasterType
	GTCitation             string
	GeographicType         uint16
	GeogCitation           string
	AngularUnits           AngularUnit
	Datum                  GeodeticDatum
	Ellipsoid              Ellipsoid
	SemiMajorAxis          float64
	SemiMinorAxis          float64
	InvFlattening          float64
	PrimeMeridianLongitude float64
	GeogLinearUnits        uint16
	GeogAzimuthUnits       uint16
	ToWGS84                []float64
	ProjectedCSType        uint16
	PCSCitation            string
	ProjLinearUnits        uint16
	VerticalCSType         uint16
	VerticalDatum          uint16
	VerticalUnits          uint16

	GDALNoData    *int64
	GDALNoDataRaw string
	GDALMetadata  []GDALMetadataItem
}

func newIFD(byteOrder binary.ByteOrder, version FormatVersion) *IFD {
	return &IFD{
		ByteOrder:              byteOrder,
		FormatVersion:          version,
		SamplesPerPixel:        1,
		Compression:            CompressionNone,
		PhotometricBlackIsZero: true,
		PlanarConfiguration:    1,
		Predictor:              PredictorNone,
		SampleFormat:           SampleFormatUnsignedInt,
		Orientation:            1,
		ResolutionUnit:         ResolutionUnitInch,
		ModelPixelScale:        [3]float64{1, 1, 1},
		AngularUnits:           AngularUnitDegree,
		Datum:                  DatumUndefined,
		Ellipsoid:              EllipsoidUndefined,
	}
}

// IsTiled reports whether the pixel data is organized in tiles.
func (f *IFD) IsTiled() bool {
	return f.TileWidth > 0 && f.TileLength > 0
}

// BytesPerPixel is the size of one pixel with all its samples, in bytes.
func (f *IFD) BytesPerPixel() int {
	return int(f.SamplesPerPixel) * int(f.BitsPerSample) / 8
}

// StripCount is the number of strips needed to hold Height rows.
func (f *IFD) StripCount() int {
	if f.RowsPerStrip == 0 {
		return 0
	}
	return int((int64(f.Height) + int64(f.RowsPerStrip) - 1) / int64(f.RowsPerStrip))
}

// TilesAcross is the number of tile columns.
func (f *IFD) TilesAcross() int {
	if f.TileWidth == 0 {
		return 0
	}
	return int((int64(f.Width) + int64(f.TileWidth) - 1) / int64(f.TileWidth))
}

// TilesDown is the number of tile rows.
func (f *IFD) TilesDown() int {
	if f.TileLength == 0 {
		return 0
	}
	return int((int64(f.Height) + int64(f.TileLength) - 1) / int64(f.TileLength))
}

func (f *IFD) planes() int {
	if f.PlanarConfiguration == 2 {
		return int(f.SamplesPerPixel)
	}
	return 1
}

// Validate checks that the chunk arrays match the image geometry.
func (f *IFD) Validate() error {
	if f.Width == 0 || f.Height == 0 {
		return newInvalidFormatErrorf("image has no size (%dx%d)", f.Width, f.Height)
	}
	if f.BitsPerSample == 0 {
		return newInvalidFormatErrorf("BitsPerSample is zero")
	}
	if f.IsTiled() {
		want := f.TilesAcross() * f.TilesDown() * f.planes()
		if len(f.TileOffsets) != want {
			return newInvalidFormatErrorf("got %d tile offsets, want %d", len(f.TileOffsets), want)
		}
		return nil
	}
	if f.TileWidth > 0 || f.TileLength > 0 {
		return newInvalidFormatErrorf("incomplete tile geometry %dx%d", f.TileWidth, f.TileLength)
	}
	want := f.StripCount() * f.planes()
	if len(f.StripOffsets) != want {
		return newInvalidFormatErrorf("got %d strip offsets, want %d", len(f.StripOffsets), want)
	}
	return nil
}

// required reports whether errors in the tag must abort the decode.
func required(tag Tag) bool {
	switch tag {
	case TagImageWidth, TagImageLength, TagBitsPerSample, TagSamplesPerPixel,
		TagRowsPerStrip, TagStripOffsets, TagTileOffsets, TagTileWidth,
		TagTileLength, TagCompression, TagPlanarConfiguration:
		return true
	}
	return false
}

// handleEntry stores the value of e in ifd.
func (d *decoder) handleEntry(ifd *IFD, e DirectoryEntry) error {
	var err error
	switch e.Tag {
	case TagImageWidth:
		ifd.Width, err = d.entryUint32(e)
	case TagImageLength:
		ifd.Height, err = d.entryUint32(e)
	case TagBitsPerSample:
		var v int64
		v, err = d.entryUint(e, math.MaxUint16, true)
		ifd.BitsPerSample = uint16(v)
	case TagSamplesPerPixel:
		ifd.SamplesPerPixel, err = d.entryUint16(e)
	case TagRowsPerStrip:
		ifd.RowsPerStrip, err = d.entryUint32(e)
	case TagPlanarConfiguration:
		ifd.PlanarConfiguration, err = d.entryUint16(e)
		if err == nil && ifd.PlanarConfiguration != 1 && ifd.PlanarConfiguration != 2 {
			err = newInvalidFormatErrorf("invalid PlanarConfiguration %d", ifd.PlanarConfiguration)
		}
	case TagCompression:
		var v uint16
		v, err = d.entryUint16(e)
		ifd.Compression = Compression(v)
		if err == nil && !ifd.Compression.Known() {
			// The image can still be described, just not read.
			d.warn(fmt.Errorf("%w: %d", ErrInvalidCompression, v))
		}
	case TagPhotometricInterpretation:
		ifd.Photometric, err = d.entryUint16(e)
		ifd.PhotometricBlackIsZero = ifd.Photometric != 0
	case TagPredictor:
		var v uint16
		v, err = d.entryUint16(e)
		if err == nil {
			ifd.Predictor = Predictor(v)
			if v < 1 || v > 3 {
				err = fmt.Errorf("%w: %d", ErrInvalidPredictor, v)
			}
		}
	case TagSampleFormat:
		var v int64
		v, err = d.entryUint(e, math.MaxUint16, true)
		ifd.SampleFormat = SampleFormat(v)
	case TagStripOffsets:
		ifd.StripOffsets, err = d.entryInts(e)
	case TagStripByteCounts:
		ifd.StripByteCounts, err = d.entryInts(e)
	case TagTileWidth:
		ifd.TileWidth, err = d.entryUint32(e)
	case TagTileLength:
		ifd.TileLength, err = d.entryUint32(e)
	case TagTileOffsets:
		ifd.TileOffsets, err = d.entryInts(e)
	case TagTileByteCounts:
		ifd.TileByteCounts, err = d.entryInts(e)
	case TagExtraSamples:
		ifd.ExtraSamples, err = d.entryInts(e)
	case TagOrientation:
		ifd.Orientation, err = d.entryUint16(e)
	case TagXResolution:
		ifd.XResolution, err = d.entryRational(e)
	case TagYResolution:
		ifd.YResolution, err = d.entryRational(e)
	case TagResolutionUnit:
		var v uint16
		v, err = d.entryUint16(e)
		if err == nil {
			if v < 1 || v > 3 {
				err = fmt.Errorf("%w: %d", ErrInvalidResolutionUnit, v)
			} else {
				ifd.ResolutionUnit = ResolutionUnit(v)
			}
		}
	case TagImageDescription:
		ifd.ImageDescription, err = d.entryASCII(e)
	case TagSoftware:
		ifd.Software, err = d.entryASCII(e)
	case TagDateTime:
		ifd.DateTime, err = d.entryASCII(e)
	case TagXMP:
		ifd.XMP, err = d.entryBytes(e)
	case TagModelPixelScale:
		var v []float64
		v, err = d.entryDoubles(e)
		if err == nil {
			if len(v) < 2 {
				err = fmt.Errorf("%w: ModelPixelScale has %d values", ErrTagTypeConversion, len(v))
			} else {
				copy(ifd.ModelPixelScale[:], v)
			}
		}
	case TagModelTiePoint:
		var v []float64
		v, err = d.entryDoubles(e)
		if err == nil {
			if len(v)%6 != 0 {
				d.warnf("ModelTiePoint has %d values, not a multiple of 6", len(v))
			}
			for i := 0; i+6 <= len(v); i += 6 {
				ifd.ModelTiePoints = append(ifd.ModelTiePoints, ModelTiePoint{
					I: v[i], J: v[i+1], K: v[i+2],
					X: v[i+3], Y: v[i+4], Z: v[i+5],
				})
			}
		}
	case TagModelTransformation:
		var v []float64
		v, err = d.entryDoubles(e)
		if err == nil {
			if len(v) != 16 {
				err = fmt.Errorf("%w: ModelTransformation has %d values, want 16", ErrTagTypeConversion, len(v))
			} else {
				ifd.ModelTransformation = v
			}
		}
	case TagGeoKeyDirectory:
		err = d.handleGeoKeyDirectory(ifd, e)
	case TagGeoDoubleParams:
		ifd.GeoDoubleParams, err = d.entryDoubles(e)
	case TagGeoAsciiParams:
		var raw []byte
		raw, err = d.entryRawASCII(e)
		if err == nil {
			ifd.geoASCIIRaw = raw
			ifd.GeoAsciiParams = decodeASCII(raw)
			ifd.GeoAsciiStrings = splitGeoASCII(raw)
		}
	case TagGDALNoData:
		ifd.GDALNoDataRaw, err = d.entryASCII(e)
		if err == nil {
			var v int64
			v, err = parseNoData(ifd.GDALNoDataRaw)
			if err == nil {
				ifd.GDALNoData = &v
			}
		}
	case TagGDALMetadata:
		var s string
		s, err = d.entryASCII(e)
		if err == nil {
			ifd.GDALMetadata, err = decodeGDALMetadata(strings.NewReader(s))
		}
	case TagNewSubfileType:
		// Nothing to do, only the first IFD is read.
	default:
		d.warnf("skipping %s (%s[%d])", e.Tag, e.Type, e.Count)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", e.Tag, err)
	}
	return nil
}

// splitGeoASCII splits the GeoAsciiParams bytes into their |-terminated parts.
func splitGeoASCII(b []byte) []string {
	b = bytes.TrimSuffix(bytes.TrimRight(b, "\x00"), []byte("|"))
	if len(b) == 0 {
		return nil
	}
	parts := bytes.Split(b, []byte("|"))
	ss := make([]string, len(parts))
	for i, p := range parts {
		ss[i] = decodeASCII(p)
	}
	return ss
}

// parseNoData parses the GDAL_NODATA string.
// Integral floats like "-9999.0" are accepted.
func parseNoData(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: GDAL_NODATA %q is not a number", ErrTagTypeConversion, s)
	}
	// float64(math.MaxInt64) is 1<<63, which does not fit.
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: GDAL_NODATA %q is not an integer", ErrTagTypeConversion, s)
	}
	return int64(f), nil
}
