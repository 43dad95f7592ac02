// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import "fmt"

// UnknownPrefix is used as prefix for unknown tags.
const UnknownPrefix = "UnknownTag_"

// Tag is a TIFF tag identifier.
// Identifiers outside of the catalog below are valid; see Known.
type Tag uint16

// Baseline and extension tags.
// Source: https://www.awaresystems.be/imaging/tiff/tifftags.html
const (
	// TagNone is the GeoKey location meaning "the value is stored in the key itself".
	TagNone Tag = 0

	TagNewSubfileType            Tag = 254
	TagImageWidth                Tag = 256
	TagImageLength               Tag = 257
	TagBitsPerSample             Tag = 258
	TagCompression               Tag = 259
	TagPhotometricInterpretation Tag = 262
	TagImageDescription          Tag = 270
	TagStripOffsets              Tag = 273
	TagOrientation               Tag = 274
	TagSamplesPerPixel           Tag = 277
	TagRowsPerStrip              Tag = 278
	TagStripByteCounts           Tag = 279
	TagXResolution               Tag = 282
	TagYResolution               Tag = 283
	TagPlanarConfiguration       Tag = 284
	TagXPosition                 Tag = 286
	TagYPosition                 Tag = 287
	TagResolutionUnit            Tag = 296
	TagSoftware                  Tag = 305
	TagDateTime                  Tag = 306
	TagPredictor                 Tag = 317
	TagTileWidth                 Tag = 322
	TagTileLength                Tag = 323
	TagTileOffsets               Tag = 324
	TagTileByteCounts            Tag = 325
	TagExtraSamples              Tag = 338
	TagSampleFormat              Tag = 339
	TagXMP                       Tag = 700

	// GeoTIFF.
	TagModelPixelScale     Tag = 33550
	TagModelTiePoint       Tag = 33922
	TagModelTransformation Tag = 34264
	TagGeoKeyDirectory     Tag = 34735
	TagGeoDoubleParams     Tag = 34736
	TagGeoAsciiParams      Tag = 34737

	// GDAL.
	TagGDALMetadata Tag = 42112
	TagGDALNoData   Tag = 42113
)

var tagNames = map[Tag]string{
	TagNewSubfileType:            "NewSubfileType",
	TagImageWidth:                "ImageWidth",
	TagImageLength:               "ImageLength",
	TagBitsPerSample:             "BitsPerSample",
	TagCompression:               "Compression",
	TagPhotometricInterpretation: "PhotometricInterpretation",
	TagImageDescription:          "ImageDescription",
	TagStripOffsets:              "StripOffsets",
	TagOrientation:               "Orientation",
	TagSamplesPerPixel:           "SamplesPerPixel",
	TagRowsPerStrip:              "RowsPerStrip",
	TagStripByteCounts:           "StripByteCounts",
	TagXResolution:               "XResolution",
	TagYResolution:               "YResolution",
	TagPlanarConfiguration:       "PlanarConfiguration",
	TagXPosition:                 "XPosition",
	TagYPosition:                 "YPosition",
	TagResolutionUnit:            "ResolutionUnit",
	TagSoftware:                  "Software",
	TagDateTime:                  "DateTime",
	TagPredictor:                 "Predictor",
	TagTileWidth:                 "TileWidth",
	TagTileLength:                "TileLength",
	TagTileOffsets:               "TileOffsets",
	TagTileByteCounts:            "TileByteCounts",
	TagExtraSamples:              "ExtraSamples",
	TagSampleFormat:              "SampleFormat",
	TagXMP:                       "XMP",
	TagModelPixelScale:           "ModelPixelScale",
	TagModelTiePoint:             "ModelTiePoint",
	TagModelTransformation:       "ModelTransformation",
	TagGeoKeyDirectory:           "GeoKeyDirectory",
	TagGeoDoubleParams:           "GeoDoubleParams",
	TagGeoAsciiParams:            "GeoAsciiParams",
	TagGDALMetadata:              "GDALMetadata",
	TagGDALNoData:                "GDALNoData",
}

// Known reports whether t is one of the tags this package decodes.
func (t Tag) Known() bool {
	_, ok := tagNames[t]
	return ok
}

func (t Tag) String() string {
	if t == TagNone {
		return "None"
	}
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("%s0x%04x", UnknownPrefix, uint16(t))
}
