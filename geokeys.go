// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"bytes"
	"errors"
	"fmt"
)

// GeoKey identifies a GeoTIFF key in the GeoKeyDirectory.
type GeoKey uint16

const (
	GeoKeyModelType             GeoKey = 1024
	GeoKeyRasterType            GeoKey = 1025
	GeoKeyCitation              GeoKey = 1026
	GeoKeyGeographicType        GeoKey = 2048
	GeoKeyGeogCitation          GeoKey = 2049
	GeoKeyGeodeticDatum         GeoKey = 2050
	GeoKeyPrimeMeridian         GeoKey = 2051
	GeoKeyGeogLinearUnits       GeoKey = 2052
	GeoKeyGeogLinearUnitSize    GeoKey = 2053
	GeoKeyGeogAngularUnits      GeoKey = 2054
	GeoKeyGeogAngularUnitSize   GeoKey = 2055
	GeoKeyGeogEllipsoid         GeoKey = 2056
	GeoKeyGeogSemiMajorAxis     GeoKey = 2057
	GeoKeyGeogSemiMinorAxis     GeoKey = 2058
	GeoKeyGeogInvFlattening     GeoKey = 2059
	GeoKeyGeogAzimuthUnits      GeoKey = 2060
	GeoKeyGeogPrimeMeridianLong GeoKey = 2061
	GeoKeyGeogTOWGS84           GeoKey = 2062
	GeoKeyProjectedCSType       GeoKey = 3072
	GeoKeyPCSCitation           GeoKey = 3073
	GeoKeyProjLinearUnits       GeoKey = 3076
	GeoKeyVerticalCSType        GeoKey = 4096
	GeoKeyVerticalCitation      GeoKey = 4097
	GeoKeyVerticalDatum         GeoKey = 4098
	GeoKeyVerticalUnits         GeoKey = 4099
)

var geoKeyNames = map[GeoKey]string{
	GeoKeyModelType:             "GTModelType",
	GeoKeyRasterType:            "GTRasterType",
	GeoKeyCitation:              "GTCitation",
	GeoKeyGeographicType:        "GeographicType",
	GeoKeyGeogCitation:          "GeogCitation",
	GeoKeyGeodeticDatum:         "GeogGeodeticDatum",
	GeoKeyPrimeMeridian:         "GeogPrimeMeridian",
	GeoKeyGeogLinearUnits:       "GeogLinearUnits",
	GeoKeyGeogLinearUnitSize:    "GeogLinearUnitSize",
	GeoKeyGeogAngularUnits:      "GeogAngularUnits",
	GeoKeyGeogAngularUnitSize:   "GeogAngularUnitSize",
	GeoKeyGeogEllipsoid:         "GeogEllipsoid",
	GeoKeyGeogSemiMajorAxis:     "GeogSemiMajorAxis",
	GeoKeyGeogSemiMinorAxis:     "GeogSemiMinorAxis",
	GeoKeyGeogInvFlattening:     "GeogInvFlattening",
	GeoKeyGeogAzimuthUnits:      "GeogAzimuthUnits",
	GeoKeyGeogPrimeMeridianLong: "GeogPrimeMeridianLong",
	GeoKeyGeogTOWGS84:           "GeogTOWGS84",
	GeoKeyProjectedCSType:       "ProjectedCSType",
	GeoKeyPCSCitation:           "PCSCitation",
	GeoKeyProjLinearUnits:       "ProjLinearUnits",
	GeoKeyVerticalCSType:        "VerticalCSType",
	GeoKeyVerticalCitation:      "VerticalCitation",
	GeoKeyVerticalDatum:         "VerticalDatum",
	GeoKeyVerticalUnits:         "VerticalUnits",
}

func (k GeoKey) String() string {
	if s, ok := geoKeyNames[k]; ok {
		return s
	}
	return fmt.Sprintf("GeoKey(%d)", uint16(k))
}

// GeoKeyEntry is one record of the GeoKeyDirectory.
// With TagLocation TagNone, ValueOrOffset is the value itself.
// Otherwise it is an index into the array held by TagLocation.
type GeoKeyEntry struct {
	Key           GeoKey
	TagLocation   Tag
	Count         uint16
	ValueOrOffset uint16
}

// ModelType is the GTModelTypeGeoKey value.
type ModelType uint16

const (
	ModelTypeProjected  ModelType = 1
	ModelTypeGeographic ModelType = 2
	ModelTypeGeocentric ModelType = 3
)

func (m ModelType) String() string {
	switch m {
	case ModelTypeProjected:
		return "Projected"
	case ModelTypeGeographic:
		return "Geographic"
	case ModelTypeGeocentric:
		return "Geocentric"
	}
	return fmt.Sprintf("ModelType(%d)", uint16(m))
}

// RasterType is the GTRasterTypeGeoKey value.
type RasterType uint16

const (
	RasterPixelIsArea  RasterType = 1
	RasterPixelIsPoint RasterType = 2
)

func (r RasterType) String() string {
	switch r {
	case RasterPixelIsArea:
		return "PixelIsArea"
	case RasterPixelIsPoint:
		return "PixelIsPoint"
	}
	return fmt.Sprintf("RasterType(%d)", uint16(r))
}

// AngularUnit is an EPSG angular unit code.
type AngularUnit uint16

const (
	AngularUnitRadian        AngularUnit = 9101
	AngularUnitDegree        AngularUnit = 9102
	AngularUnitArcMinute     AngularUnit = 9103
	AngularUnitArcSecond     AngularUnit = 9104
	AngularUnitGrad          AngularUnit = 9105
	AngularUnitGon           AngularUnit = 9106
	AngularUnitDMS           AngularUnit = 9107
	AngularUnitDMSHemisphere AngularUnit = 9108
)

var angularUnitNames = map[AngularUnit]string{
	AngularUnitRadian:        "Radian",
	AngularUnitDegree:        "Degree",
	AngularUnitArcMinute:     "ArcMinute",
	AngularUnitArcSecond:     "ArcSecond",
	AngularUnitGrad:          "Grad",
	AngularUnitGon:           "Gon",
	AngularUnitDMS:           "DMS",
	AngularUnitDMSHemisphere: "DMSHemisphere",
}

func (a AngularUnit) String() string {
	if s, ok := angularUnitNames[a]; ok {
		return s
	}
	return fmt.Sprintf("AngularUnit(%d)", uint16(a))
}

// GeodeticDatum is an EPSG geodetic datum code.
// Codes not listed below resolve to DatumUserDefined.
type GeodeticDatum uint16

const (
	DatumUndefined   GeodeticDatum = 0
	DatumNAD27       GeodeticDatum = 6267
	DatumNAD83       GeodeticDatum = 6269
	DatumETRS89      GeodeticDatum = 6258
	DatumWGS72       GeodeticDatum = 6322
	DatumWGS84       GeodeticDatum = 6326
	DatumUserDefined GeodeticDatum = 32767
)

var datumNames = map[GeodeticDatum]string{
	DatumUndefined:   "Undefined",
	DatumNAD27:       "NAD27",
	DatumNAD83:       "NAD83",
	DatumETRS89:      "ETRS89",
	DatumWGS72:       "WGS72",
	DatumWGS84:       "WGS84",
	DatumUserDefined: "UserDefined",
}

func (g GeodeticDatum) String() string {
	if s, ok := datumNames[g]; ok {
		return s
	}
	return fmt.Sprintf("GeodeticDatum(%d)", uint16(g))
}

// Ellipsoid is an EPSG ellipsoid code.
// Codes not listed below resolve to EllipsoidUserDefined.
type Ellipsoid uint16

const (
	EllipsoidUndefined   Ellipsoid = 0
	EllipsoidClarke1866  Ellipsoid = 7008
	EllipsoidGRS1980     Ellipsoid = 7019
	EllipsoidWGS84       Ellipsoid = 7030
	EllipsoidSphere      Ellipsoid = 7035
	EllipsoidWGS72       Ellipsoid = 7043
	EllipsoidUserDefined Ellipsoid = 32767
)

var ellipsoidNames = map[Ellipsoid]string{
	EllipsoidUndefined:   "Undefined",
	EllipsoidClarke1866:  "Clarke1866",
	EllipsoidGRS1980:     "GRS1980",
	EllipsoidWGS84:       "WGS84",
	EllipsoidSphere:      "Sphere",
	EllipsoidWGS72:       "WGS72",
	EllipsoidUserDefined: "UserDefined",
}

func (e Ellipsoid) String() string {
	if s, ok := ellipsoidNames[e]; ok {
		return s
	}
	return fmt.Sprintf("Ellipsoid(%d)", uint16(e))
}

const geoKeyHeaderLen = 4

// handleGeoKeyDirectory reads the key directory header and records.
// The records are resolved once all entries of the IFD are read.
func (d *decoder) handleGeoKeyDirectory(ifd *IFD, e DirectoryEntry) error {
	v, err := d.entryInts(e)
	if err != nil {
		return err
	}
	if len(v) < geoKeyHeaderLen {
		return newInvalidFormatErrorf("GeoKeyDirectory has %d values", len(v))
	}
	if v[0] != 1 {
		d.warnf("unsupported GeoKeyDirectory version %d, skipping", v[0])
		return nil
	}
	ifd.GeoKeyDirectoryVersion = uint16(v[0])
	ifd.GeoKeyRevision = uint16(v[1])
	ifd.GeoKeyMinorRevision = uint16(v[2])

	keyCount := int(v[3])
	if len(v) < keyCount*4+geoKeyHeaderLen {
		return newInvalidFormatErrorf("GeoKeyDirectory has %d values, want %d for %d keys", len(v), keyCount*4+geoKeyHeaderLen, keyCount)
	}
	ifd.GeoKeyEntries = make([]GeoKeyEntry, keyCount)
	for i := range ifd.GeoKeyEntries {
		r := v[geoKeyHeaderLen+i*4:]
		ifd.GeoKeyEntries[i] = GeoKeyEntry{
			Key:           GeoKey(r[0]),
			TagLocation:   Tag(r[1]),
			Count:         uint16(r[2]),
			ValueOrOffset: uint16(r[3]),
		}
	}
	return nil
}

// resolveGeoKeys fills in the geo fields of ifd from its GeoKey entries.
// Errors are reported per key and do not stop the resolution of the others.
func (d *decoder) resolveGeoKeys(ifd *IFD) {
	for _, gk := range ifd.GeoKeyEntries {
		err := resolveGeoKey(ifd, gk)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnsupported):
			d.warnf("skipping GeoKey %s", gk.Key)
		default:
			d.warn(fmt.Errorf("%s: %w", gk.Key, err))
		}
	}
}

func resolveGeoKey(ifd *IFD, gk GeoKeyEntry) error {
	switch gk.Key {
	case GeoKeyModelType:
		v, err := geoShort(gk)
		if err != nil {
			return err
		}
		if v < 1 || v > 3 {
			return fmt.Errorf("%w: %d", ErrInvalidModelType, v)
		}
		m := ModelType(v)
		ifd.ModelType = &m
	case GeoKeyRasterType:
		v, err := geoShort(gk)
		if err != nil {
			return err
		}
		if v < 1 || v > 2 {
			return fmt.Errorf("%w: %d", ErrInvalidRasterType, v)
		}
		r := RasterType(v)
		ifd.RasterType = &r
	case GeoKeyGeogAngularUnits:
		v, err := geoShort(gk)
		if err != nil {
			return err
		}
		if _, ok := angularUnitNames[AngularUnit(v)]; !ok {
			return newInvalidFormatErrorf("unknown angular unit %d", v)
		}
		ifd.AngularUnits = AngularUnit(v)
	case GeoKeyGeodeticDatum:
		v, err := geoShort(gk)
		if err != nil {
			return err
		}
		ifd.Datum = GeodeticDatum(v)
		if _, ok := datumNames[ifd.Datum]; !ok {
			ifd.Datum = DatumUserDefined
		}
	case GeoKeyGeogEllipsoid:
		v, err := geoShort(gk)
		if err != nil {
			return err
		}
		ifd.Ellipsoid = Ellipsoid(v)
		if _, ok := ellipsoidNames[ifd.Ellipsoid]; !ok {
			ifd.Ellipsoid = EllipsoidUserDefined
		}
	case GeoKeyGeogSemiMajorAxis:
		return geoDouble(ifd, gk, &ifd.SemiMajorAxis)
	case GeoKeyGeogSemiMinorAxis:
		return geoDouble(ifd, gk, &ifd.SemiMinorAxis)
	case GeoKeyGeogInvFlattening:
		return geoDouble(ifd, gk, &ifd.InvFlattening)
	case GeoKeyGeogPrimeMeridianLong:
		return geoDouble(ifd, gk, &ifd.PrimeMeridianLongitude)
	case GeoKeyGeogTOWGS84:
		if gk.TagLocation != TagGeoDoubleParams {
			return fmt.Errorf("%w: stored in %s", ErrTagTypeConversion, gk.TagLocation)
		}
		start, end := int(gk.ValueOrOffset), int(gk.ValueOrOffset)+int(gk.Count)
		if end > len(ifd.GeoDoubleParams) {
			return fmt.Errorf("%w: [%d:%d] of %d GeoDoubleParams", ErrIndexOutOfRange, start, end, len(ifd.GeoDoubleParams))
		}
		ifd.ToWGS84 = append([]float64(nil), ifd.GeoDoubleParams[start:end]...)
	case GeoKeyCitation:
		return geoASCII(ifd, gk, &ifd.GTCitation)
	case GeoKeyGeogCitation:
		return geoASCII(ifd, gk, &ifd.GeogCitation)
	case GeoKeyPCSCitation:
		return geoASCII(ifd, gk, &ifd.PCSCitation)
	case GeoKeyGeographicType:
		return geoShortInto(gk, &ifd.GeographicType)
	case GeoKeyGeogLinearUnits:
		return geoShortInto(gk, &ifd.GeogLinearUnits)
	case GeoKeyGeogAzimuthUnits:
		return geoShortInto(gk, &ifd.GeogAzimuthUnits)
	case GeoKeyProjectedCSType:
		return geoShortInto(gk, &ifd.ProjectedCSType)
	case GeoKeyProjLinearUnits:
		return geoShortInto(gk, &ifd.ProjLinearUnits)
	case GeoKeyVerticalCSType:
		return geoShortInto(gk, &ifd.VerticalCSType)
	case GeoKeyVerticalDatum:
		return geoShortInto(gk, &ifd.VerticalDatum)
	case GeoKeyVerticalUnits:
		return geoShortInto(gk, &ifd.VerticalUnits)
	default:
		return fmt.Errorf("%w: key not handled", ErrUnsupported)
	}
	return nil
}

// geoShort returns the literal value of a key stored in the directory itself.
func geoShort(gk GeoKeyEntry) (uint16, error) {
	if gk.TagLocation != TagNone {
		return 0, fmt.Errorf("%w: stored in %s, want a literal", ErrTagTypeConversion, gk.TagLocation)
	}
	return gk.ValueOrOffset, nil
}

func geoShortInto(gk GeoKeyEntry, dst *uint16) error {
	v, err := geoShort(gk)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// geoDouble resolves a double key, either by index into GeoDoubleParams or as a literal.
func geoDouble(ifd *IFD, gk GeoKeyEntry, dst *float64) error {
	switch gk.TagLocation {
	case TagGeoDoubleParams:
		i := int(gk.ValueOrOffset)
		if i >= len(ifd.GeoDoubleParams) {
			return fmt.Errorf("%w: index %d of %d GeoDoubleParams", ErrIndexOutOfRange, i, len(ifd.GeoDoubleParams))
		}
		*dst = ifd.GeoDoubleParams[i]
	case TagNone:
		*dst = float64(gk.ValueOrOffset)
	default:
		return fmt.Errorf("%w: stored in %s", ErrTagTypeConversion, gk.TagLocation)
	}
	return nil
}

// geoASCII resolves a citation key as a substring of GeoAsciiParams.
func geoASCII(ifd *IFD, gk GeoKeyEntry, dst *string) error {
	if gk.TagLocation != TagGeoAsciiParams {
		return fmt.Errorf("%w: stored in %s", ErrTagTypeConversion, gk.TagLocation)
	}
	start, end := int(gk.ValueOrOffset), int(gk.ValueOrOffset)+int(gk.Count)
	if end > len(ifd.geoASCIIRaw) {
		return fmt.Errorf("%w: [%d:%d] of %d GeoAsciiParams bytes", ErrIndexOutOfRange, start, end, len(ifd.geoASCIIRaw))
	}
	*dst = decodeASCII(bytes.TrimRight(ifd.geoASCIIRaw[start:end], "|\x00"))
	return nil
}
