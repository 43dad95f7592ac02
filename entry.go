// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"fmt"
	"math"
)

// DirectoryEntry is one raw IFD entry.
type DirectoryEntry struct {
	// Location is the absolute offset of the entry in the file.
	Location int64
	Tag      Tag
	Type     TagType
	Count    int64

	// Value is set when the value fits in the entry's value field.
	Value TagValue

	// Offset is the absolute offset of the value when Indirect is set.
	Offset   int64
	Indirect bool
}

func (e DirectoryEntry) String() string {
	if e.Indirect {
		return fmt.Sprintf("%s %s[%d] @%d", e.Tag, e.Type, e.Count, e.Offset)
	}
	return fmt.Sprintf("%s %s[%d] %s", e.Tag, e.Type, e.Count, formatValue(e.Value))
}

// readOffsetField reads a file offset, 4 bytes in Classic TIFF and 8 in BigTIFF.
func (d *decoder) readOffsetField() (int64, error) {
	if d.version == Classic {
		v, err := d.read4()
		return int64(v), err
	}
	v, err := d.read8()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return 0, newInvalidFormatErrorf("offset %d overflows", v)
	}
	return int64(v), nil
}

// readCountField reads the value count of an entry.
// It has the same width as the offset field.
func (d *decoder) readCountField() (int64, error) {
	return d.readOffsetField()
}

// readEntryCount reads the number of entries in an IFD, 2 bytes in Classic TIFF and 8 in BigTIFF.
func (d *decoder) readEntryCount() (int64, error) {
	if d.version == Classic {
		v, err := d.read2()
		return int64(v), err
	}
	v, err := d.read8()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return 0, newInvalidFormatErrorf("entry count %d overflows", v)
	}
	return int64(v), nil
}

// readEntry reads the entry at the cursor and leaves the cursor at the start of the next entry.
func (d *decoder) readEntry() (DirectoryEntry, error) {
	var e DirectoryEntry
	loc, err := d.pos()
	if err != nil {
		return e, err
	}
	tag, err := d.read2()
	if err != nil {
		return e, err
	}
	typ, err := d.read2()
	if err != nil {
		return e, err
	}
	count, err := d.readCountField()
	if err != nil {
		return e, err
	}
	e = DirectoryEntry{
		Location: loc,
		Tag:      Tag(tag),
		Type:     TagType(typ),
		Count:    count,
	}

	// Decide before touching the value field. A single big endian short
	// sits in the first two bytes of the field, not the last two.
	size := int64(e.Type.Size())
	if count <= int64(d.version.offsetSize())/size {
		e.Value, err = d.readValues(e.Type, count)
		if err != nil {
			return e, err
		}
		// The last entry may end the file when the next IFD offset is missing.
		return e, d.seekUpTo(loc + int64(d.version.entrySize()))
	}

	e.Indirect = true
	e.Offset, err = d.readOffsetField()
	return e, err
}

// entryValues returns the values of e, reading them from the file if needed.
// The cursor is left where it was.
func (d *decoder) entryValues(e DirectoryEntry) (TagValue, error) {
	if !e.Indirect {
		return e.Value, nil
	}
	if e.Count > int64(d.opts.LimitTagSize)/int64(e.Type.Size()) {
		return nil, newInvalidFormatErrorf("%s: %d values of type %s exceed the tag size limit of %d bytes", e.Tag, e.Count, e.Type, d.opts.LimitTagSize)
	}
	return atOffset(d.streamReader, e.Offset, func() (TagValue, error) {
		return d.readValues(e.Type, e.Count)
	})
}

// entryInts returns the values of an entry stored as unsigned integers of any width.
func (d *decoder) entryInts(e DirectoryEntry) ([]int64, error) {
	if !e.Type.isUnsignedInteger() {
		return nil, fmt.Errorf("%w: %s stored as %s, want integer", ErrTagTypeConversion, e.Tag, e.Type)
	}
	v, err := d.entryValues(e)
	if err != nil {
		return nil, err
	}
	return v.(IntegerList), nil
}

// entryUint returns the single integer value of e, checked against max.
// With allowRepeat, count may be above 1 as long as all values are equal.
func (d *decoder) entryUint(e DirectoryEntry, max int64, allowRepeat bool) (int64, error) {
	if e.Count != 1 && !(allowRepeat && e.Count > 1) {
		return 0, fmt.Errorf("%w: %s has count %d, want 1", ErrTagTypeConversion, e.Tag, e.Count)
	}
	vals, err := d.entryInts(e)
	if err != nil {
		return 0, err
	}
	v := vals[0]
	for _, vv := range vals[1:] {
		if vv != v {
			return 0, fmt.Errorf("%w: %s has differing values %v", ErrTagTypeConversion, e.Tag, vals)
		}
	}
	if v > max {
		return 0, fmt.Errorf("%w: %s value %d out of range", ErrTagTypeConversion, e.Tag, v)
	}
	return v, nil
}

func (d *decoder) entryUint16(e DirectoryEntry) (uint16, error) {
	v, err := d.entryUint(e, math.MaxUint16, false)
	return uint16(v), err
}

func (d *decoder) entryUint32(e DirectoryEntry) (uint32, error) {
	v, err := d.entryUint(e, math.MaxUint32, false)
	return uint32(v), err
}

// entryDoubles returns the values of an entry stored as float or double.
func (d *decoder) entryDoubles(e DirectoryEntry) ([]float64, error) {
	if e.Type != TypeDouble && e.Type != TypeFloat {
		return nil, fmt.Errorf("%w: %s stored as %s, want double", ErrTagTypeConversion, e.Tag, e.Type)
	}
	v, err := d.entryValues(e)
	if err != nil {
		return nil, err
	}
	return v.(DoubleList), nil
}

func (d *decoder) entryASCII(e DirectoryEntry) (string, error) {
	if e.Type != TypeASCII {
		return "", fmt.Errorf("%w: %s stored as %s, want ascii", ErrTagTypeConversion, e.Tag, e.Type)
	}
	v, err := d.entryValues(e)
	if err != nil {
		return "", err
	}
	return string(v.(ASCII)), nil
}

func (d *decoder) entryRational(e DirectoryEntry) (Rational, error) {
	if e.Count != 1 || (e.Type != TypeRational && e.Type != TypeSRational) {
		return Rational{}, fmt.Errorf("%w: %s stored as %s[%d], want one rational", ErrTagTypeConversion, e.Tag, e.Type, e.Count)
	}
	v, err := d.entryValues(e)
	if err != nil {
		return Rational{}, err
	}
	return v.(RationalList)[0], nil
}

// entryRawASCII returns the bytes of an ascii entry as stored in the file, NULs included.
func (d *decoder) entryRawASCII(e DirectoryEntry) ([]byte, error) {
	if e.Type != TypeASCII {
		return nil, fmt.Errorf("%w: %s stored as %s, want ascii", ErrTagTypeConversion, e.Tag, e.Type)
	}
	if e.Count > int64(d.opts.LimitTagSize) {
		return nil, newInvalidFormatErrorf("%s: %d bytes exceed the tag size limit of %d bytes", e.Tag, e.Count, d.opts.LimitTagSize)
	}
	off := e.Offset
	if !e.Indirect {
		// Tag, type and count precede the value field.
		off = e.Location + 4 + int64(d.version.offsetSize())
	}
	return atOffset(d.streamReader, off, func() ([]byte, error) {
		return d.readBytes(e.Count)
	})
}

// entryBytes returns the raw bytes of a byte or undefined entry.
func (d *decoder) entryBytes(e DirectoryEntry) ([]byte, error) {
	v, err := d.entryValues(e)
	if err != nil {
		return nil, err
	}
	switch vv := v.(type) {
	case Undefined:
		return vv, nil
	case IntegerList:
		if e.Type == TypeByte {
			b := make([]byte, len(vv))
			for i, x := range vv {
				b[i] = byte(x)
			}
			return b, nil
		}
	case ASCII:
		return []byte(vv), nil
	}
	return nil, fmt.Errorf("%w: %s stored as %s, want bytes", ErrTagTypeConversion, e.Tag, e.Type)
}
