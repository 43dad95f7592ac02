// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"bytes"
	"encoding/binary"
	"math"
)

// testEntry is a directory entry with its value already encoded.
type testEntry struct {
	tag   Tag
	typ   TagType
	count int64
	data  []byte
}

// testTIFF builds TIFF files laid out as
// header | pixels | IFD | values not fitting in their entry.
type testTIFF struct {
	order   binary.ByteOrder
	version FormatVersion
	entries []testEntry
	next    int64
	pixels  []byte

	// If set, replaces the header fields following the version.
	bigOffsetSize *uint16
	bigPadding    *uint16
}

func (tt testTIFF) headerSize() int64 {
	if tt.version == Big {
		return 16
	}
	return 8
}

// pixelOffset is where the pixels are written.
func (tt testTIFF) pixelOffset() int64 {
	return tt.headerSize()
}

func (tt testTIFF) ifdOffset() int64 {
	return tt.headerSize() + int64(len(tt.pixels))
}

func (tt testTIFF) offSize() int {
	return tt.version.offsetSize()
}

func (tt testTIFF) putOff(b *bytes.Buffer, v int64) {
	if tt.version == Big {
		b.Write(enc64(tt.order, uint64(v)))
	} else {
		b.Write(enc32(tt.order, uint32(v)))
	}
}

func (tt testTIFF) bytes() []byte {
	var b bytes.Buffer
	if tt.order == binary.BigEndian {
		b.WriteString("MM")
	} else {
		b.WriteString("II")
	}
	b.Write(enc16(tt.order, uint16(tt.version)))
	if tt.version == Big {
		offsetSize, padding := uint16(8), uint16(0)
		if tt.bigOffsetSize != nil {
			offsetSize = *tt.bigOffsetSize
		}
		if tt.bigPadding != nil {
			padding = *tt.bigPadding
		}
		b.Write(enc16(tt.order, offsetSize, padding))
	}
	tt.putOff(&b, tt.ifdOffset())
	b.Write(tt.pixels)

	countSize := 2
	if tt.version == Big {
		countSize = 8
	}
	ifdSize := int64(countSize + len(tt.entries)*tt.version.entrySize() + tt.offSize())
	dataOff := tt.ifdOffset() + ifdSize

	if tt.version == Big {
		b.Write(enc64(tt.order, uint64(len(tt.entries))))
	} else {
		b.Write(enc16(tt.order, uint16(len(tt.entries))))
	}

	var data bytes.Buffer
	for _, e := range tt.entries {
		b.Write(enc16(tt.order, uint16(e.tag), uint16(e.typ)))
		tt.putOff(&b, e.count)
		if len(e.data) <= tt.offSize() {
			field := make([]byte, tt.offSize())
			copy(field, e.data)
			b.Write(field)
			continue
		}
		tt.putOff(&b, dataOff+int64(data.Len()))
		data.Write(e.data)
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
	}
	tt.putOff(&b, tt.next)
	b.Write(data.Bytes())

	return b.Bytes()
}

func (tt testTIFF) reader() *bytes.Reader {
	return bytes.NewReader(tt.bytes())
}

func enc16(o binary.ByteOrder, vals ...uint16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		o.PutUint16(b[i*2:], v)
	}
	return b
}

func enc32(o binary.ByteOrder, vals ...uint32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		o.PutUint32(b[i*4:], v)
	}
	return b
}

func enc64(o binary.ByteOrder, vals ...uint64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		o.PutUint64(b[i*8:], v)
	}
	return b
}

func encDoubles(o binary.ByteOrder, vals ...float64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		o.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func shortEntry(o binary.ByteOrder, tag Tag, vals ...uint16) testEntry {
	return testEntry{tag: tag, typ: TypeShort, count: int64(len(vals)), data: enc16(o, vals...)}
}

func longEntry(o binary.ByteOrder, tag Tag, vals ...uint32) testEntry {
	return testEntry{tag: tag, typ: TypeLong, count: int64(len(vals)), data: enc32(o, vals...)}
}

func long8Entry(o binary.ByteOrder, tag Tag, vals ...uint64) testEntry {
	return testEntry{tag: tag, typ: TypeLong8, count: int64(len(vals)), data: enc64(o, vals...)}
}

func doubleEntry(o binary.ByteOrder, tag Tag, vals ...float64) testEntry {
	return testEntry{tag: tag, typ: TypeDouble, count: int64(len(vals)), data: encDoubles(o, vals...)}
}

func asciiEntry(tag Tag, s string) testEntry {
	return testEntry{tag: tag, typ: TypeASCII, count: int64(len(s) + 1), data: append([]byte(s), 0)}
}

// newGray16 returns a single strip, 16 bits per sample image of w x h pixels
// where the pixel (x, y) has the value y*w+x+1.
func newGray16(o binary.ByteOrder, version FormatVersion, w, h int) testTIFF {
	tt := testTIFF{order: o, version: version}
	vals := make([]uint16, w*h)
	for i := range vals {
		vals[i] = uint16(i + 1)
	}
	tt.pixels = enc16(o, vals...)
	offsets := longEntry(o, TagStripOffsets, uint32(tt.pixelOffset()))
	counts := longEntry(o, TagStripByteCounts, uint32(len(tt.pixels)))
	if version == Big {
		offsets = long8Entry(o, TagStripOffsets, uint64(tt.pixelOffset()))
		counts = long8Entry(o, TagStripByteCounts, uint64(len(tt.pixels)))
	}
	tt.entries = []testEntry{
		longEntry(o, TagImageWidth, uint32(w)),
		longEntry(o, TagImageLength, uint32(h)),
		shortEntry(o, TagBitsPerSample, 16),
		shortEntry(o, TagCompression, 1),
		shortEntry(o, TagPhotometricInterpretation, 1),
		offsets,
		shortEntry(o, TagSamplesPerPixel, 1),
		longEntry(o, TagRowsPerStrip, uint32(h)),
		counts,
	}
	return tt
}

func (tt testTIFF) withEntries(entries ...testEntry) testTIFF {
	tt.entries = append(append([]testEntry(nil), tt.entries...), entries...)
	return tt
}

var testByteOrders = []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}

var testVersions = []FormatVersion{Classic, Big}
