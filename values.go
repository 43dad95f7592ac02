// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"fmt"
	"math"
)

// TagValue is the decoded value of a directory entry.
// It is one of IntegerList, DoubleList, RationalList, ASCII or Undefined.
type TagValue interface {
	// Len returns the number of values.
	Len() int

	isTagValue()
}

// IntegerList holds the values of all integer types, signed and unsigned, of any width.
type IntegerList []int64

// DoubleList holds float and double values.
type DoubleList []float64

// RationalList holds rational and srational values.
type RationalList []Rational

// ASCII holds an ascii value without its NUL terminator.
type ASCII string

// Undefined holds the raw bytes of an undefined value or of a value with an unknown type.
type Undefined []byte

func (v IntegerList) Len() int  { return len(v) }
func (v DoubleList) Len() int   { return len(v) }
func (v RationalList) Len() int { return len(v) }
func (v ASCII) Len() int        { return len(v) }
func (v Undefined) Len() int    { return len(v) }

func (IntegerList) isTagValue()  {}
func (DoubleList) isTagValue()   {}
func (RationalList) isTagValue() {}
func (ASCII) isTagValue()        {}
func (Undefined) isTagValue()    {}

// Rational is a rational number.
// Both the unsigned and the signed TIFF rationals fit.
type Rational struct {
	Num int64
	Den int64
}

// Float64 returns the float64 representation of the rational number.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return math.Inf(1)
	}
	return float64(r.Num) / float64(r.Den)
}

// String returns the string representation of the rational number.
// If the denominator is 1, the string will be the numerator only.
func (r Rational) String() string {
	if r.Den == 1 {
		return fmt.Sprintf("%d", r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// readValues decodes count values of type typ at the current position.
func (e *streamReader) readValues(typ TagType, count int64) (TagValue, error) {
	switch typ {
	case TypeByte, TypeShort, TypeLong, TypeLong8, TypeIFD, TypeIFD8:
		raw, err := e.readUints(typ.Size(), count)
		if err != nil {
			return nil, err
		}
		vals := make(IntegerList, len(raw))
		for i, v := range raw {
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("%w: %s value %d overflows int64", ErrTagTypeConversion, typ, v)
			}
			vals[i] = int64(v)
		}
		return vals, nil
	case TypeSByte, TypeSShort, TypeSLong, TypeSLong8:
		raw, err := e.readUints(typ.Size(), count)
		if err != nil {
			return nil, err
		}
		vals := make(IntegerList, len(raw))
		for i, v := range raw {
			switch typ {
			case TypeSByte:
				vals[i] = int64(int8(v))
			case TypeSShort:
				vals[i] = int64(int16(v))
			case TypeSLong:
				vals[i] = int64(int32(v))
			default:
				vals[i] = int64(v)
			}
		}
		return vals, nil
	case TypeFloat:
		raw, err := e.readUints(4, count)
		if err != nil {
			return nil, err
		}
		vals := make(DoubleList, len(raw))
		for i, v := range raw {
			vals[i] = float64(math.Float32frombits(uint32(v)))
		}
		return vals, nil
	case TypeDouble:
		raw, err := e.readUints(8, count)
		if err != nil {
			return nil, err
		}
		vals := make(DoubleList, len(raw))
		for i, v := range raw {
			vals[i] = math.Float64frombits(v)
		}
		return vals, nil
	case TypeRational, TypeSRational:
		raw, err := e.readUints(4, count*2)
		if err != nil {
			return nil, err
		}
		vals := make(RationalList, count)
		for i := range vals {
			n, d := raw[i*2], raw[i*2+1]
			if typ == TypeSRational {
				vals[i] = Rational{Num: int64(int32(n)), Den: int64(int32(d))}
			} else {
				vals[i] = Rational{Num: int64(n), Den: int64(d)}
			}
		}
		return vals, nil
	case TypeASCII:
		s, err := e.readASCII(count)
		if err != nil {
			return nil, err
		}
		return ASCII(s), nil
	default:
		// Undefined, and types we don't know, which all have a size of 1.
		b, err := e.readBytes(count)
		if err != nil {
			return nil, err
		}
		return Undefined(b), nil
	}
}
