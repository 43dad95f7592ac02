// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import "fmt"

// TagType is the on-disk scalar kind of a directory entry value.
type TagType uint16

const (
	TypeByte      TagType = 1
	TypeASCII     TagType = 2
	TypeShort     TagType = 3
	TypeLong      TagType = 4
	TypeRational  TagType = 5
	TypeSByte     TagType = 6
	TypeUndefined TagType = 7
	TypeSShort    TagType = 8
	TypeSLong     TagType = 9
	TypeSRational TagType = 10
	TypeFloat     TagType = 11
	TypeDouble    TagType = 12
	TypeIFD       TagType = 13

	// BigTIFF only.
	TypeLong8  TagType = 16
	TypeSLong8 TagType = 17
	TypeIFD8   TagType = 18
)

type tagTypeInfo struct {
	size int
	name string
}

// Size in bytes of each type as stored in the file.
var tagTypes = map[TagType]tagTypeInfo{
	TypeByte:      {1, "byte"},
	TypeASCII:     {1, "ascii"},
	TypeShort:     {2, "short"},
	TypeLong:      {4, "long"},
	TypeRational:  {8, "rational"},
	TypeSByte:     {1, "sbyte"},
	TypeUndefined: {1, "undefined"},
	TypeSShort:    {2, "sshort"},
	TypeSLong:     {4, "slong"},
	TypeSRational: {8, "srational"},
	TypeFloat:     {4, "float"},
	TypeDouble:    {8, "double"},
	TypeIFD:       {4, "ifd"},
	TypeLong8:     {8, "long8"},
	TypeSLong8:    {8, "slong8"},
	TypeIFD8:      {8, "ifd8"},
}

// Known reports whether t is part of the TIFF/BigTIFF type catalog.
func (t TagType) Known() bool {
	_, ok := tagTypes[t]
	return ok
}

// Size returns the width in bytes of one value of type t in the file.
// Unknown types have a width of 1.
func (t TagType) Size() int {
	if info, ok := tagTypes[t]; ok {
		return info.size
	}
	return 1
}

func (t TagType) String() string {
	if info, ok := tagTypes[t]; ok {
		return info.name
	}
	return fmt.Sprintf("unknown(%d)", uint16(t))
}

func (t TagType) isUnsignedInteger() bool {
	switch t {
	case TypeByte, TypeShort, TypeLong, TypeLong8, TypeIFD, TypeIFD8:
		return true
	}
	return false
}

func (t TagType) isSignedInteger() bool {
	switch t {
	case TypeSByte, TypeSShort, TypeSLong, TypeSLong8:
		return true
	}
	return false
}
