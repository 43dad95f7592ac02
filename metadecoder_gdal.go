// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// GDALMetadataItem is one <Item> of the GDAL_METADATA tag.
type GDALMetadataItem struct {
	Name string `xml:"name,attr"`

	// Sample is the band the item applies to, -1 for the whole dataset.
	Sample int    `xml:"-"`
	Role   string `xml:"role,attr"`
	Domain string `xml:"domain,attr"`
	Value  string `xml:",chardata"`
}

type gdalMetadata struct {
	XMLName xml.Name
	Items   []gdalMetadataItem `xml:"Item"`
}

type gdalMetadataItem struct {
	GDALMetadataItem
	Sample string `xml:"sample,attr"`
}

// decodeGDALMetadata decodes the XML document stored in the GDAL_METADATA tag:
//
//	<GDALMetadata>
//	  <Item name="STATISTICS_MAXIMUM" sample="0">255</Item>
//	</GDALMetadata>
func decodeGDALMetadata(r io.Reader) ([]GDALMetadataItem, error) {
	var meta gdalMetadata
	if err := xml.NewDecoder(r).Decode(&meta); err != nil {
		return nil, newInvalidFormatErrorf("decoding GDAL metadata: %v", err)
	}
	if meta.XMLName.Local != "GDALMetadata" {
		return nil, newInvalidFormatErrorf("unexpected GDAL metadata root element %q", meta.XMLName.Local)
	}

	items := make([]GDALMetadataItem, 0, len(meta.Items))
	for _, it := range meta.Items {
		item := it.GDALMetadataItem
		item.Value = strings.TrimSpace(item.Value)
		item.Sample = -1
		if it.Sample != "" {
			i, err := strconv.Atoi(it.Sample)
			if err != nil || i < 0 {
				return nil, fmt.Errorf("%w: GDAL metadata item %q has invalid sample %q", ErrTagTypeConversion, item.Name, it.Sample)
			}
			item.Sample = i
		}
		items = append(items, item)
	}
	return items, nil
}

// GDALMetadataValue returns the value of the item with the given name and sample.
// Use sample -1 for dataset level items.
func (f *IFD) GDALMetadataValue(name string, sample int) (string, bool) {
	for _, it := range f.GDALMetadata {
		if it.Name == name && it.Sample == sample {
			return it.Value, true
		}
	}
	return "", false
}
