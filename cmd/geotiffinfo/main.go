// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Command geotiffinfo prints the first IFD and the georeferencing of a TIFF, BigTIFF or GeoTIFF file.
//
//	geotiffinfo [-debug] [-mmap] [-json] file|url
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/bep/geotiff"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("geotiffinfo: ")

	var (
		debug   = flag.Bool("debug", false, "print the decoded directory entries")
		useMmap = flag.Bool("mmap", false, "memory map local files")
		asJSON  = flag.Bool("json", false, "print the IFD as JSON")
		timeout = flag.Duration("timeout", time.Minute, "decode timeout")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: geotiffinfo [-debug] [-mmap] [-json] file|url")
		os.Exit(2)
	}

	if err := run(os.Stdout, flag.Arg(0), *debug, *useMmap, *asJSON, *timeout); err != nil {
		log.Fatal(err)
	}
}

func run(w io.Writer, pathOrURL string, debug, useMmap, asJSON bool, timeout time.Duration) error {
	r, err := geotiff.OpenSource(pathOrURL, useMmap)
	if err != nil {
		return err
	}

	opts := geotiff.Options{
		R:       r,
		Timeout: timeout,
		Warnf:   log.Printf,
	}
	if debug {
		opts.Debugf = log.Printf
	}

	img, err := geotiff.Decode(opts)
	if err != nil {
		r.Close()
		return err
	}
	defer img.Close()

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(img.IFD)
	}

	ifd := img.IFD
	fmt.Fprintf(w, "Format:      %s TIFF, %s\n", img.FormatVersion, img.ByteOrder)
	fmt.Fprintf(w, "Size:        %dx%d, %d x %d bits, %s\n", ifd.Width, ifd.Height, ifd.SamplesPerPixel, ifd.BitsPerSample, ifd.SampleFormat)
	fmt.Fprintf(w, "Compression: %s, predictor %s\n", ifd.Compression, ifd.Predictor)
	if ifd.IsTiled() {
		fmt.Fprintf(w, "Tiles:       %dx%d, %d across, %d down\n", ifd.TileWidth, ifd.TileLength, ifd.TilesAcross(), ifd.TilesDown())
	} else {
		fmt.Fprintf(w, "Strips:      %d of %d rows\n", ifd.StripCount(), ifd.RowsPerStrip)
	}
	if img.HasMoreIFDs() {
		fmt.Fprintf(w, "More IFDs:   next at %d (not read)\n", img.NextIFDOffset)
	}

	if len(ifd.GeoKeyEntries) > 0 {
		fmt.Fprintln(w, "GeoKeys:")
		for _, gk := range ifd.GeoKeyEntries {
			fmt.Fprintf(w, "  %-24s %-16s count %d value %d\n", gk.Key, gk.TagLocation, gk.Count, gk.ValueOrOffset)
		}
		if ifd.ModelType != nil {
			fmt.Fprintf(w, "Model type:  %s\n", *ifd.ModelType)
		}
		if ifd.RasterType != nil {
			fmt.Fprintf(w, "Raster type: %s\n", *ifd.RasterType)
		}
		fmt.Fprintf(w, "Datum:       %s, ellipsoid %s, angular units %s\n", ifd.Datum, ifd.Ellipsoid, ifd.AngularUnits)
		if ifd.GTCitation != "" {
			fmt.Fprintf(w, "Citation:    %s\n", ifd.GTCitation)
		}
	}
	if b, ok := ifd.Bounds(); ok {
		fmt.Fprintf(w, "Bounds:      (%g, %g) - (%g, %g)\n", b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	}
	if ifd.GDALNoData != nil {
		fmt.Fprintf(w, "NoData:      %d\n", *ifd.GDALNoData)
	}
	for _, it := range ifd.GDALMetadata {
		fmt.Fprintf(w, "Metadata:    %s[%d] = %s\n", it.Name, it.Sample, it.Value)
	}
	if img.Warnings != nil {
		fmt.Fprintf(w, "Warnings:    %s\n", img.Warnings)
	}

	return nil
}
