// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotiff

import (
	"github.com/paulmach/orb"
)

// IsGeoreferenced reports whether raster positions can be mapped to model space.
func (f *IFD) IsGeoreferenced() bool {
	return len(f.ModelTransformation) == 16 || len(f.ModelTiePoints) > 0
}

// rasterShift is the offset of the raster origin for PixelIsPoint rasters,
// where the tie point refers to the center of a pixel.
func (f *IFD) rasterShift() float64 {
	if f.RasterType != nil && *f.RasterType == RasterPixelIsPoint {
		return 0.5
	}
	return 0
}

// PixelToModel maps the raster position (x, y) to model space.
// (0, 0) is the upper left corner of the upper left pixel.
// It uses ModelTransformation if set, else the first tie point and the pixel scale.
func (f *IFD) PixelToModel(x, y float64) (orb.Point, bool) {
	shift := f.rasterShift()
	x, y = x-shift, y-shift

	if m := f.ModelTransformation; len(m) == 16 {
		return orb.Point{
			m[0]*x + m[1]*y + m[3],
			m[4]*x + m[5]*y + m[7],
		}, true
	}
	if len(f.ModelTiePoints) == 0 {
		return orb.Point{}, false
	}
	tp := f.ModelTiePoints[0]
	return orb.Point{
		tp.X + (x-tp.I)*f.ModelPixelScale[0],
		tp.Y - (y-tp.J)*f.ModelPixelScale[1],
	}, true
}

// ModelToPixel is the inverse of PixelToModel.
func (f *IFD) ModelToPixel(p orb.Point) (x, y float64, ok bool) {
	shift := f.rasterShift()

	if m := f.ModelTransformation; len(m) == 16 {
		det := m[0]*m[5] - m[1]*m[4]
		if det == 0 {
			return 0, 0, false
		}
		dx, dy := p[0]-m[3], p[1]-m[7]
		x = (m[5]*dx - m[1]*dy) / det
		y = (m[0]*dy - m[4]*dx) / det
		return x + shift, y + shift, true
	}
	if len(f.ModelTiePoints) == 0 || f.ModelPixelScale[0] == 0 || f.ModelPixelScale[1] == 0 {
		return 0, 0, false
	}
	tp := f.ModelTiePoints[0]
	x = tp.I + (p[0]-tp.X)/f.ModelPixelScale[0]
	y = tp.J - (p[1]-tp.Y)/f.ModelPixelScale[1]
	return x + shift, y + shift, true
}

// Bounds returns the model space extent of the image.
func (f *IFD) Bounds() (orb.Bound, bool) {
	w, h := float64(f.Width), float64(f.Height)
	var corners orb.MultiPoint
	for _, c := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		p, ok := f.PixelToModel(c[0], c[1])
		if !ok {
			return orb.Bound{}, false
		}
		corners = append(corners, p)
	}
	return corners.Bound(), true
}
