// Package cad emits the DXF drawing described in spec.md §4.F step 9
// and §11: two named layers, PARCEL_BOUNDARY holding a closed
// polyline per polygon ring and PARCEL_LABEL holding a middle-center
// anchored multi-line text entity per joined parcel.
package cad

import (
	"fmt"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/drawing"
	"github.com/yofu/dxf/table"

	"github.com/twpayne/go-geom"
)

const (
	LayerBoundary = "PARCEL_BOUNDARY"
	LayerLabel    = "PARCEL_LABEL"

	labelTextHeight = 2.5
)

// Document accumulates boundary and label entities for a batch of
// joined parcels before being written out as a single DXF file.
type Document struct {
	dwg *drawing.Drawing
}

// New creates an empty document with the two named layers declared.
func New() (*Document, error) {
	dwg := dxf.NewDrawing()
	if _, err := dwg.AddLayer(LayerBoundary, dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
		return nil, fmt.Errorf("add layer %s: %w", LayerBoundary, err)
	}
	if _, err := dwg.AddLayer(LayerLabel, dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
		return nil, fmt.Errorf("add layer %s: %w", LayerLabel, err)
	}
	return &Document{dwg: dwg}, nil
}

// AddBoundary adds one closed polyline per ring of poly (exterior
// followed by any holes) on the boundary layer, iterating sub-polygons
// of a multipolygon is the caller's responsibility (spec.md §4.F step
// 9: "iterate sub-polygons in a multipolygon").
func (d *Document) AddBoundary(poly *geom.Polygon) error {
	d.dwg.ChangeLayer(LayerBoundary)
	for i := 0; i < poly.NumLinearRings(); i++ {
		lr := poly.LinearRing(i)
		n := lr.NumCoords()
		pts := make([][]float64, 0, n)
		for j := 0; j < n; j++ {
			c := lr.Coord(j)
			pts = append(pts, []float64{c.X(), c.Y(), 0})
		}
		lw := d.dwg.LwPolyline(true, pts...)
		if lw == nil {
			return fmt.Errorf("add boundary ring %d: polyline creation failed", i)
		}
	}
	return nil
}

// AddMultiBoundary adds a boundary polyline set for every sub-polygon
// of a multipolygon.
func (d *Document) AddMultiBoundary(mp *geom.MultiPolygon) error {
	for i := 0; i < mp.NumPolygons(); i++ {
		if err := d.AddBoundary(mp.Polygon(i)); err != nil {
			return fmt.Errorf("sub-polygon %d: %w", i, err)
		}
	}
	return nil
}

// AddLabel adds a multi-line text entity anchored middle-center at pt
// on the label layer, at the fixed character height spec.md §11 names.
func (d *Document) AddLabel(pt geom.Coord, text string) error {
	d.dwg.ChangeLayer(LayerLabel)
	mtext := d.dwg.MText(pt.X(), pt.Y(), 0, labelTextHeight, text)
	if mtext == nil {
		return fmt.Errorf("add label at (%f,%f): mtext creation failed", pt.X(), pt.Y())
	}
	mtext.SetAttachmentPoint(table.MTextMiddleCenter)
	return nil
}

// WriteFile writes the accumulated document to path.
func (d *Document) WriteFile(path string) error {
	if err := d.dwg.SaveAs(path); err != nil {
		return fmt.Errorf("write dxf %s: %w", path, err)
	}
	return nil
}
