// Package reproject wraps twpayne/go-proj to carry geometry from a
// shapefile's source CRS into a job's requested target CRS (spec.md
// §4.F step 7).
package reproject

import (
	"fmt"

	"github.com/twpayne/go-geom"
	proj "github.com/twpayne/go-proj/v11"
)

// Transformer reprojects coordinates from a fixed source CRS to a
// fixed target CRS. It wraps a single PROJ transformation pipeline,
// built once per Label Export Pipeline run and reused across every
// joined parcel.
type Transformer struct {
	pj *proj.PJ
}

// New builds a Transformer from sourceEPSG to targetEPSG.
func New(sourceEPSG, targetEPSG int) (*Transformer, error) {
	ctx := proj.NewContext()
	pj, err := ctx.NewCRSToCRS(
		fmt.Sprintf("EPSG:%d", sourceEPSG),
		fmt.Sprintf("EPSG:%d", targetEPSG),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("build transform EPSG:%d -> EPSG:%d: %w", sourceEPSG, targetEPSG, err)
	}
	return &Transformer{pj: pj}, nil
}

// Close releases the underlying PROJ transformation object.
func (t *Transformer) Close() {
	if t.pj != nil {
		t.pj.Destroy()
	}
}

// Point reprojects a single coordinate.
func (t *Transformer) Point(c geom.Coord) (geom.Coord, error) {
	coord, err := t.pj.Forward(proj.NewCoord(c.X(), c.Y()))
	if err != nil {
		return geom.Coord{}, fmt.Errorf("reproject point: %w", err)
	}
	return geom.Coord{coord.X(), coord.Y()}, nil
}

// Ring reprojects every vertex of a closed ring, preserving order.
func (t *Transformer) Ring(ring []geom.Coord) ([]geom.Coord, error) {
	out := make([]geom.Coord, len(ring))
	for i, c := range ring {
		p, err := t.Point(c)
		if err != nil {
			return nil, fmt.Errorf("reproject ring vertex %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Polygon reprojects every ring of a polygon (exterior plus holes).
func (t *Transformer) Polygon(poly *geom.Polygon) (*geom.Polygon, error) {
	var rings [][]geom.Coord
	for i := 0; i < poly.NumLinearRings(); i++ {
		lr := poly.LinearRing(i)
		ring := make([]geom.Coord, lr.NumCoords())
		for j := range ring {
			ring[j] = lr.Coord(j)
		}
		reprojected, err := t.Ring(ring)
		if err != nil {
			return nil, err
		}
		rings = append(rings, reprojected)
	}
	return geom.NewPolygon(geom.XY).MustSetCoords(rings), nil
}
