package geomx

import (
	"sort"

	"github.com/twpayne/go-geom"
)

// RepresentativePoint returns a point guaranteed to lie inside poly
// (spec.md §4.F step 6, glossary "Representative point"): the
// centroid of a concave ring can fall outside it, so this scans
// horizontal lines near the vertical center of the ring and returns
// the midpoint of the widest interior span found on the first line
// that intersects the polygon at all. Holes (rings after the first)
// are subtracted from each span.
func RepresentativePoint(poly *geom.Polygon) geom.Coord {
	rings := ringsOf(poly)
	if len(rings) == 0 {
		return geom.Coord{0, 0}
	}
	return representativePointOfRings(rings)
}

// RepresentativePointMulti picks the representative point of the
// largest-area sub-polygon in a multipolygon, matching the expectation
// that a label anchors to the dominant piece of a multi-part parcel.
func RepresentativePointMulti(mp *geom.MultiPolygon) geom.Coord {
	if mp.NumPolygons() == 0 {
		return geom.Coord{0, 0}
	}
	var best *geom.Polygon
	bestArea := -1.0
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		a := ringArea(outerRing(p))
		if a > bestArea {
			bestArea = a
			best = p
		}
	}
	return RepresentativePoint(best)
}

func ringsOf(poly *geom.Polygon) [][]geom.Coord {
	var rings [][]geom.Coord
	for i := 0; i < poly.NumLinearRings(); i++ {
		lr := poly.LinearRing(i)
		n := lr.NumCoords()
		ring := make([]geom.Coord, n)
		for j := 0; j < n; j++ {
			ring[j] = lr.Coord(j)
		}
		rings = append(rings, ring)
	}
	return rings
}

func outerRing(poly *geom.Polygon) []geom.Coord {
	rings := ringsOf(poly)
	if len(rings) == 0 {
		return nil
	}
	return rings[0]
}

func representativePointOfRings(rings [][]geom.Coord) geom.Coord {
	outer := rings[0]
	holes := rings[1:]

	minY, maxY := boundsY(outer)
	if minY == maxY {
		x, _ := midpointOfWidestSpan(spansAtY(outer, holes, minY))
		return geom.Coord{x, minY}
	}

	// Sample candidate scanlines from the vertical center outward so
	// the first hit is as close to the visual middle as possible.
	center := (minY + maxY) / 2
	step := (maxY - minY) / 64
	if step == 0 {
		step = 1
	}
	for offset := 0.0; offset <= (maxY-minY)/2; offset += step {
		for _, y := range []float64{center + offset, center - offset} {
			spans := spansAtY(outer, holes, y)
			if len(spans) > 0 {
				x, width := midpointOfWidestSpan(spans)
				if width > 0 {
					return geom.Coord{x, y}
				}
			}
		}
	}

	// Degenerate polygon: fall back to the first vertex, which is at
	// least a point on the boundary.
	return outer[0]
}

func boundsY(ring []geom.Coord) (min, max float64) {
	min, max = ring[0].Y(), ring[0].Y()
	for _, c := range ring {
		if c.Y() < min {
			min = c.Y()
		}
		if c.Y() > max {
			max = c.Y()
		}
	}
	return
}

type span struct{ lo, hi float64 }

// spansAtY intersects a horizontal line at height y with the outer
// ring, then subtracts any hole spans at the same height, returning
// the resulting interior intervals sorted by start x.
func spansAtY(outer []geom.Coord, holes [][]geom.Coord, y float64) []span {
	xs := edgeCrossings(outer, y)
	if len(xs) < 2 {
		return nil
	}
	sort.Float64s(xs)
	var spans []span
	for i := 0; i+1 < len(xs); i += 2 {
		spans = append(spans, span{xs[i], xs[i+1]})
	}
	for _, hole := range holes {
		hxs := edgeCrossings(hole, y)
		if len(hxs) < 2 {
			continue
		}
		sort.Float64s(hxs)
		for i := 0; i+1 < len(hxs); i += 2 {
			spans = subtract(spans, span{hxs[i], hxs[i+1]})
		}
	}
	return spans
}

func edgeCrossings(ring []geom.Coord, y float64) []float64 {
	var xs []float64
	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		ay, by := a.Y(), b.Y()
		if (ay <= y && by > y) || (by <= y && ay > y) {
			t := (y - ay) / (by - ay)
			xs = append(xs, a.X()+t*(b.X()-a.X()))
		}
	}
	return xs
}

func subtract(spans []span, hole span) []span {
	var out []span
	for _, s := range spans {
		if hole.hi <= s.lo || hole.lo >= s.hi {
			out = append(out, s)
			continue
		}
		if hole.lo > s.lo {
			out = append(out, span{s.lo, hole.lo})
		}
		if hole.hi < s.hi {
			out = append(out, span{hole.hi, s.hi})
		}
	}
	return out
}

func midpointOfWidestSpan(spans []span) (x, width float64) {
	best := span{}
	bestWidth := -1.0
	for _, s := range spans {
		w := s.hi - s.lo
		if w > bestWidth {
			bestWidth = w
			best = s
		}
	}
	if bestWidth < 0 {
		return 0, 0
	}
	return (best.lo + best.hi) / 2, bestWidth
}

func ringArea(ring []geom.Coord) float64 {
	var area float64
	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		area += a.X()*b.Y() - b.X()*a.Y()
	}
	if area < 0 {
		area = -area
	}
	return area / 2
}
