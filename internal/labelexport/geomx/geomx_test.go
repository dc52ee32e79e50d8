package geomx

import (
	"testing"

	"github.com/twpayne/go-geom"
)

func TestCanonicalKey(t *testing.T) {
	cases := map[string]string{
		"1400816928-08-22-442-023.000-025": "28-08-22-442-023.000-025",
		"28-08-22-442-023.000-025":         "28-08-22-442-023.000-025",
		"NOTAPARCEL":                       "NOTAPARCEL",
	}
	for in, want := range cases {
		if got := CanonicalKey(in); got != want {
			t.Errorf("CanonicalKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalKeyIsPure(t *testing.T) {
	in := "1400816928-08-22-442-023.000-025"
	if CanonicalKey(in) != CanonicalKey(in) {
		t.Error("CanonicalKey is not deterministic")
	}
}

func TestComposeLabel(t *testing.T) {
	cases := []struct {
		key, owner, inst, want string
	}{
		{"28-08-22-442-023.000-025", "doe, john", "2018/3706",
			"PARCEL# 28-08-22-442-023.000-025\nDOE, JOHN\nBK. 2018, PG. 3706"},
		{"28-08-22-442-023.000-025", "doe, john", "1234567",
			"PARCEL# 28-08-22-442-023.000-025\nDOE, JOHN\nINST# 1234567"},
		{"28-08-22-442-023.000-025", "doe, john", "nan",
			"PARCEL# 28-08-22-442-023.000-025\nDOE, JOHN"},
		{"28-08-22-442-023.000-025", "", "",
			"PARCEL# 28-08-22-442-023.000-025"},
	}
	for _, c := range cases {
		if got := ComposeLabel(c.key, c.owner, c.inst); got != c.want {
			t.Errorf("ComposeLabel(%q,%q,%q) = %q, want %q", c.key, c.owner, c.inst, got, c.want)
		}
	}
}

func TestRepresentativePointLiesInsideConcavePolygon(t *testing.T) {
	// A "C" / horseshoe-shaped concave ring whose centroid falls
	// outside the shape, in the notch.
	ring := []geom.Coord{
		{0, 0}, {10, 0}, {10, 10}, {6, 10}, {6, 4}, {4, 4}, {4, 10}, {0, 10}, {0, 0},
	}
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring})
	pt := RepresentativePoint(poly)

	if pointInRing(pt, ring) == false {
		t.Errorf("representative point %v is not inside the polygon", pt)
	}
}

// pointInRing is a simple even-odd ray cast, used only to verify the
// representative point in the test above.
func pointInRing(pt geom.Coord, ring []geom.Coord) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].X(), ring[i].Y()
		xj, yj := ring[j].X(), ring[j].Y()
		if ((yi > pt.Y()) != (yj > pt.Y())) &&
			(pt.X() < (xj-xi)*(pt.Y()-yi)/(yj-yi)+xi) {
			inside = !inside
		}
	}
	return inside
}
