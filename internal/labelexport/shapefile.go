package labelexport

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/labelexport/geomx"
)

// ShapefileFeature pairs a geometry with its attribute row and the
// canonical key derived from its parcel-id-like column (spec.md §4.F
// steps 2-3).
type ShapefileFeature struct {
	CanonicalKey string
	Fields       map[string]string
	Polygon      *geom.Polygon
	MultiPolygon *geom.MultiPolygon
}

// ExtractBundle unpacks a shapefile bundle archive into destDir and
// returns the path to the .shp file, matching case-insensitively
// against "Parcels.shp" or "Parcel.shp" anywhere in the archive
// (spec.md §4.F step 1).
func ExtractBundle(archivePath, destDir string) (string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open shapefile bundle: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create extract dir: %w", err)
	}

	var shpPath string
	for _, f := range r.File {
		cleanName := filepath.Clean(f.Name)
		if strings.HasPrefix(cleanName, "..") {
			continue // guard against zip-slip
		}
		destPath := filepath.Join(destDir, cleanName)
		if f.FileInfo().IsDir() {
			os.MkdirAll(destPath, 0o755)
			continue
		}
		if err := extractOne(f, destPath); err != nil {
			return "", fmt.Errorf("extract %s: %w", f.Name, err)
		}

		base := strings.ToLower(filepath.Base(cleanName))
		if base == "parcels.shp" || base == "parcel.shp" {
			shpPath = destPath
		}
	}

	if shpPath == "" {
		return "", jobtypes.ErrShapefileMissing
	}
	return shpPath, nil
}

func extractOne(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// LoadShapefile reads every feature from shpPath, deriving the
// canonical key from the first attribute column whose name
// case-insensitively contains "parcel" or equals "idparcel" (spec.md
// §4.F step 3).
func LoadShapefile(shpPath string) ([]ShapefileFeature, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer reader.Close()

	fields := reader.Fields()
	keyCol := parcelKeyColumn(fields)

	var features []ShapefileFeature
	for reader.Next() {
		n, shape := reader.Shape()

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			attrs[strings.TrimRight(string(f.Name[:]), "\x00")] = reader.ReadAttribute(n, i)
		}

		rawKey := ""
		if keyCol >= 0 {
			fieldName := strings.TrimRight(string(fields[keyCol].Name[:]), "\x00")
			rawKey = attrs[fieldName]
		}

		feat := ShapefileFeature{
			CanonicalKey: geomx.CanonicalKey(rawKey),
			Fields:       attrs,
		}

		switch g := shape.(type) {
		case *shp.Polygon:
			feat.Polygon, feat.MultiPolygon = toGeomPolygon(g)
		default:
			continue // non-polygon shapes carry no boundary to emit
		}

		features = append(features, feat)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	return features, nil
}

func parcelKeyColumn(fields []shp.Field) int {
	for i, f := range fields {
		name := strings.ToLower(strings.TrimRight(string(f.Name[:]), "\x00"))
		if name == "idparcel" || strings.Contains(name, "parcel") {
			return i
		}
	}
	return -1
}

// toGeomPolygon converts a go-shp Polygon (which may have multiple
// parts, i.e. rings or disjoint pieces) into a single Polygon when it
// has at most one part, or otherwise a MultiPolygon with one
// sub-polygon per part. Whether a part is a hole is not examined.
func toGeomPolygon(p *shp.Polygon) (*geom.Polygon, *geom.MultiPolygon) {
	var rings [][]geom.Coord
	starts := append(append([]int32{}, p.Parts...), int32(len(p.Points)))
	for i := 0; i < len(p.Parts); i++ {
		start, end := starts[i], starts[i+1]
		ring := make([]geom.Coord, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, geom.Coord{pt.X, pt.Y})
		}
		rings = append(rings, ring)
	}

	if len(rings) <= 1 {
		return geom.NewPolygon(geom.XY).MustSetCoords(rings), nil
	}

	// Multiple parts with no reliable hole/outer distinction from the
	// shapefile alone: treat every part as its own polygon. This
	// overcounts rare true-hole shapes as a disjoint sub-polygon, an
	// acceptable approximation for label placement and boundary
	// rendering.
	var polyCoords [][][]geom.Coord
	for _, ring := range rings {
		polyCoords = append(polyCoords, [][]geom.Coord{ring})
	}
	return nil, geom.NewMultiPolygon(geom.XY).MustSetCoords(polyCoords)
}
