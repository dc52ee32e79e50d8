package labelexport

import (
	"fmt"
	"path/filepath"

	"github.com/twpayne/go-geom"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/labelexport/cad"
	"github.com/parcelwalk/parcelwalk/internal/labelexport/geomx"
	"github.com/parcelwalk/parcelwalk/internal/labelexport/reproject"
)

// Pipeline runs the full Label Export Pipeline (spec.md §4.F) over a
// job-scoped working directory.
type Pipeline struct {
	sourceEPSG int
}

// NewPipeline builds a Pipeline that reads shapefiles in sourceEPSG
// (the shapefile's declared projection) and reprojects to whatever
// target CRS each Run call names.
func NewPipeline(sourceEPSG int) *Pipeline {
	return &Pipeline{sourceEPSG: sourceEPSG}
}

// Result names the output paths a successful Run produced.
type Result struct {
	DXFPath       string
	LabelCount    int
	BoundaryCount int
}

// Run joins scrapedXLSXPath against the shapefile bundle at
// shapefileZipPath, reprojects to targetEPSG, and writes a DXF to
// workDir/labels.dxf.
func (p *Pipeline) Run(scrapedXLSXPath, shapefileZipPath, workDir string, targetEPSG int) (*Result, error) {
	shpDir := filepath.Join(workDir, "shapefile")
	shpPath, err := ExtractBundle(shapefileZipPath, shpDir)
	if err != nil {
		return nil, &jobtypes.JoinError{Stage: "extract_bundle", Err: err}
	}

	features, err := LoadShapefile(shpPath)
	if err != nil {
		return nil, &jobtypes.JoinError{Stage: "load_geometries", Err: err}
	}

	rows, err := ReadScrapedSpreadsheet(scrapedXLSXPath)
	if err != nil {
		return nil, &jobtypes.JoinError{Stage: "load_scraped_records", Err: err}
	}

	joined, err := joinByCanonicalKey(features, rows)
	if err != nil {
		return nil, err
	}

	transformer, err := reproject.New(p.sourceEPSG, targetEPSG)
	if err != nil {
		return nil, &jobtypes.JoinError{Stage: "build_transform", Err: err}
	}
	defer transformer.Close()

	doc, err := cad.New()
	if err != nil {
		return nil, &jobtypes.JoinError{Stage: "init_cad_document", Err: err}
	}

	boundaryCount := 0
	labelCount := 0
	for _, j := range joined {
		var repPoint geom.Coord
		switch {
		case j.feature.Polygon != nil:
			reprojPoly, err := transformer.Polygon(j.feature.Polygon)
			if err != nil {
				return nil, &jobtypes.JoinError{Stage: "reproject", Err: err}
			}
			if err := doc.AddBoundary(reprojPoly); err != nil {
				return nil, &jobtypes.JoinError{Stage: "emit_boundary", Err: err}
			}
			boundaryCount += reprojPoly.NumLinearRings()
			rp := geomx.RepresentativePoint(j.feature.Polygon)
			repPoint, err = transformer.Point(rp)
			if err != nil {
				return nil, &jobtypes.JoinError{Stage: "reproject_point", Err: err}
			}
		case j.feature.MultiPolygon != nil:
			for i := 0; i < j.feature.MultiPolygon.NumPolygons(); i++ {
				reprojPoly, err := transformer.Polygon(j.feature.MultiPolygon.Polygon(i))
				if err != nil {
					return nil, &jobtypes.JoinError{Stage: "reproject", Err: err}
				}
				if err := doc.AddBoundary(reprojPoly); err != nil {
					return nil, &jobtypes.JoinError{Stage: "emit_boundary", Err: err}
				}
				boundaryCount += reprojPoly.NumLinearRings()
			}
			rp := geomx.RepresentativePointMulti(j.feature.MultiPolygon)
			var err error
			repPoint, err = transformer.Point(rp)
			if err != nil {
				return nil, &jobtypes.JoinError{Stage: "reproject_point", Err: err}
			}
		default:
			continue
		}

		label := geomx.ComposeLabel(j.feature.CanonicalKey, j.row.OwnerName, j.row.InstrumentOrBookPage)
		if err := doc.AddLabel(repPoint, label); err != nil {
			return nil, &jobtypes.JoinError{Stage: "emit_label", Err: err}
		}
		labelCount++
	}

	dxfPath := filepath.Join(workDir, "labels.dxf")
	if err := doc.WriteFile(dxfPath); err != nil {
		return nil, &jobtypes.JoinError{Stage: "write_dxf", Err: err}
	}

	return &Result{DXFPath: dxfPath, LabelCount: labelCount, BoundaryCount: boundaryCount}, nil
}

type joinedRow struct {
	feature ShapefileFeature
	row     ScrapedRow
}

// joinByCanonicalKey implements spec.md §4.F steps 4-5: join on the
// parcel-id column first; if that produces zero overlap and an
// Alternate ID column exists, retry keyed on alternate id. Zero
// overlap after both attempts is fatal. Duplicate keys on the
// geometry side are permitted, producing one labeled feature each.
func joinByCanonicalKey(features []ShapefileFeature, rows []ScrapedRow) ([]joinedRow, error) {
	byKey := make(map[string][]ShapefileFeature, len(features))
	for _, f := range features {
		byKey[f.CanonicalKey] = append(byKey[f.CanonicalKey], f)
	}

	join := func(keyOf func(ScrapedRow) string) []joinedRow {
		var out []joinedRow
		for _, r := range rows {
			key := geomx.CanonicalKey(keyOf(r))
			for _, f := range byKey[key] {
				out = append(out, joinedRow{feature: f, row: r})
			}
		}
		return out
	}

	joined := join(func(r ScrapedRow) string { return r.ParcelID })
	if len(joined) > 0 {
		return joined, nil
	}

	hasAlternate := false
	for _, r := range rows {
		if r.AlternateID != "" {
			hasAlternate = true
			break
		}
	}
	if hasAlternate {
		joined = join(func(r ScrapedRow) string { return r.AlternateID })
		if len(joined) > 0 {
			return joined, nil
		}
	}

	return nil, &jobtypes.JoinError{Stage: "join", Err: fmt.Errorf("%w: no overlap between scraped records and shapefile keys", jobtypes.ErrJoinEmpty)}
}
