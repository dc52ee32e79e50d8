package labelexport

import (
	"errors"
	"testing"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
)

func TestJoinByCanonicalKeyFallsBackToAlternateID(t *testing.T) {
	features := []ShapefileFeature{
		{CanonicalKey: "28-08-22-442-023.000-025"},
	}
	rows := []ScrapedRow{
		{ParcelID: "UNMATCHED", AlternateID: "28-08-22-442-023.000-025"},
	}
	joined, err := joinByCanonicalKey(features, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(joined) != 1 {
		t.Fatalf("expected 1 joined row, got %d", len(joined))
	}
}

func TestJoinByCanonicalKeyEmptyIsFatal(t *testing.T) {
	features := []ShapefileFeature{{CanonicalKey: "A"}}
	rows := []ScrapedRow{{ParcelID: "B"}}
	_, err := joinByCanonicalKey(features, rows)
	if err == nil {
		t.Fatal("expected join_empty error")
	}
	var joinErr *jobtypes.JoinError
	if !errors.As(err, &joinErr) {
		t.Fatalf("expected *jobtypes.JoinError, got %T", err)
	}
}

func TestJoinByCanonicalKeyAllowsDuplicateGeometryKeys(t *testing.T) {
	features := []ShapefileFeature{
		{CanonicalKey: "A"},
		{CanonicalKey: "A"},
	}
	rows := []ScrapedRow{{ParcelID: "A"}}
	joined, err := joinByCanonicalKey(features, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(joined) != 2 {
		t.Fatalf("expected 2 joined rows (one per duplicate geometry), got %d", len(joined))
	}
}
