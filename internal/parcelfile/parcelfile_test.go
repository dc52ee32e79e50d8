package parcelfile

import (
	"strings"
	"testing"
)

func TestReadPlainText(t *testing.T) {
	in := "28-08-22-442-023.000-025\n# a comment\n\n28-08-22-442-024.000-025\n28-08-22-442-023.000-025\n"
	ids, err := Read(strings.NewReader(in), "parcels.txt", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []string{"28-08-22-442-023.000-025", "28-08-22-442-024.000-025"}
	if !equal(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}
}

func TestReadDelimitedWithParcelIDHeader(t *testing.T) {
	in := "Owner,Parcel ID,County\nJohn,28-08-22-442-023.000-025,Monroe\nJane,28-08-22-442-024.000-025,Monroe\n"
	ids, err := Read(strings.NewReader(in), "parcels.csv", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []string{"28-08-22-442-023.000-025", "28-08-22-442-024.000-025"}
	if !equal(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}
}

func TestReadEnforcesMaxCount(t *testing.T) {
	in := "a\nb\nc\n"
	if _, err := Read(strings.NewReader(in), "parcels.txt", 2); err == nil {
		t.Fatal("expected too_many_identifiers error")
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
