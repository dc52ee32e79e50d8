// Package geomx holds the pure geometric and string-normalization
// helpers the Label Export Pipeline needs: canonical key derivation,
// representative-point computation, and label text composition.
package geomx

import "regexp"

var canonicalKeyPattern = regexp.MustCompile(`\d{2}-\d{2}-\d{2}-`)

// CanonicalKey derives the join key from a raw parcel identifier
// string (spec.md §4.F step 3/4, glossary "Canonical key"): the
// substring starting at the first match of \d{2}-\d{2}-\d{2}-, or the
// input unchanged if no match is found. It is a pure function of its
// input (spec.md §8 "join symmetry").
//
// Examples (spec.md §8 scenario 1):
//
//	"1400816928-08-22-442-023.000-025" -> "28-08-22-442-023.000-025"
//	"28-08-22-442-023.000-025"         -> unchanged
//	"NOTAPARCEL"                       -> unchanged
func CanonicalKey(raw string) string {
	loc := canonicalKeyPattern.FindStringIndex(raw)
	if loc == nil {
		return raw
	}
	return raw[loc[0]:]
}
