// Package namestub derives filesystem- and label-safe stubs from raw
// owner-name strings scraped off a portal. The rules here were
// present in the Python original but dropped from the distilled spec
// (SPEC_FULL.md "Supplemented Features" item 1) — they're restored
// because the Document Downloader's filename composition (spec.md
// §4.C.5) needs a deterministic stub derived from an owner name. The
// CAD label text is composed by labelexport/geomx.ComposeLabel, which
// does its own upper-casing and does not call this package.
package namestub

import (
	"regexp"
	"strings"
)

// entityKeywords are suffix tokens stripped from business/government
// owner names so "ACME HOLDINGS LLC" stubs to "ACME_HOLDINGS", not
// "ACME_HOLDINGS_LLC". Only suffixes are dropped — a leading "CITY OF"
// is kept, per spec.md §8 scenario 4.
var entityKeywords = map[string]bool{
	"LLC": true, "INC": true, "CORP": true, "CORPORATION": true,
	"CO": true, "COMPANY": true, "LTD": true, "LP": true, "LLP": true,
	"TRUST": true, "TR": true,
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// FilenameStub derives a short, uppercase, underscore-joined stub
// from a raw owner name for use in document filenames. Empty input
// yields "UNKNOWN".
//
// Examples (spec.md §8 scenario 4):
//
//	"SMITH, JANE A"        -> "SMITH"
//	"ACME HOLDINGS LLC"    -> "ACME_HOLDINGS"
//	"CITY OF SPRINGVILLE"  -> "CITY_OF_SPRINGVILLE"
//	""                     -> "UNKNOWN"
func FilenameStub(ownerName string) string {
	name := strings.ToUpper(strings.TrimSpace(ownerName))
	if name == "" {
		return "UNKNOWN"
	}

	// A comma signals "LAST, FIRST [MIDDLE]" — keep only the surname.
	if idx := strings.Index(name, ","); idx >= 0 {
		surname := strings.TrimSpace(name[:idx])
		stub := nonAlnum.ReplaceAllString(surname, "_")
		stub = strings.Trim(stub, "_")
		if stub == "" {
			return "UNKNOWN"
		}
		return stub
	}

	fields := strings.Fields(name)
	for len(fields) > 1 && entityKeywords[strings.Trim(nonAlnum.ReplaceAllString(fields[len(fields)-1], ""), "_")] {
		fields = fields[:len(fields)-1]
	}

	stub := nonAlnum.ReplaceAllString(strings.Join(fields, "_"), "_")
	stub = strings.Trim(stub, "_")
	if stub == "" {
		return "UNKNOWN"
	}
	return stub
}

// UpperCaseForLabel normalizes an owner name for the CAD label's
// second line (spec.md §4.F.8): trimmed and upper-cased, with no
// further transformation (entity suffixes are kept here — only the
// filename stub drops them).
func UpperCaseForLabel(ownerName string) string {
	return strings.ToUpper(strings.TrimSpace(ownerName))
}
