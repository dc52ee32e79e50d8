package portal

import (
	"regexp"
	"strings"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
)

var (
	zipRe   = regexp.MustCompile(`\d{5}(-\d{4})?`)
	stateRe = regexp.MustCompile(`\b([A-Z]{2})\b`)
)

// ParseAddress is the single address parser shared by every Portal
// Strategy (spec.md §4.C): it extracts a ZIP, a trailing two-letter
// state token, and splits the remainder on commas into street/city.
// Missing fields are left empty rather than guessed. It is a pure
// function of its input (spec.md §8 "address parser determinism").
//
// Examples (spec.md §8 scenario 3):
//
//	"123 MAIN ST\nBLOOMFIELD,IN 47424-0000" -> {street:"123 MAIN ST", city:"BLOOMFIELD", state:"IN", zip:"47424-0000"}
//	"SPRINGVILLE, IN 47462"                 -> {street:"", city:"SPRINGVILLE", state:"IN", zip:"47462"}
func ParseAddress(raw string) jobtypes.Address {
	text := strings.TrimSpace(raw)
	if text == "" {
		return jobtypes.Address{}
	}

	var addr jobtypes.Address

	if loc := zipRe.FindStringIndex(text); loc != nil {
		addr.Zip = text[loc[0]:loc[1]]
		text = strings.TrimSpace(text[:loc[0]])
	}

	if m := stateRe.FindAllStringIndex(text, -1); len(m) > 0 {
		last := m[len(m)-1]
		addr.State = text[last[0]:last[1]]
		text = strings.TrimSpace(strings.TrimRight(text[:last[0]], ", \n\t"))
	}

	text = strings.ReplaceAll(text, "\n", ",")
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	switch len(nonEmpty) {
	case 0:
		// nothing left
	case 1:
		addr.City = nonEmpty[0]
	default:
		addr.City = nonEmpty[len(nonEmpty)-1]
		addr.Street = strings.Join(nonEmpty[:len(nonEmpty)-1], ", ")
	}

	return addr
}
