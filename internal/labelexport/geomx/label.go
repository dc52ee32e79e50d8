package geomx

import "strings"

// ComposeLabel builds the three-line label text from spec.md §4.F
// step 8: PARCEL# line, upper-cased owner name (omitted if missing),
// then either an INST# line or a BK./PG. line derived from an
// instrument value containing "/", omitted if missing or the literal
// "nan". It is a pure function of its arguments (spec.md §8 "label
// determinism").
//
// Examples (spec.md §8 scenario 2):
//
//	key="28-08-22-442-023.000-025", owner="doe, john", instrument="2018/3706"
//	  -> "PARCEL# 28-08-22-442-023.000-025\nDOE, JOHN\nBK. 2018, PG. 3706"
//	instrument="1234567" -> third line "INST# 1234567"
//	instrument="nan"     -> two lines only
func ComposeLabel(canonicalKey, ownerName, instrumentOrBookPage string) string {
	lines := []string{"PARCEL# " + canonicalKey}

	if owner := strings.TrimSpace(ownerName); owner != "" {
		lines = append(lines, strings.ToUpper(owner))
	}

	inst := strings.TrimSpace(instrumentOrBookPage)
	switch {
	case inst == "" || strings.EqualFold(inst, "nan"):
		// omit
	case strings.Contains(inst, "/"):
		parts := strings.SplitN(inst, "/", 2)
		lines = append(lines, "BK. "+strings.TrimSpace(parts[0])+", PG. "+strings.TrimSpace(parts[1]))
	default:
		lines = append(lines, "INST# "+inst)
	}

	return strings.Join(lines, "\n")
}
