// Package selectors holds the prioritized candidate-selector lists a
// Portal Strategy probes against, plus the merge rule used to fold a
// county-specific override into a base set (spec.md §9 "polymorphic
// selector probing" and SPEC_FULL.md's resolution of the "two
// overlapping portal B strategies" open question: union, not
// replacement, relying on visibility-first probing).
package selectors

// Set is a named group of prioritized selector candidates. Probing one
// of a Set's lists means iterating its candidates in order and taking the first
// visible match (internal/pagedriver.Driver.FindFirst does the
// iteration; this package only owns the ordered list).
type Set struct {
	Consent      []string
	SearchInput  []string
	SearchButton []string
	Spinner      []string
	Autocomplete []string
	OwnerName    []string
	LegalDesc    []string
	AlternateID  []string
	OwnerAddress []string
	SitusAddress []string
	TransferRows []string
	DocLinks     []string

	// TransferRowXPaths mirrors TransferRows as XPath expressions, for
	// portals whose transfer-history table layout isn't cleanly
	// addressable by CSS alone (e.g. a <td> position that only makes
	// sense relative to a sibling's text).
	TransferRowXPaths []string
}

// Merge returns a new Set whose lists are base's lists with override's
// entries appended, so override candidates are tried after the base
// ones rather than instead of them. A county that needs a selector the
// base set lacks still benefits from the base set's other candidates.
func Merge(base Set, override Override) Set {
	merged := base
	merged.SearchInput = append(append([]string{}, base.SearchInput...), override.SearchInput...)
	merged.Consent = append(append([]string{}, base.Consent...), override.Consent...)
	return merged
}

// Override is the subset of a Set a per-county config entry may
// extend. Only the fields portals most commonly vary (search input,
// consent dialog) are overridable; extraction selectors are assumed
// stable within a portal family.
type Override struct {
	SearchInput []string
	Consent     []string
}
