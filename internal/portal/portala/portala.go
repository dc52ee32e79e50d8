// Package portala implements the first of the two supported portal
// families (spec.md §4.C, "platform A"). It supplies selectors and
// field extraction; the shared state machine lives in
// internal/portal.
package portala

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod/lib/input"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/pagedriver"
	"github.com/parcelwalk/parcelwalk/internal/portal"
	"github.com/parcelwalk/parcelwalk/internal/portal/selectors"
)

// Strategy drives platform A portals: a single search box, a results
// detail panel rendered inline, and a document table with a year
// column next to each PDF link.
type Strategy struct {
	sel         selectors.Set
	searchWait  time.Duration
}

var baseSelectors = selectors.Set{
	Consent:      []string{"#onetrust-accept-btn-handler", "button.consent-accept", "button[aria-label='Accept']"},
	SearchInput:  []string{"#ctlBodyPane_ctl01_ctl01_txtParcelID", "input#parcelSearch", "input[name='parcelId']"},
	SearchButton: []string{"#ctlBodyPane_ctl01_ctl01_btnSearch", "button#searchBtn"},
	Spinner:      []string{".loading-spinner", "#spinner"},
	OwnerName:    []string{".owner-name", "#ownerName", "td.OwnerName"},
	LegalDesc:    []string{".legal-description", "#legalDescription"},
	AlternateID:  []string{".alternate-id", "#altId"},
	OwnerAddress: []string{".owner-address", "#ownerAddress"},
	SitusAddress: []string{".situs-address", "#situsAddress"},
	TransferRows: []string{"table.transfer-history tbody tr"},
	DocLinks:     []string{"a.document-link", "a[href$='.pdf']"},
}

// New builds a platform A strategy with the base selector set merged
// against any county-specific override.
func New(override selectors.Override, searchWait time.Duration) *Strategy {
	return &Strategy{
		sel:        selectors.Merge(baseSelectors, override),
		searchWait: searchWait,
	}
}

func (s *Strategy) Kind() jobtypes.PortalKind { return jobtypes.PortalA }

func (s *Strategy) ReadySelectors() []string { return s.sel.SearchInput }

// Prepare drives CONSENT?: a consent banner, if present, is dismissed,
// the driver waits briefly for any resulting redirect, and then
// re-navigates to the page it was on before the click.
func (s *Strategy) Prepare(ctx context.Context, d *pagedriver.Driver) error {
	if h, ok := d.FindFirst(s.sel.Consent, 3*time.Second); ok {
		searchURL := d.CurrentURL()
		if err := d.Click(h); err != nil {
			return fmt.Errorf("click consent: %w", err)
		}
		d.Wait(1 * time.Second)
		if searchURL != "" {
			if err := d.Navigate(searchURL); err != nil {
				return fmt.Errorf("re-navigate after consent: %w", err)
			}
		}
	}
	return nil
}

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// SearchAndExtract drives SEARCH/EXTRACT/LOCATE_DOC for one parcel id.
func (s *Strategy) SearchAndExtract(ctx context.Context, d *pagedriver.Driver, parcelID string) (*portal.Fingerprint, jobtypes.Outcome, error) {
	input_, ok := d.FindFirst(s.sel.SearchInput, s.searchWait)
	if !ok {
		return nil, jobtypes.OutcomeError, fmt.Errorf("search input vanished")
	}
	if err := d.Fill(input_, parcelID); err != nil {
		return nil, jobtypes.OutcomeError, fmt.Errorf("fill search input: %w", err)
	}
	if btn, ok := d.FindFirst(s.sel.SearchButton, 1*time.Second); ok {
		_ = d.Click(btn)
	} else {
		_ = d.Press(input_, input.Enter)
	}

	waitForSpinnerClear(d, s.sel.Spinner, s.searchWait)

	html, err := d.PageHTML()
	if err != nil {
		return nil, jobtypes.OutcomeError, fmt.Errorf("read page html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, jobtypes.OutcomeError, fmt.Errorf("parse html: %w", err)
	}

	fp := &portal.Fingerprint{
		OwnerName:        firstTextNotDigitLeading(doc, s.sel.OwnerName),
		OwnerAddressRaw:  firstText(doc, s.sel.OwnerAddress),
		SitusAddressRaw:  firstText(doc, s.sel.SitusAddress),
		LegalDescription: firstText(doc, s.sel.LegalDesc),
		AlternateID:      firstText(doc, s.sel.AlternateID),
	}

	if fp.LegalDescription == "" && fp.OwnerName == "" {
		return nil, jobtypes.OutcomeNotFound, nil
	}

	date, instOrBK, deedCode := extractTransferRow(doc, s.sel.TransferRows)
	fp.TransferDate = date
	fp.TransferInstOrBK = instOrBK
	fp.TransferDeedCode = deedCode

	fp.DocumentURL = locateDocumentURL(doc, s.sel.DocLinks, d.CurrentURL())

	return fp, jobtypes.OutcomeOK, nil
}

func waitForSpinnerClear(d *pagedriver.Driver, spinnerSelectors []string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, ok := d.FindFirst(spinnerSelectors, 50*time.Millisecond); !ok {
			return
		}
		d.Wait(100 * time.Millisecond)
	}
}

func firstText(doc *goquery.Document, candidates []string) string {
	for _, sel := range candidates {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if txt := strings.TrimSpace(s.Text()); txt != "" {
				return txt
			}
		}
	}
	return ""
}

// firstTextNotDigitLeading implements spec.md §4.C's owner-name rule:
// first candidate whose text does not begin with a digit, guarding
// against accidentally capturing an address.
func firstTextNotDigitLeading(doc *goquery.Document, candidates []string) string {
	for _, sel := range candidates {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			txt := strings.TrimSpace(s.Text())
			if txt == "" {
				return true
			}
			if txt[0] < '0' || txt[0] > '9' {
				found = txt
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// extractTransferRow implements spec.md §4.C: date is column 0,
// document cell column 2, optional deed code column 1 accepted only
// if purely alphabetic and <= 3 characters.
func extractTransferRow(doc *goquery.Document, rowSelectors []string) (date, instOrBK, deedCode string) {
	for _, sel := range rowSelectors {
		row := doc.Find(sel).First()
		if row.Length() == 0 {
			continue
		}
		cells := row.Find("td")
		if cells.Length() == 0 {
			continue
		}
		get := func(i int) string {
			if i >= cells.Length() {
				return ""
			}
			return strings.TrimSpace(cells.Eq(i).Text())
		}
		date = get(0)
		maybeCode := get(1)
		if isShortAlpha(maybeCode) {
			deedCode = maybeCode
		}
		instOrBK = get(2)
		return
	}
	return "", "", ""
}

func isShortAlpha(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// locateDocumentURL picks the most recent property-record-document
// link: when multiple links carry an adjacent year, the highest year
// wins; if none carry a year, the first link is used (spec.md §4.C.4).
func locateDocumentURL(doc *goquery.Document, linkSelectors []string, baseURL string) string {
	type candidate struct {
		href string
		year int
	}
	var best *candidate
	var first string

	for _, sel := range linkSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || href == "" {
				return
			}
			if first == "" {
				first = href
			}
			context := strings.TrimSpace(s.Parent().Text() + " " + s.Text())
			if m := yearRe.FindString(context); m != "" {
				if y, err := strconv.Atoi(m); err == nil {
					if best == nil || y > best.year {
						best = &candidate{href: href, year: y}
					}
				}
			}
		})
	}

	var resolved string
	if best != nil {
		resolved = best.href
	} else {
		resolved = first
	}
	return resolveURL(resolved, baseURL)
}

func resolveURL(href, base string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if idx := strings.Index(base, "://"); idx >= 0 {
		if slash := strings.Index(base[idx+3:], "/"); slash >= 0 {
			root := base[:idx+3+slash]
			if strings.HasPrefix(href, "/") {
				return root + href
			}
			return strings.TrimRight(base, "/") + "/" + href
		}
	}
	return href
}
