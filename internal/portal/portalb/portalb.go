// Package portalb implements the second supported portal family
// (spec.md §4.C, "platform B"). Its base selector set is the union of
// the two overlapping per-county variants noted in spec.md §9's open
// questions, relying on visibility-first probing to pick whichever
// one a given county actually renders.
package portalb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/go-rod/rod/lib/input"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/pagedriver"
	"github.com/parcelwalk/parcelwalk/internal/portal"
	"github.com/parcelwalk/parcelwalk/internal/portal/selectors"
)

type Strategy struct {
	sel        selectors.Set
	searchWait time.Duration
}

// baseSelectors is the union of the two variant ID sets observed in
// the source material: one keyed by "cmsSearch*" ids, the other by
// "frmSearch*" ids, apparently per-county skins of the same platform.
var baseSelectors = selectors.Set{
	Consent: []string{"#cmsConsentAccept", "#frmSearchAcceptBtn", "button.gdpr-accept"},
	SearchInput: []string{
		"#cmsSearchParcelInput", "#frmSearchParcelInput",
		"input[name='parcelNumber']", "input#searchTerm",
	},
	SearchButton: []string{"#cmsSearchGo", "#frmSearchGo", "button[type=submit]"},
	Autocomplete: []string{"ul.autocomplete-results li", ".ui-autocomplete li"},
	OwnerName:    []string{".cmsOwnerName", ".frmOwnerName", "span#ownerName"},
	LegalDesc:    []string{".cmsLegalDesc", ".frmLegalDesc", "span#legalDesc"},
	AlternateID:  []string{".cmsAltParcelId", ".frmAltParcelId"},
	OwnerAddress: []string{".cmsOwnerAddr", ".frmOwnerAddr"},
	SitusAddress: []string{".cmsSitusAddr", ".frmSitusAddr"},
	TransferRows: []string{"table#cmsTransferHistory tbody tr", "table#frmTransferHistory tbody tr"},
	DocLinks:     []string{"a.cmsDocLink", "a.frmDocLink", "a[href*='documentImage']"},
	// Portal B's transfer table puts the deed code in whichever <td>
	// isn't the date or the instrument number, a position CSS :nth-child
	// can't express relative to sibling content; XPath's sibling axis can.
	TransferRowXPaths: []string{
		"//table[@id='cmsTransferHistory']/tbody/tr[1]",
		"//table[@id='frmTransferHistory']/tbody/tr[1]",
	},
}

func New(override selectors.Override, searchWait time.Duration) *Strategy {
	return &Strategy{
		sel:        selectors.Merge(baseSelectors, override),
		searchWait: searchWait,
	}
}

func (s *Strategy) Kind() jobtypes.PortalKind { return jobtypes.PortalB }

func (s *Strategy) ReadySelectors() []string { return s.sel.SearchInput }

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

// SearchAndExtract mirrors portala's flow but completes the search
// gesture either by Enter or by clicking the first autocomplete
// suggestion, whichever platform B variant renders (spec.md §4.C.2).
func (s *Strategy) SearchAndExtract(ctx context.Context, d *pagedriver.Driver, parcelID string) (*portal.Fingerprint, jobtypes.Outcome, error) {
	in, ok := d.FindFirst(s.sel.SearchInput, s.searchWait)
	if !ok {
		return nil, jobtypes.OutcomeError, fmt.Errorf("search input vanished")
	}
	if err := d.Fill(in, parcelID); err != nil {
		return nil, jobtypes.OutcomeError, fmt.Errorf("fill search input: %w", err)
	}

	if sugg, ok := d.FindFirst(s.sel.Autocomplete, 2*time.Second); ok {
		if err := d.Click(sugg); err != nil {
			return nil, jobtypes.OutcomeError, fmt.Errorf("click autocomplete suggestion: %w", err)
		}
	} else if btn, ok := d.FindFirst(s.sel.SearchButton, 1*time.Second); ok {
		_ = d.Click(btn)
	} else {
		_ = d.Press(in, input.Enter)
	}

	d.Wait(300 * time.Millisecond)

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

	date, instOrBK, deedCode := extractTransferRowXPath(html, s.sel.TransferRowXPaths)
	if date == "" && instOrBK == "" {
		date, instOrBK, deedCode = extractTransferRow(doc, s.sel.TransferRows)
	}
	fp.TransferDate = date
	fp.TransferInstOrBK = instOrBK
	fp.TransferDeedCode = deedCode
	fp.DocumentURL = locateDocumentURL(doc, s.sel.DocLinks, d.CurrentURL())

	return fp, jobtypes.OutcomeOK, nil
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

// extractTransferRowXPath is the primary path for portal B's transfer
// table: it walks matched <tr> nodes with XPath and classifies each
// <td> by content shape (short alpha token = deed code) rather than
// fixed column position, since the two county skins don't agree on
// column order.
func extractTransferRowXPath(rawHTML string, rowXPaths []string) (date, instOrBK, deedCode string) {
	root, err := htmlquery.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", "", ""
	}
	for _, expr := range rowXPaths {
		row := htmlquery.FindOne(root, expr)
		if row == nil {
			continue
		}
		cells := htmlquery.Find(row, "./td")
		if len(cells) == 0 {
			continue
		}
		texts := make([]string, len(cells))
		for i, c := range cells {
			texts[i] = strings.TrimSpace(htmlquery.InnerText(c))
		}
		for _, t := range texts {
			switch {
			case isShortAlpha(t):
				deedCode = t
			case date == "" && looksLikeDate(t):
				date = t
			case instOrBK == "" && t != "":
				instOrBK = t
			}
		}
		return
	}
	return "", "", ""
}

func looksLikeDate(s string) bool {
	if len(s) < 6 {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 4
}

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
			if y, ok := extractYear(context); ok {
				if best == nil || y > best.year {
					best = &candidate{href: href, year: y}
				}
			}
		})
	}

	resolved := first
	if best != nil {
		resolved = best.href
	}
	return resolveURL(resolved, baseURL)
}

func extractYear(s string) (int, bool) {
	for i := 0; i+4 <= len(s); i++ {
		chunk := s[i : i+4]
		if y, err := strconv.Atoi(chunk); err == nil && y >= 1900 && y <= 2099 {
			return y, true
		}
	}
	return 0, false
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
