package portalb

import "testing"

func TestExtractTransferRowXPathClassifiesCellsByShape(t *testing.T) {
	html := `
<html><body>
<table id="cmsTransferHistory">
<tbody>
<tr><td>01/15/2019</td><td>WD</td><td>2019-004521</td></tr>
</tbody>
</table>
</body></html>`

	date, instOrBK, deedCode := extractTransferRowXPath(html, []string{
		"//table[@id='cmsTransferHistory']/tbody/tr[1]",
		"//table[@id='frmTransferHistory']/tbody/tr[1]",
	})

	if date != "01/15/2019" {
		t.Errorf("date = %q, want 01/15/2019", date)
	}
	if deedCode != "WD" {
		t.Errorf("deedCode = %q, want WD", deedCode)
	}
	if instOrBK != "2019-004521" {
		t.Errorf("instOrBK = %q, want 2019-004521", instOrBK)
	}
}

func TestExtractTransferRowXPathFallsThroughOnNoMatch(t *testing.T) {
	date, instOrBK, deedCode := extractTransferRowXPath("<html><body>no tables here</body></html>", []string{
		"//table[@id='cmsTransferHistory']/tbody/tr[1]",
	})
	if date != "" || instOrBK != "" || deedCode != "" {
		t.Errorf("expected all-empty result, got (%q, %q, %q)", date, instOrBK, deedCode)
	}
}

func TestExtractTransferRowXPathFallsBackToSecondVariant(t *testing.T) {
	html := `
<html><body>
<table id="frmTransferHistory">
<tbody>
<tr><td>03/02/2021</td><td>QC</td><td>BK 1122 PG 45</td></tr>
</tbody>
</table>
</body></html>`

	date, instOrBK, deedCode := extractTransferRowXPath(html, []string{
		"//table[@id='cmsTransferHistory']/tbody/tr[1]",
		"//table[@id='frmTransferHistory']/tbody/tr[1]",
	})

	if date != "03/02/2021" || deedCode != "QC" || instOrBK != "BK 1122 PG 45" {
		t.Errorf("got (%q, %q, %q)", date, instOrBK, deedCode)
	}
}

func TestLooksLikeDate(t *testing.T) {
	cases := map[string]bool{
		"01/15/2019":    true,
		"2019-04-21":    true,
		"WD":            false,
		"":              false,
		"BK 1122 PG 45": true, // four digits present, treated as date-shaped
	}
	for in, want := range cases {
		if got := looksLikeDate(in); got != want {
			t.Errorf("looksLikeDate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsShortAlpha(t *testing.T) {
	cases := map[string]bool{
		"WD":    true,
		"QC":    true,
		"LONG":    false,
		"TOOLONG": false,
		"12":    false,
		"":      false,
	}
	for in, want := range cases {
		if got := isShortAlpha(in); got != want {
			t.Errorf("isShortAlpha(%q) = %v, want %v", in, got, want)
		}
	}
}
