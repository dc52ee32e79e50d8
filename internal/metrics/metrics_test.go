package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServeHTTPRendersCounters(t *testing.T) {
	m := New()
	m.JobsCompleted.Add(3)
	m.ParcelsScraped.Add(42)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "parcelwalk_jobs_completed_total 3") {
		t.Errorf("missing jobs_completed counter in body:\n%s", body)
	}
	if !strings.Contains(body, "parcelwalk_parcels_scraped_total 42") {
		t.Errorf("missing parcels_scraped counter in body:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
}
