package portal

import (
	"testing"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
)

func TestDetectKind(t *testing.T) {
	cases := []struct {
		url  string
		want jobtypes.PortalKind
	}{
		{"https://qpublic.net/ga/example", jobtypes.PortalA},
		{"https://beacon.schneidercorp.com/Application.aspx?AppID=1", jobtypes.PortalB},
		{"https://example.com/unknown-county", jobtypes.PortalUnknown},
		{"::not a url::", jobtypes.PortalUnknown},
	}
	for _, c := range cases {
		if got := DetectKind(c.url); got != c.want {
			t.Errorf("DetectKind(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}
