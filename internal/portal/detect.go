package portal

import (
	"net/url"
	"strings"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
)

// hostnameTable maps a lowercase hostname substring to the portal kind
// it identifies. Checked in order; first match wins.
var hostnameTable = []struct {
	substr string
	kind   jobtypes.PortalKind
}{
	{"devnetwedge.com", jobtypes.PortalA},
	{"qpublic.net", jobtypes.PortalA},
	{"publicaccessnow.com", jobtypes.PortalB},
	{"beacon.schneidercorp.com", jobtypes.PortalB},
}

// DetectKind derives a PortalKind from a portal URL's hostname by
// substring match against a small table (spec.md §6): unrecognized
// hosts return jobtypes.PortalUnknown.
func DetectKind(portalURL string) jobtypes.PortalKind {
	u, err := url.Parse(portalURL)
	if err != nil {
		return jobtypes.PortalUnknown
	}
	host := strings.ToLower(u.Hostname())
	for _, entry := range hostnameTable {
		if strings.Contains(host, entry.substr) {
			return entry.kind
		}
	}
	return jobtypes.PortalUnknown
}
