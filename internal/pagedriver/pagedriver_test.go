package pagedriver

import "testing"

// Driver's browser-backed methods need a live Chromium instance and
// are exercised in practice, not unit tests; SameRegistrableDomain is
// the one pure function in this package and gets coverage here.
func TestSameRegistrableDomain(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical host", "https://qpublic.net/search", "https://qpublic.net/results", true},
		{"different subdomain same registrable domain", "https://search.qpublic.net/x", "https://cdn.qpublic.net/y", true},
		{"different registrable domain", "https://qpublic.net/search", "https://evil-captcha.example.com/", false},
		{"malformed url", "https://qpublic.net/search", "not a url", false},
		{"empty target", "https://qpublic.net/search", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := SameRegistrableDomain(c.a, c.b)
			if got != c.want {
				t.Errorf("SameRegistrableDomain(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
			}
		})
	}
}

func TestRegistrableDomainRejectsHostless(t *testing.T) {
	if _, err := registrableDomain("/just/a/path"); err == nil {
		t.Error("expected error for URL with no host")
	}
}
