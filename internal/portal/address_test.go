package portal

import "testing"

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"123 MAIN ST\nBLOOMFIELD,IN 47424-0000", "123 MAIN ST|BLOOMFIELD|IN|47424-0000"},
		{"SPRINGVILLE, IN 47462", "|SPRINGVILLE|IN|47462"},
		{"", "|||"},
	}
	for _, c := range cases {
		got := ParseAddress(c.in)
		gotStr := got.Street + "|" + got.City + "|" + got.State + "|" + got.Zip
		if gotStr != c.want {
			t.Errorf("ParseAddress(%q) = %q, want %q", c.in, gotStr, c.want)
		}
	}
}

func TestParseAddressIsPure(t *testing.T) {
	in := "456 ELM ST, SPRINGVILLE, IN 47462"
	a := ParseAddress(in)
	b := ParseAddress(in)
	if a != b {
		t.Errorf("ParseAddress is not deterministic: %+v vs %+v", a, b)
	}
}
