package types

import (
	"sort"
	"strings"
)

// States maps the two-letter postal abbreviation to the slug used in listing URLs.
var States = map[string]string{
	"AL": "al", "AK": "ak", "AZ": "az", "AR": "ar", "CA": "ca", "CO": "co", "CT": "ct",
	"DE": "de", "FL": "fl", "GA": "ga", "HI": "hi", "ID": "id", "IL": "il", "IN": "in",
	"IA": "ia", "KS": "ks", "KY": "ky", "LA": "la", "ME": "me", "MD": "md", "MA": "ma",
	"MI": "mi", "MN": "mn", "MS": "ms", "MO": "mo", "MT": "mt", "NE": "ne", "NV": "nv",
	"NH": "nh", "NJ": "nj", "NM": "nm", "NY": "ny", "NC": "nc", "ND": "nd", "OH": "oh",
	"OK": "ok", "OR": "or", "PA": "pa", "RI": "ri", "SC": "sc", "SD": "sd", "TN": "tn",
	"TX": "tx", "UT": "ut", "VT": "vt", "VA": "va", "WA": "wa", "WV": "wv", "WI": "wi", "WY": "wy",
}

// StateSlug returns the URL slug for a postal code. Lookup is case-insensitive.
func StateSlug(code string) (string, bool) {
	slug, ok := States[strings.ToUpper(strings.TrimSpace(code))]
	return slug, ok
}

// StateCodes returns all postal codes in alphabetical order.
func StateCodes() []string {
	codes := make([]string, 0, len(States))
	for code := range States {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
