package models

import "sort"

// CountryIndex maps country names to ISO3 codes.
type CountryIndex map[string]string

// Lookup returns the ISO3 code of country.
func (ci CountryIndex) Lookup(country string) (string, bool) {
	code, ok := ci[country]
	return code, ok
}

// Country is one entry of the index.
type Country struct {
	Name string `json:"country"`
	ISO3 string `json:"iso3"`
}

// Entries returns the index sorted by country name.
func (ci CountryIndex) Entries() []Country {
	out := make([]Country, 0, len(ci))
	for name, code := range ci {
		out = append(out, Country{Name: name, ISO3: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
