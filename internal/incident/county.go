package incident

import "strings"

// MultipleCounties is recorded when a county is missing or lists several.
const MultipleCounties = "Multiple Counties"

// NormalizeCounty collapses blank and compound county cells into the
// MultipleCounties sentinel.
func NormalizeCounty(raw string) string {
	county := strings.TrimSpace(raw)
	if county == "" {
		return MultipleCounties
	}
	if strings.Contains(county, ",") {
		return MultipleCounties
	}
	for _, word := range strings.Fields(county) {
		if word == "and" || word == "&" {
			return MultipleCounties
		}
	}
	return county
}
