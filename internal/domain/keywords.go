package domain

import "strings"

// MatchKeywords reports which phrases occur (case-insensitive) in any of the texts,
// and whether all of them do. An empty phrase list matches everything.
func MatchKeywords(phrases []string, texts ...string) (matched []string, all bool) {
	if len(phrases) == 0 {
		return nil, true
	}
	lowered := make([]string, len(texts))
	for i, t := range texts {
		lowered[i] = strings.ToLower(t)
	}

	matched = make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p == "" {
			continue
		}
		for _, t := range lowered {
			if strings.Contains(t, p) {
				matched = append(matched, phrase)
				break
			}
		}
	}
	return matched, len(matched) == len(phrases)
}

// ParseAvailability interprets a provider stock string. Missing availability counts as in stock.
func ParseAvailability(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return true
	}
	if strings.Contains(v, "unavailable") || strings.Contains(v, "not available") || strings.Contains(v, "out of stock") {
		return false
	}
	return strings.Contains(v, "in stock") || strings.Contains(v, "in_stock") ||
		strings.Contains(v, "instock") || strings.Contains(v, "available")
}
