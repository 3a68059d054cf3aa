package usecase

import (
	"regexp"
	"strings"
)

const maxRefreshQueryLength = 100

// Compiled regex patterns for refresh query cleanup
var (
	// Matches size/quantity patterns like "52 in", "12 oz", "1.5 liter", "2 lb", "500 ml"
	sizeQuantityPattern = regexp.MustCompile(`(?i)\b\d+\.?\d*\s*(?:fl\s*oz|oz|ounces?|lbs?|pounds?|ml|liters?|gallons?|qt|quarts?|kg|grams?|g|in|inch|inches|ft|feet|cm|mm|w|watts?)\b`)

	// Matches pack/count patterns like "12 pack", "pack of 6", "6-pack", "24 count", "set of 4"
	packCountPattern = regexp.MustCompile(`(?i)\b\d+[-\s]*(?:pack|pk|count|ct|piece|pcs)\b|\b(?:pack|set)\s*of\s*\d+\b`)

	// Matches standalone numbers left at the edges (e.g., ", 128", "- 12")
	standaloneNumberPattern = regexp.MustCompile(`[,\-]\s*\d+\.?\d*\s*$|^\d+\.?\d*\s*[,\-]`)

	orphanedPunctuationPattern = regexp.MustCompile(`\s+[,\-;:|/]+\s+`)
	trailingPunctuationPattern = regexp.MustCompile(`[,\-;:|/]+\s*$`)
	leadingPunctuationPattern  = regexp.MustCompile(`^\s*[,\-;:|/]+`)
	multiSpacePattern          = regexp.MustCompile(`\s+`)
)

// queryNoiseWords are marketing terms that narrow a provider search for no benefit
var queryNoiseWords = map[string]bool{
	"new": true, "improved": true, "premium": true, "best": true,
	"sale": true, "clearance": true, "exclusive": true, "bestseller": true,
	"bestselling": true, "limited": true, "edition": true, "free": true,
	"shipping": true, "bonus": true, "value": true, "deal": true,
}

// BuildRefreshQuery turns a stored title into the search text used to find the
// listing again upstream. Size, pack count and marketing noise are removed and the
// brand name is dropped since the search is already scoped to the brand's account.
func BuildRefreshQuery(title, brandName string) string {
	if strings.TrimSpace(title) == "" {
		return ""
	}

	cleaned := sizeQuantityPattern.ReplaceAllString(title, " ")
	cleaned = packCountPattern.ReplaceAllString(cleaned, " ")
	cleaned = standaloneNumberPattern.ReplaceAllString(cleaned, " ")
	cleaned = removeNoiseWords(cleaned, brandName)
	cleaned = cleanOrphanedPunctuation(cleaned)
	cleaned = strings.TrimSpace(multiSpacePattern.ReplaceAllString(cleaned, " "))

	if cleaned == "" {
		cleaned = strings.TrimSpace(multiSpacePattern.ReplaceAllString(title, " "))
	}

	if len(cleaned) > maxRefreshQueryLength {
		cleaned = cleaned[:maxRefreshQueryLength]
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > maxRefreshQueryLength/2 {
			cleaned = cleaned[:lastSpace]
		}
	}
	return cleaned
}

// removeNoiseWords drops noise words and the brand's own words, keeping original casing
func removeNoiseWords(s, brandName string) string {
	brandWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(brandName)) {
		brandWords[strings.Trim(w, ",.!?;:-'\"")] = true
	}

	var kept []string
	for _, word := range strings.Fields(s) {
		clean := strings.ToLower(strings.Trim(word, ",.!?;:-'\"®™"))
		if queryNoiseWords[clean] || brandWords[clean] {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// cleanOrphanedPunctuation removes punctuation left alone after word removal
func cleanOrphanedPunctuation(s string) string {
	result := orphanedPunctuationPattern.ReplaceAllString(s, " ")
	result = trailingPunctuationPattern.ReplaceAllString(result, "")
	return leadingPunctuationPattern.ReplaceAllString(result, "")
}
