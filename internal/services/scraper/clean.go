package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	phoneRegex = regexp.MustCompile(`\(?\d{2}\)?\s*\d{4,5}[-.\s]?\d{4}`)
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	digitRegex = regexp.MustCompile(`\D`)

	// Email-shaped strings baked into page assets, not real addresses.
	assetExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js", ".ico", ".woff", ".woff2"}
)

// CleanPhone normalizes a Brazilian phone number to "(dd) ddddd-dddd".
// Input that does not carry 10 or 11 digits is returned trimmed as-is.
func CleanPhone(raw string) string {
	raw = strings.TrimSpace(raw)
	digits := digitRegex.ReplaceAllString(raw, "")

	// Strip the country code when present.
	if len(digits) == 12 || len(digits) == 13 {
		if strings.HasPrefix(digits, "55") {
			digits = digits[2:]
		}
	}

	switch len(digits) {
	case 11:
		return fmt.Sprintf("(%s) %s-%s", digits[:2], digits[2:7], digits[7:])
	case 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:2], digits[2:6], digits[6:])
	default:
		return raw
	}
}

// ExtractPhone finds the first phone number in a block of text
func ExtractPhone(text string) string {
	match := phoneRegex.FindString(text)
	if match == "" {
		return ""
	}
	return CleanPhone(match)
}

// ValidEmail rejects email-shaped matches that are actually asset paths
func ValidEmail(email string) bool {
	email = strings.ToLower(email)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(email, ext) {
			return false
		}
	}
	return strings.Count(email, "@") == 1
}

// ParseCompactCount parses counts like "1.5K", "2M", "1,234" or "987"
// into integers. Returns 0 for unparseable input.
func ParseCompactCount(s string) int {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "B"):
		multiplier = 1_000_000_000
		s = strings.TrimSuffix(s, "B")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}
