package utils

import (
	"regexp"
	"strings"
)

var (
	controlChars       = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	controlCharsNoText = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
)

// SanitizeLine strips control characters and surrounding whitespace from a single-line value
func SanitizeLine(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// SanitizeText is SanitizeLine for free text: tabs and line breaks survive
func SanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(controlCharsNoText.ReplaceAllString(s, ""))
}
