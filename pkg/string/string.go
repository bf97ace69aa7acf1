package string

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func TrimStrings(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}

func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// MaskTail keeps the first keep runes of s and replaces the rest with "***".
// Values no longer than keep are fully masked.
func MaskTail(s string, keep int) string {
	if s == "" {
		return ""
	}
	if utf8.RuneCountInString(s) <= keep {
		return "***"
	}
	return string([]rune(s)[:keep]) + "***"
}
