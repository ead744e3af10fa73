package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	separatorRe = regexp.MustCompile(`[\s\-]+`)
	invalidRe   = regexp.MustCompile(`[^a-z0-9_]`)
	collapseRe  = regexp.MustCompile(`_+`)
)

// Two keys arrive from some providers already lowercased with the
// underscore dropped; they must still line up with the canonical keys.
var irregularKeys = map[string]string{
	"idtype":   "id_type",
	"idnumber": "id_number",
}

// NormalizeQuestionKey converts a question key from any of the naming
// conventions seen in provider carts into canonical snake_case:
// trim, camelCase -> snake_case, lowercase, whitespace/hyphens -> "_",
// strip everything outside [a-z0-9_].
func NormalizeQuestionKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			prev := rune(key[i-1])
			if !unicode.IsUpper(prev) && prev != '_' && prev != ' ' && prev != '-' {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}

	normalized := strings.ToLower(b.String())
	normalized = separatorRe.ReplaceAllString(normalized, "_")
	normalized = invalidRe.ReplaceAllString(normalized, "")
	normalized = collapseRe.ReplaceAllString(normalized, "_")
	normalized = strings.Trim(normalized, "_")

	if canonical, ok := irregularKeys[normalized]; ok {
		return canonical
	}
	return normalized
}
