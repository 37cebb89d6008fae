package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Identifier prefixes per entity.
const (
	PrefixAttribute      = "attr"
	PrefixPossibleValue  = "attrposval"
	PrefixAttributeValue = "attrval"
	PrefixAttributeSet   = "attrset"
)

// NewID returns a prefixed opaque identifier such as attr_5f0c...e1.
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// KebabCase derives a handle from a display name: "Shoe Size" -> "shoe-size",
// "fabricType" -> "fabric-type". Words are runs of letters and digits; an
// upper-case letter following a lower-case letter or digit starts a new word.
func KebabCase(s string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return strings.Join(words, "-")
}
