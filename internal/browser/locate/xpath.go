package locate

import (
	"fmt"
	"strings"
)

// Literal returns s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a string containing both quote kinds is built with concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func tagOrAny(tag string) string {
	if tag == "" {
		return "*"
	}
	return tag
}

// TextEquals matches tag elements whose normalized text equals text.
func TextEquals(tag, text string) string {
	return fmt.Sprintf("//%s[normalize-space(.)=%s]", tagOrAny(tag), Literal(strings.Join(strings.Fields(text), " ")))
}

// TextContains matches tag elements whose text contains text.
func TextContains(tag, text string) string {
	return fmt.Sprintf("//%s[contains(., %s)]", tagOrAny(tag), Literal(text))
}

// AttrEquals matches tag elements whose attribute name equals value.
func AttrEquals(tag, name, value string) string {
	return fmt.Sprintf("//%s[@%s=%s]", tagOrAny(tag), name, Literal(value))
}

// AttrContains matches tag elements whose attribute name contains value.
func AttrContains(tag, name, value string) string {
	return fmt.Sprintf("//%s[contains(@%s, %s)]", tagOrAny(tag), name, Literal(value))
}

// ClassContains is the XPath predicate for "class list includes class",
// without matching classes that merely share a prefix.
func ClassContains(class string) string {
	return fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), %s)", Literal(" "+class+" "))
}
