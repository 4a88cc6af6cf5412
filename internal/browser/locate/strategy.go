package locate

import (
	"fmt"

	"github.com/antchfx/xpath"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
)

// Kind tags how a Strategy's pattern is interpreted.
type Kind string

const (
	KindCSS   Kind = "css"
	KindID    Kind = "id"
	KindXPath Kind = "xpath"
	KindText  Kind = "text"
	KindAttr  Kind = "attr"
)

// Strategy is one way of finding a logical element. An ordered list of
// strategies describes the same element through progressively looser
// patterns.
type Strategy struct {
	Kind    Kind
	Pattern string
	// expr is the XPath the strategy compiles to, for xpath/text/attr kinds.
	expr string
	err  error
}

func (s Strategy) String() string {
	return fmt.Sprintf("%s=%s", s.Kind, s.Pattern)
}

// Err reports a pattern that failed validation at construction.
func (s Strategy) Err() error { return s.err }

// CSS finds elements with a CSS selector.
func CSS(selector string) Strategy {
	return Strategy{Kind: KindCSS, Pattern: selector}
}

// ID finds the element with the given id attribute.
func ID(id string) Strategy {
	return Strategy{Kind: KindID, Pattern: id}
}

// XPath finds elements with an XPath 1.0 expression. Relative expressions
// (".//button") are evaluated against Options.Scope when one is set.
func XPath(expr string) Strategy {
	return newXPathStrategy(KindXPath, expr, expr)
}

// Text finds tag elements (any element when tag is empty) whose text
// contains text.
func Text(tag, text string) Strategy {
	return newXPathStrategy(KindText, tag+":"+text, TextContains(tag, text))
}

// ExactText finds tag elements whose normalized text equals text.
func ExactText(tag, text string) Strategy {
	return newXPathStrategy(KindText, tag+"="+text, TextEquals(tag, text))
}

// Attr finds tag elements whose attribute name equals value.
func Attr(tag, name, value string) Strategy {
	return newXPathStrategy(KindAttr, fmt.Sprintf("%s[@%s=%q]", tagOrAny(tag), name, value), AttrEquals(tag, name, value))
}

func newXPathStrategy(kind Kind, pattern, expr string) Strategy {
	s := Strategy{Kind: kind, Pattern: pattern, expr: expr}
	if _, err := xpath.Compile(expr); err != nil {
		s.err = &InvalidPatternError{Strategy: s, Err: err}
	}
	return s
}

// finder returns a JavaScript function of one argument (the search root)
// that returns the matching elements in document order.
func (s Strategy) finder() string {
	switch s.Kind {
	case KindCSS:
		return fmt.Sprintf(`function(root) { return Array.from(root.querySelectorAll(%s)); }`, session.JSLiteral(s.Pattern))
	case KindID:
		return fmt.Sprintf(`function(root) { return Array.from(root.querySelectorAll('#' + CSS.escape(%s))); }`, session.JSLiteral(s.Pattern))
	default:
		return fmt.Sprintf(`function(root) {
			const doc = root.ownerDocument || root;
			const snap = doc.evaluate(%s, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			const out = [];
			for (let i = 0; i < snap.snapshotLength; i++) {
				const n = snap.snapshotItem(i);
				if (n.nodeType === Node.ELEMENT_NODE) { out.push(n); }
			}
			return out;
		}`, session.JSLiteral(s.expr))
	}
}
