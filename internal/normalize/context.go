package normalize

import (
	"strings"

	"a11yscan/internal/dom"
	"a11yscan/internal/finding"
)

// Display budgets for context snippets, in characters.
const (
	InnerBudget = 31
	OuterBudget = 251
	Ellipsis    = "..."
)

// Context returns the markup snippet for an element, or nil when the element
// exposes no usable markup. Inner content longer than InnerBudget is cut and
// spliced back into the outer markup; the result is then cut to
// OuterBudget-1 characters if it is still longer than OuterBudget.
func Context(element any) *string {
	m, ok := element.(finding.Markup)
	if !ok || isNilMarkup(m) {
		return nil
	}
	outer := m.OuterHTML()
	if outer == "" {
		return nil
	}

	inner := m.InnerHTML()
	if inner == "" {
		if _, content, _, ok := dom.SplitShell(outer); ok {
			inner = content
		}
	}

	if runeLen(inner) > InnerBudget {
		short := truncate(inner, InnerBudget) + Ellipsis
		outer = strings.Replace(outer, inner, short, 1)
	}
	if runeLen(outer) > OuterBudget {
		outer = truncate(outer, OuterBudget-1) + Ellipsis
	}
	return &outer
}

func isNilMarkup(m finding.Markup) bool {
	if n, ok := m.(interface{ IsNil() bool }); ok {
		return n.IsNil()
	}
	return false
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
