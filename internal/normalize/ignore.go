package normalize

import (
	"strings"

	"a11yscan/internal/finding"
)

// IgnoreList is an immutable suppression policy. Entries are rule codes or
// severity names; both are matched case-insensitively.
type IgnoreList struct {
	entries map[string]struct{}
}

// NewIgnoreList combines rule codes and severity names into one list.
func NewIgnoreList(codes, types []string) IgnoreList {
	all := make([]string, 0, len(codes)+len(types))
	all = append(all, codes...)
	all = append(all, types...)
	return ParseIgnoreList(all)
}

// ParseIgnoreList builds a list from mixed codes and severity names. Blank
// entries are skipped.
func ParseIgnoreList(entries []string) IgnoreList {
	l := IgnoreList{entries: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		l.entries[e] = struct{}{}
	}
	return l
}

// Len returns the number of distinct entries.
func (l IgnoreList) Len() int {
	return len(l.entries)
}

// Entries returns the entries in no particular order.
func (l IgnoreList) Entries() []string {
	out := make([]string, 0, len(l.entries))
	for e := range l.entries {
		out = append(out, e)
	}
	return out
}

// Matches reports whether a message with this code and type is suppressed.
func (l IgnoreList) Matches(code string, t finding.Type) bool {
	if len(l.entries) == 0 {
		return false
	}
	if _, ok := l.entries[strings.ToLower(code)]; ok {
		return true
	}
	_, ok := l.entries[strings.ToLower(string(t))]
	return ok
}

// Filter drops suppressed findings, preserving order. The input is not
// modified.
func (l IgnoreList) Filter(findings []finding.Finding) []finding.Finding {
	out := make([]finding.Finding, 0, len(findings))
	for _, f := range findings {
		if l.Matches(f.Code, f.Type) {
			continue
		}
		out = append(out, f)
	}
	return out
}
