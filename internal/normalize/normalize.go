// Package normalize turns rule-engine messages into canonical findings.
package normalize

import (
	"a11yscan/internal/finding"
	"a11yscan/internal/logging"
	"a11yscan/internal/selector"
)

// Normalize converts raw engine messages to findings in input order,
// dropping those the ignore list suppresses. It never fails: a message with
// a missing or malformed element still yields a finding with a nil context
// and an empty selector.
func Normalize(raw []finding.RawMessage, ignore IgnoreList) []finding.Finding {
	out := make([]finding.Finding, 0, len(raw))
	for _, m := range raw {
		t := finding.TypeFromCode(m.Type)
		if ignore.Matches(m.Code, t) {
			continue
		}
		out = append(out, finding.Finding{
			Code:     m.Code,
			Context:  Context(m.Element),
			Message:  m.Msg,
			Selector: Selector(m.Element),
			Type:     t,
			TypeCode: m.Type,
		})
	}
	logging.NormalizeDebug("kept %d of %d messages", len(out), len(raw))
	return out
}

// Selector resolves the selector for whatever element value the engine
// returned, or "" when it cannot be located.
func Selector(element any) string {
	switch e := element.(type) {
	case nil:
		return ""
	case finding.Locatable:
		return selector.Resolve(e.Node())
	case selector.Node:
		return selector.Resolve(e)
	default:
		return ""
	}
}
