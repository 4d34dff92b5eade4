// Package finding defines the raw rule-engine message and the canonical
// finding record produced from it.
package finding

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"a11yscan/internal/selector"
)

// Type is the severity name of a finding.
type Type string

const (
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeNotice  Type = "notice"
	TypeUnknown Type = "unknown"
)

// Engine severity codes.
const (
	CodeError   = 1
	CodeWarning = 2
	CodeNotice  = 3
)

// TypeFromCode maps an engine severity code to its name. Codes the engine
// may add later map to TypeUnknown.
func TypeFromCode(code int) Type {
	switch code {
	case CodeError:
		return TypeError
	case CodeWarning:
		return TypeWarning
	case CodeNotice:
		return TypeNotice
	default:
		return TypeUnknown
	}
}

// Rank returns an integer rank for comparison (notice=1, error=3).
func (t Type) Rank() int {
	switch t {
	case TypeError:
		return 3
	case TypeWarning:
		return 2
	case TypeNotice:
		return 1
	default:
		return 0
	}
}

func (t Type) String() string {
	return string(t)
}

// ParseType parses a known severity name case-insensitively.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return TypeError, nil
	case "warning":
		return TypeWarning, nil
	case "notice":
		return TypeNotice, nil
	default:
		return TypeUnknown, fmt.Errorf("invalid type: %s", s)
	}
}

// Finding is one normalized accessibility issue.
type Finding struct {
	Code     string  `json:"code"`
	Context  *string `json:"context"`
	Message  string  `json:"message"`
	Selector string  `json:"selector"`
	Type     Type    `json:"type"`
	TypeCode int     `json:"typeCode"`
}

// Result is the outcome of one page evaluation: either the findings or a
// single error description, never both.
type Result struct {
	Messages []Finding
	Err      string
}

// IsError reports whether the run failed.
func (r Result) IsError() bool {
	return r.Err != ""
}

type resultMessages struct {
	Messages []Finding `json:"messages"`
}

type resultError struct {
	Error string `json:"error"`
}

// MarshalJSON emits {"messages":[...]} or {"error":"..."}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.IsError() {
		return json.Marshal(resultError{Error: r.Err})
	}
	msgs := r.Messages
	if msgs == nil {
		msgs = []Finding{}
	}
	return json.Marshal(resultMessages{Messages: msgs})
}

// UnmarshalJSON accepts either payload shape.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		Messages *[]Finding `json:"messages"`
		Error    *string    `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Error != nil && raw.Messages != nil:
		return errors.New("result carries both messages and error")
	case raw.Error != nil:
		*r = Result{Err: *raw.Error}
	case raw.Messages != nil:
		*r = Result{Messages: *raw.Messages}
	default:
		return errors.New("result carries neither messages nor error")
	}
	return nil
}

// RawMessage is one message as reported by the rule engine. Element is
// whatever the engine handed back; its capabilities are discovered with
// type assertions and may be entirely absent.
type RawMessage struct {
	Code    string
	Type    int
	Msg     string
	Element any
}

// Markup is implemented by elements that can report their markup. An empty
// OuterHTML means no usable markup.
type Markup interface {
	OuterHTML() string
	InnerHTML() string
}

// Locatable is implemented by elements that know where they sit in their
// document.
type Locatable interface {
	Node() selector.Node
}

// ElementSnapshot is an element captured from a live page.
type ElementSnapshot struct {
	Outer string        `json:"outerHTML,omitempty" yaml:"outer_html,omitempty"`
	Inner string        `json:"innerHTML,omitempty" yaml:"inner_html,omitempty"`
	Path  selector.Path `json:"path,omitempty" yaml:"path,omitempty"`
}

func (e *ElementSnapshot) OuterHTML() string {
	if e == nil {
		return ""
	}
	return e.Outer
}

func (e *ElementSnapshot) InnerHTML() string {
	if e == nil {
		return ""
	}
	return e.Inner
}

func (e *ElementSnapshot) Node() selector.Node {
	if e == nil {
		return nil
	}
	return e.Path.Node()
}
