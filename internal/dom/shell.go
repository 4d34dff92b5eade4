// Package dom splits element markup with golang.org/x/net/html.
package dom

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// SplitShell splits a markup fragment into its leading start tag, its
// content and its trailing end tag. ok is false when the fragment does not
// open with a start tag or does not close with an end tag.
func SplitShell(markup string) (open, inner, closing string, ok bool) {
	z := html.NewTokenizer(strings.NewReader(markup))

	offset := 0
	openEnd := -1
	closeStart, closeEnd := -1, -1

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				return "", "", "", false
			}
			break
		}
		raw := len(z.Raw())
		switch tt {
		case html.StartTagToken:
			if openEnd < 0 {
				if offset != 0 {
					return "", "", "", false
				}
				openEnd = offset + raw
			}
			closeStart = -1
		case html.EndTagToken:
			closeStart, closeEnd = offset, offset+raw
		default:
			if openEnd < 0 {
				return "", "", "", false
			}
			closeStart = -1
		}
		offset += raw
	}

	if openEnd < 0 || closeStart < openEnd || closeEnd != len(markup) {
		return "", "", "", false
	}
	return markup[:openEnd], markup[openEnd:closeStart], markup[closeStart:], true
}
