package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"a11yscan/internal/finding"
	"a11yscan/internal/logging"
	"a11yscan/internal/normalize"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// EngineName is reported as the prefix of engine error results.
const EngineName = "HTML CodeSniffer"

// processJS runs HTMLCS against the whole document and resolves when the
// engine reports completion.
const processJS = `(standard) => new Promise((resolve, reject) => {
	if (typeof window.HTMLCS === 'undefined') {
		reject(new Error('HTML CodeSniffer is not loaded'));
		return;
	}
	try {
		window.HTMLCS.process(standard, window.document, () => resolve(true));
	} catch (err) {
		reject(err);
	}
})`

// messagesJS flattens HTMLCS messages into plain objects. Elements become a
// snapshot of their markup plus the ancestor chain up to the root element.
// Markup is trimmed in the page: inner content over innerBudget characters
// is cut and spliced into the outer markup, and the outer markup is capped
// at outerCap characters. Both cuts leave normalize.Context's result
// unchanged.
const messagesJS = `(innerBudget, outerCap, ellipsis) => {
	const cut = (s, n) => {
		const chars = Array.from(s);
		return chars.length > n ? chars.slice(0, n).join('') : null;
	};
	const snapshot = (el) => {
		if (!el || el.nodeType !== 1) return null;
		const path = [];
		for (let cur = el; cur && cur.nodeType === 1; cur = cur.parentNode) {
			let index = 1, sameTag = 1;
			const parent = cur.parentNode;
			if (parent && parent.children) {
				const siblings = Array.prototype.slice.call(parent.children);
				index = siblings.indexOf(cur) + 1;
				sameTag = siblings.filter((s) => s.tagName === cur.tagName).length;
			}
			const id = cur.getAttribute ? (cur.getAttribute('id') || '') : '';
			path.push({ tag: cur.tagName, id, index, sameTag });
		}
		let outerHTML = typeof el.outerHTML === 'string' ? el.outerHTML : '';
		let innerHTML = typeof el.innerHTML === 'string' ? el.innerHTML : '';
		const innerCut = cut(innerHTML, innerBudget);
		if (innerCut !== null) {
			const short = innerCut + ellipsis;
			outerHTML = outerHTML.replace(innerHTML, () => short);
			innerHTML = short;
		}
		const outerCut = cut(outerHTML, outerCap);
		if (outerCut !== null) {
			outerHTML = outerCut;
		}
		return { outerHTML, innerHTML, path };
	};
	return window.HTMLCS.getMessages().map((m) => ({
		code: m.code,
		type: m.type,
		msg: m.msg,
		element: snapshot(m.element),
	}));
}`

// outerCap bounds the outer markup sent from the page. Anything past
// OuterBudget is cut again by normalize.Context.
const outerCap = 2 * normalize.OuterBudget

// Page is one loaded document with HTMLCS injected. It implements
// engine.Engine.
type Page struct {
	id        string
	url       string
	page      *rod.Page
	incognito *rod.Browser // browser context owned by this page
	mgr       *Manager

	stopWatch context.CancelFunc
}

func (p *Page) Name() string { return EngineName }

// Process runs the engine for standard and waits for its completion callback.
func (p *Page) Process(ctx context.Context, standard string) error {
	_, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           processJS,
		JSArgs:       []interface{}{standard},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return wrapEval("process", err)
	}
	return nil
}

// Messages collects the engine's messages from the page.
func (p *Page) Messages(ctx context.Context) ([]finding.RawMessage, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      messagesJS,
		JSArgs:  []interface{}{normalize.InnerBudget, outerCap, normalize.Ellipsis},
		ByValue: true,
	})
	if err != nil {
		return nil, wrapEval("getMessages", err)
	}
	data, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return decodeMessages(data)
}

// Close closes the page together with its browser context and stops its
// console watcher.
func (p *Page) Close() error {
	if p.mgr != nil {
		p.mgr.forget(p.id)
	}
	return p.release()
}

func (p *Page) release() error {
	if p.stopWatch != nil {
		p.stopWatch()
	}
	err := p.page.Close()
	if p.incognito != nil {
		if cerr := p.incognito.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// watchConsole forwards page console errors and uncaught exceptions to the
// browser log until the page is closed.
func (p *Page) watchConsole() {
	ctx, cancel := context.WithCancel(context.Background())
	p.stopWatch = cancel
	log := logging.Get(logging.CategoryBrowser).With("page", p.id, "url", p.url)

	wait := p.page.Context(ctx).EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			if ev.Type == proto.RuntimeConsoleAPICalledTypeError {
				log.Debug("console error: %s", stringifyConsoleArgs(ev.Args))
			}
		},
		func(ev *proto.RuntimeExceptionThrown) {
			log.Debug("page exception: %s", exceptionMessage(ev.ExceptionDetails))
		},
	)
	go wait()
}

type jsMessage struct {
	Code    string                   `json:"code"`
	Type    int                      `json:"type"`
	Msg     string                   `json:"msg"`
	Element *finding.ElementSnapshot `json:"element"`
}

func decodeMessages(data []byte) ([]finding.RawMessage, error) {
	var msgs []jsMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	out := make([]finding.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		raw := finding.RawMessage{Code: m.Code, Type: m.Type, Msg: m.Msg}
		if m.Element != nil {
			raw.Element = m.Element
		}
		out = append(out, raw)
	}
	return out, nil
}

// scriptError is a JS exception raised by the engine. EngineMessage is the
// exception's own message, without the error class name.
type scriptError struct {
	op  string
	msg string
	err error
}

func (e *scriptError) Error() string         { return e.op + ": " + e.msg }
func (e *scriptError) Unwrap() error         { return e.err }
func (e *scriptError) EngineMessage() string { return e.msg }

func wrapEval(op string, err error) error {
	var evalErr *rod.EvalError
	if errors.As(err, &evalErr) {
		return &scriptError{op: op, msg: exceptionMessage(evalErr.RuntimeExceptionDetails), err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func exceptionMessage(d *proto.RuntimeExceptionDetails) string {
	if d == nil {
		return ""
	}
	if ex := d.Exception; ex != nil {
		if ex.Description != "" {
			first, _, _ := strings.Cut(ex.Description, "\n")
			return stripErrorName(first)
		}
		if !ex.Value.Nil() {
			return ex.Value.String()
		}
	}
	return stripErrorName(strings.TrimPrefix(d.Text, "Uncaught "))
}

// stripErrorName turns "TypeError: x is not a function" into
// "x is not a function".
func stripErrorName(s string) string {
	name, rest, ok := strings.Cut(s, ": ")
	if !ok || strings.ContainsAny(name, " \t") {
		return s
	}
	if strings.HasSuffix(name, "Error") || strings.HasSuffix(name, "Exception") {
		return rest
	}
	return s
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
