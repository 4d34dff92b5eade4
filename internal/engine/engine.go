// Package engine drives an injected accessibility rule engine against one
// loaded page and turns its output into a single Result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"a11yscan/internal/finding"
	"a11yscan/internal/logging"
	"a11yscan/internal/normalize"

	"github.com/google/uuid"
)

// Engine is a rule engine bound to one loaded page.
type Engine interface {
	// Name identifies the engine in error results, e.g. "HTML CodeSniffer".
	Name() string
	// Process runs the engine's checks for the given standard.
	Process(ctx context.Context, standard string) error
	// Messages returns the messages produced by the last Process call.
	Messages(ctx context.Context) ([]finding.RawMessage, error)
}

// Options configures one run. It is never mutated by Run.
type Options struct {
	Standard string
	Ignore   normalize.IgnoreList
	Wait     time.Duration
	// URL is only used for logging.
	URL string
}

// Run processes the page, waits if asked to, collects the engine's messages
// and normalizes them. Any engine failure, including a panic, yields an
// error result of the form "<engine name>: <message>" and no findings.
func Run(ctx context.Context, eng Engine, opts Options) (res finding.Result) {
	runID := uuid.NewString()
	log := logging.Get(logging.CategoryEngine).With("run", runID)
	audit := logging.Audit(runID, opts.URL)
	start := time.Now()

	name := eng.Name()
	audit.ScanStart(name, opts.Standard)

	suppressed := 0

	defer func() {
		if r := recover(); r != nil {
			res = failure(name, fmt.Errorf("%v", r))
		}
		dur := time.Since(start).Milliseconds()
		if res.IsError() {
			log.Warn("run failed: %s", res.Err)
			audit.ScanError(name, res.Err, dur)
			return
		}
		audit.ScanComplete(name, len(res.Messages), suppressed, dur)
	}()

	log.Debug("processing with standard %q", opts.Standard)
	if err := eng.Process(ctx, opts.Standard); err != nil {
		return failure(name, err)
	}

	if opts.Wait > 0 {
		log.Debug("waiting %v before collecting messages", opts.Wait)
		if err := sleep(ctx, opts.Wait); err != nil {
			return failure(name, err)
		}
	}

	raw, err := eng.Messages(ctx)
	if err != nil {
		return failure(name, err)
	}

	findings := normalize.Normalize(raw, opts.Ignore)
	suppressed = len(raw) - len(findings)
	return finding.Result{Messages: findings}
}

// RunAsync starts Run in its own goroutine. The returned channel receives
// exactly one Result and is then closed.
func RunAsync(ctx context.Context, eng Engine, opts Options) <-chan finding.Result {
	ch := make(chan finding.Result, 1)
	go func() {
		defer close(ch)
		ch <- Run(ctx, eng, opts)
	}()
	return ch
}

func failure(name string, err error) finding.Result {
	return finding.Result{Err: name + ": " + message(err)}
}

// message returns the text reported for an engine error. Errors that carry
// an engine-side message report it without Go wrapping.
func message(err error) string {
	var me interface{ EngineMessage() string }
	if errors.As(err, &me) {
		return me.EngineMessage()
	}
	return err.Error()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
