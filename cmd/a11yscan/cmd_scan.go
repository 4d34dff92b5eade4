package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"a11yscan/internal/browser"
	"a11yscan/internal/config"
	"a11yscan/internal/engine"
	"a11yscan/internal/finding"
	"a11yscan/internal/normalize"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// pageOpener loads url and returns an engine bound to the loaded page and a
// function that releases it.
type pageOpener func(ctx context.Context, url string) (engine.Engine, func() error, error)

// pageReport is the result for one URL in a multi-page report.
type pageReport struct {
	URL    string
	Result finding.Result
}

func (r pageReport) MarshalJSON() ([]byte, error) {
	if r.Result.IsError() {
		return marshalJSON(struct {
			URL   string `json:"url"`
			Error string `json:"error"`
		}{r.URL, r.Result.Err})
	}
	messages := r.Result.Messages
	if messages == nil {
		messages = []finding.Finding{}
	}
	return marshalJSON(struct {
		URL      string            `json:"url"`
		Messages []finding.Finding `json:"messages"`
	}{r.URL, messages})
}

// runScan scans every URL argument and prints the report.
func runScan(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := browser.NewManager(cfg.Browser, cfg.Engine)
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			logger.Warn("browser shutdown failed", zap.Error(err))
		}
	}()
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	open := func(ctx context.Context, url string) (engine.Engine, func() error, error) {
		page, err := mgr.Open(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return page, page.Close, nil
	}

	logger.Info("scanning", zap.Int("pages", len(args)), zap.String("standard", cfg.Standard))
	reports := scanAll(ctx, open, args, scanOptions(cfg), cfg.Concurrency, cfg.GetTimeout(), flagCapture)
	return report(cmd.OutOrStdout(), reports, cfg.Level)
}

func scanOptions(c *config.Config) engine.Options {
	return engine.Options{
		Standard: c.Standard,
		Ignore:   normalize.ParseIgnoreList(c.Ignore),
		Wait:     c.GetWait(),
	}
}

// scanAll scans urls with at most limit pages in flight. Reports keep the
// order of urls.
func scanAll(ctx context.Context, open pageOpener, urls []string, opts engine.Options, limit int, timeout time.Duration, capture string) []pageReport {
	reports := make([]pageReport, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, url := range urls {
		g.Go(func() error {
			reports[i] = scanOne(gctx, open, url, opts, timeout, capturePath(capture, i, len(urls)))
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func scanOne(ctx context.Context, open pageOpener, url string, opts engine.Options, timeout time.Duration, capture string) pageReport {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	eng, release, err := open(ctx, url)
	if err != nil {
		logger.Warn("failed to open page", zap.String("url", url), zap.Error(err))
		return pageReport{URL: url, Result: finding.Result{Err: err.Error()}}
	}
	defer func() {
		if err := release(); err != nil {
			logger.Debug("failed to close page", zap.String("url", url), zap.Error(err))
		}
	}()

	var rec *engine.Recorder
	if capture != "" {
		rec = engine.NewRecorder(eng, url)
		eng = rec
	}

	opts.URL = url
	res := engine.Run(ctx, eng, opts)

	if rec != nil {
		if err := engine.SaveCapture(capture, rec.Capture()); err != nil {
			logger.Warn("failed to save capture", zap.String("path", capture), zap.Error(err))
		}
	}
	return pageReport{URL: url, Result: res}
}

// capturePath numbers capture files when several pages are scanned:
// run.yaml becomes run-1.yaml, run-2.yaml and so on.
func capturePath(path string, i, n int) string {
	if path == "" || n <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + strconv.Itoa(i+1) + ext
}

// report writes reports to w and returns the exit status as an error. A
// single page prints its findings array; several pages print one entry per
// page.
func report(w io.Writer, reports []pageReport, level string) error {
	if len(reports) == 1 {
		r := reports[0]
		if r.Result.IsError() {
			return fmt.Errorf("%s: %s", r.URL, r.Result.Err)
		}
		messages := r.Result.Messages
		if messages == nil {
			messages = []finding.Finding{}
		}
		if err := writeJSON(w, messages); err != nil {
			return err
		}
	} else if err := writeJSON(w, reports); err != nil {
		return err
	}

	if code := exitStatus(reports, level); code != 0 {
		return exitError{code: code}
	}
	return nil
}

// marshalJSON is json.Marshal without HTML escaping, so markup in contexts
// and selectors prints as written.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// exitStatus is 1 when any page failed, 2 when a finding reaches level and
// 0 otherwise. A level of "none" never fails on findings.
func exitStatus(reports []pageReport, level string) int {
	for _, r := range reports {
		if r.Result.IsError() {
			return 1
		}
	}
	threshold, err := finding.ParseType(level)
	if err != nil {
		return 0
	}
	for _, r := range reports {
		for _, f := range r.Result.Messages {
			if f.Type.Rank() >= threshold.Rank() {
				return 2
			}
		}
	}
	return 0
}
