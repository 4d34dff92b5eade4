package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"a11yscan/internal/finding"
	"a11yscan/internal/logging"
	"a11yscan/internal/normalize"
	"a11yscan/internal/selector"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubEngine records calls in order, in the manner of a spy.
type stubEngine struct {
	mu         sync.Mutex
	calls      []string
	standards  []string
	messages   []finding.RawMessage
	processErr error
	messageErr error
	panicWith  any
}

func (s *stubEngine) Name() string { return "HTML CodeSniffer" }

func (s *stubEngine) Process(ctx context.Context, standard string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "process")
	s.standards = append(s.standards, standard)
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.processErr
}

func (s *stubEngine) Messages(ctx context.Context) ([]finding.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "getMessages")
	return s.messages, s.messageErr
}

func defaultOptions() Options {
	return Options{Standard: "FOO-STANDARD"}
}

func TestRun_ProcessesWithStandard(t *testing.T) {
	eng := &stubEngine{}
	res := Run(context.Background(), eng, defaultOptions())

	assert.False(t, res.IsError())
	assert.Equal(t, []string{"FOO-STANDARD"}, eng.standards)
	assert.Equal(t, []string{"process", "getMessages"}, eng.calls)
	assert.NotNil(t, res.Messages)
	assert.Empty(t, res.Messages)
}

func TestRun_Waits(t *testing.T) {
	opts := defaultOptions()
	opts.Wait = 10 * time.Millisecond

	start := time.Now()
	res := Run(context.Background(), &stubEngine{}, opts)
	assert.False(t, res.IsError())
	assert.GreaterOrEqual(t, time.Since(start), opts.Wait)
}

func TestRun_WaitCancelled(t *testing.T) {
	eng := &stubEngine{}
	opts := defaultOptions()
	opts.Wait = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	res := Run(ctx, eng, opts)
	require.True(t, res.IsError())
	assert.Equal(t, "HTML CodeSniffer: context deadline exceeded", res.Err)
	assert.Equal(t, []string{"process"}, eng.calls)
}

func TestRun_ReformatsMessages(t *testing.T) {
	eng := &stubEngine{messages: []finding.RawMessage{
		{
			Code: "foo-code",
			Element: &finding.ElementSnapshot{
				Outer: `<p class="foo3">3</p>`,
				Inner: "3",
				Path: selector.Path{
					{Tag: "P", Index: 3, SameTag: 3},
					{Tag: "DIV", ID: "foo", Index: 1, SameTag: 1},
				},
			},
			Msg:  "foo message",
			Type: 1,
		},
		{Code: "bar-code", Element: struct{}{}, Msg: "bar message", Type: 4},
	}}

	res := Run(context.Background(), eng, defaultOptions())
	ctx := `<p class="foo3">3</p>`
	want := []finding.Finding{
		{Code: "foo-code", Context: &ctx, Message: "foo message", Selector: "#foo > p:nth-child(3)", Type: finding.TypeError, TypeCode: 1},
		{Code: "bar-code", Message: "bar message", Type: finding.TypeUnknown, TypeCode: 4},
	}
	if diff := cmp.Diff(want, res.Messages); diff != "" {
		t.Errorf("Run mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Suppression(t *testing.T) {
	raw := []finding.RawMessage{{Code: "foo-code", Msg: "m", Type: 1}}

	tests := []struct {
		name   string
		ignore []string
		want   int
	}{
		{"nothing ignored", nil, 1},
		{"ignored by code", []string{"foo-code"}, 0},
		{"ignored by type", []string{"error"}, 0},
		{"other type ignored", []string{"warning"}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := defaultOptions()
			opts.Ignore = normalize.ParseIgnoreList(tc.ignore)
			res := Run(context.Background(), &stubEngine{messages: raw}, opts)
			require.False(t, res.IsError())
			assert.Len(t, res.Messages, tc.want)
		})
	}
}

func TestRun_ProcessError(t *testing.T) {
	eng := &stubEngine{processErr: errors.New("Oopsie")}
	res := Run(context.Background(), eng, defaultOptions())

	require.True(t, res.IsError())
	assert.Equal(t, "HTML CodeSniffer: Oopsie", res.Err)
	assert.Nil(t, res.Messages)
	assert.Equal(t, []string{"process"}, eng.calls, "messages are not collected after a failure")
}

func TestRun_MessagesError(t *testing.T) {
	eng := &stubEngine{messageErr: errors.New("getMessages is not a function")}
	res := Run(context.Background(), eng, defaultOptions())

	require.True(t, res.IsError())
	assert.Equal(t, "HTML CodeSniffer: getMessages is not a function", res.Err)
	assert.Nil(t, res.Messages)
}

func TestRun_EngineMessageUnwrapped(t *testing.T) {
	eng := &stubEngine{processErr: errors.Join(replayError("Oopsie"))}
	res := Run(context.Background(), eng, defaultOptions())
	assert.Equal(t, "HTML CodeSniffer: Oopsie", res.Err)
}

func TestRun_RecoversPanic(t *testing.T) {
	eng := &stubEngine{panicWith: "HTMLCS is not defined"}
	res := Run(context.Background(), eng, defaultOptions())

	require.True(t, res.IsError())
	assert.Equal(t, "HTML CodeSniffer: HTMLCS is not defined", res.Err)
}

func TestRunAsync_DeliversOnce(t *testing.T) {
	eng := &stubEngine{messages: []finding.RawMessage{{Code: "a", Type: 2}}}
	ch := RunAsync(context.Background(), eng, defaultOptions())

	res, ok := <-ch
	require.True(t, ok)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, finding.TypeWarning, res.Messages[0].Type)

	_, ok = <-ch
	assert.False(t, ok, "channel is closed after the single result")
}

func TestRunAsync_Error(t *testing.T) {
	ch := RunAsync(context.Background(), &stubEngine{processErr: errors.New("Oopsie")}, defaultOptions())
	res := <-ch
	assert.Equal(t, "HTML CodeSniffer: Oopsie", res.Err)
	assert.Nil(t, res.Messages)
}

func TestCapture_RoundTrip(t *testing.T) {
	eng := &stubEngine{messages: []finding.RawMessage{
		{
			Code: "WCAG2AA.Principle2.Guideline2_4.2_4_2.H25.2",
			Element: &finding.ElementSnapshot{
				Outer: "<title>Page Title</title>",
				Inner: "Page Title",
				Path: selector.Path{
					{Tag: "TITLE", Index: 1, SameTag: 1},
					{Tag: "HEAD", Index: 1, SameTag: 1},
					{Tag: "HTML", Index: 1, SameTag: 1},
				},
			},
			Msg:  "Check that the title element describes the document.",
			Type: 3,
		},
		{Code: "no-element", Msg: "m", Type: 1},
	}}

	rec := NewRecorder(eng, "http://localhost/notices")
	live := Run(context.Background(), rec, Options{Standard: "WCAG2AA"})
	require.False(t, live.IsError())

	path := filepath.Join(t.TempDir(), "captures", "notices.yaml")
	require.NoError(t, SaveCapture(path, rec.Capture()))

	loaded, err := LoadCapture(path)
	require.NoError(t, err)
	assert.Equal(t, "HTML CodeSniffer", loaded.Engine)
	assert.Equal(t, "WCAG2AA", loaded.Standard)
	assert.Equal(t, "http://localhost/notices", loaded.URL)
	require.Len(t, loaded.Messages, 2)

	replayed := Run(context.Background(), NewReplay(loaded), Options{Standard: "WCAG2AA"})
	if diff := cmp.Diff(live, replayed); diff != "" {
		t.Errorf("replay mismatch (-live +replayed):\n%s", diff)
	}
	assert.Equal(t, "html > head > title", replayed.Messages[0].Selector)

	filtered := Run(context.Background(), NewReplay(loaded), Options{Ignore: normalize.ParseIgnoreList([]string{"notice"})})
	require.Len(t, filtered.Messages, 1)
	assert.Equal(t, "no-element", filtered.Messages[0].Code)
}

func TestCapture_RecordsFailure(t *testing.T) {
	rec := NewRecorder(&stubEngine{processErr: errors.New("Oopsie")}, "")
	res := Run(context.Background(), rec, defaultOptions())
	require.True(t, res.IsError())

	c := rec.Capture()
	assert.Equal(t, "Oopsie", c.Error)

	replayed := Run(context.Background(), NewReplay(c), defaultOptions())
	assert.Equal(t, res, replayed)
}

func TestLoadCapture_Errors(t *testing.T) {
	_, err := LoadCapture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, SaveCapture(path, &Capture{ID: "x"}))
	_, err = LoadCapture(path)
	assert.ErrorContains(t, err, "no engine name")
}

func fixtureCapture() *Capture {
	return &Capture{
		ID:       "cap-1",
		URL:      "http://localhost/errors",
		Engine:   "HTML CodeSniffer",
		Standard: "WCAG2AA",
		Messages: []CapturedMessage{
			{
				Code: "WCAG2AA.Principle3.Guideline3_1.3_1_1.H57.2",
				Type: 1,
				Msg:  "The html element should have a lang or xml:lang attribute.",
				Element: &finding.ElementSnapshot{
					Outer: "<html><head></head><body></body></html>",
					Inner: "<head></head><body></body>",
					Path:  selector.Path{{Tag: "HTML", Index: 1, SameTag: 1}},
				},
			},
			{Code: "warn-code", Type: 2, Msg: "w"},
			{Code: "notice-code", Type: 3, Msg: "n"},
		},
	}
}

func TestRerun_FiltersAfterNormalizing(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.InitializeWith(zap.New(core), logging.Config{})
	t.Cleanup(func() { logging.InitializeWith(zap.NewNop(), logging.Config{}) })

	c := fixtureCapture()
	opts := Options{Ignore: normalize.ParseIgnoreList([]string{"warning", "NOTICE-CODE"})}

	res := Rerun(context.Background(), c, opts)
	require.False(t, res.IsError())
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "html", res.Messages[0].Selector)
	assert.Equal(t, finding.TypeError, res.Messages[0].Type)

	viaRun := Run(context.Background(), NewReplay(c), Options{Standard: "WCAG2AA", Ignore: opts.Ignore})
	if diff := cmp.Diff(viaRun, res); diff != "" {
		t.Errorf("Rerun differs from Run (-run +rerun):\n%s", diff)
	}

	replays := logs.FilterField(zap.String("event", "replay")).All()
	require.Len(t, replays, 1)
	assert.Equal(t, int64(1), replays[0].ContextMap()["findings"])
	assert.Equal(t, int64(2), replays[0].ContextMap()["suppressed"])
	assert.Equal(t, "cap-1", replays[0].ContextMap()["run"])
}

func TestRerun_RecordedFailure(t *testing.T) {
	c := fixtureCapture()
	c.Error = "Oopsie"

	res := Rerun(context.Background(), c, Options{})
	require.True(t, res.IsError())
	assert.Equal(t, "HTML CodeSniffer: Oopsie", res.Err)
	assert.Nil(t, res.Messages)
}

func TestRerun_EmptyCaptureKeepsArray(t *testing.T) {
	c := fixtureCapture()
	c.Messages = nil

	res := Rerun(context.Background(), c, Options{Standard: "WCAG2AAA"})
	require.False(t, res.IsError())
	assert.NotNil(t, res.Messages)
	assert.Empty(t, res.Messages)
}
