package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"a11yscan/internal/finding"
	"a11yscan/internal/logging"
	"a11yscan/internal/normalize"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// CapturedMessage is the persisted form of a RawMessage.
type CapturedMessage struct {
	Code    string                   `yaml:"code"`
	Type    int                      `yaml:"type"`
	Msg     string                   `yaml:"msg"`
	Element *finding.ElementSnapshot `yaml:"element,omitempty"`
}

// Capture is a recorded engine run for one page.
type Capture struct {
	ID         string            `yaml:"id"`
	URL        string            `yaml:"url,omitempty"`
	Engine     string            `yaml:"engine"`
	Standard   string            `yaml:"standard"`
	CapturedAt time.Time         `yaml:"captured_at"`
	Error      string            `yaml:"error,omitempty"`
	Messages   []CapturedMessage `yaml:"messages"`
}

// SaveCapture writes c to path as YAML.
func SaveCapture(path string, c *Capture) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create capture directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal capture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}
	logging.CaptureDebug("wrote capture %s (%d messages) to %s", c.ID, len(c.Messages), path)
	return nil
}

// LoadCapture reads a capture written by SaveCapture.
func LoadCapture(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	var c Capture
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse capture: %w", err)
	}
	if c.Engine == "" {
		return nil, errors.New("capture has no engine name")
	}
	return &c, nil
}

// Recorder forwards to an engine and keeps what it returned.
type Recorder struct {
	eng      Engine
	url      string
	mu       sync.Mutex
	standard string
	messages []finding.RawMessage
	err      error
}

// NewRecorder wraps eng. url is stored in the capture for reference.
func NewRecorder(eng Engine, url string) *Recorder {
	return &Recorder{eng: eng, url: url}
}

func (r *Recorder) Name() string { return r.eng.Name() }

func (r *Recorder) Process(ctx context.Context, standard string) error {
	err := r.eng.Process(ctx, standard)
	r.mu.Lock()
	r.standard = standard
	r.err = err
	r.mu.Unlock()
	return err
}

func (r *Recorder) Messages(ctx context.Context) ([]finding.RawMessage, error) {
	msgs, err := r.eng.Messages(ctx)
	r.mu.Lock()
	r.messages = msgs
	r.err = err
	r.mu.Unlock()
	return msgs, err
}

// Capture returns what has been recorded so far. Elements that are not
// snapshots are stored without an element.
func (r *Recorder) Capture() *Capture {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Capture{
		ID:         uuid.NewString(),
		URL:        r.url,
		Engine:     r.eng.Name(),
		Standard:   r.standard,
		CapturedAt: time.Now().UTC(),
		Messages:   make([]CapturedMessage, 0, len(r.messages)),
	}
	if r.err != nil {
		c.Error = message(r.err)
	}
	for _, m := range r.messages {
		cm := CapturedMessage{Code: m.Code, Type: m.Type, Msg: m.Msg}
		if snap, ok := m.Element.(*finding.ElementSnapshot); ok {
			cm.Element = snap
		}
		c.Messages = append(c.Messages, cm)
	}
	return c
}

// Replay serves a capture as an engine.
type Replay struct {
	capture *Capture
}

// NewReplay returns an engine that reproduces c.
func NewReplay(c *Capture) *Replay {
	return &Replay{capture: c}
}

func (r *Replay) Name() string { return r.capture.Engine }

// Process succeeds unless the capture recorded an engine failure.
func (r *Replay) Process(ctx context.Context, standard string) error {
	if r.capture.Error != "" {
		return replayError(r.capture.Error)
	}
	if standard != "" && r.capture.Standard != "" && standard != r.capture.Standard {
		logging.Get(logging.CategoryCapture).Warn("replaying %s capture as %s", r.capture.Standard, standard)
	}
	return nil
}

func (r *Replay) Messages(ctx context.Context) ([]finding.RawMessage, error) {
	out := make([]finding.RawMessage, 0, len(r.capture.Messages))
	for _, m := range r.capture.Messages {
		raw := finding.RawMessage{Code: m.Code, Type: m.Type, Msg: m.Msg}
		if m.Element != nil {
			raw.Element = m.Element
		}
		out = append(out, raw)
	}
	return out, nil
}

// Rerun normalizes a capture again. Findings are normalized without
// suppression first and opts.Ignore is applied afterwards, so the audit
// record shows how many findings the new list drops. An empty opts.Standard
// means the captured one.
func Rerun(ctx context.Context, c *Capture, opts Options) finding.Result {
	rp := NewReplay(c)
	audit := logging.Audit(c.ID, c.URL)
	start := time.Now()

	standard := opts.Standard
	if standard == "" {
		standard = c.Standard
	}
	if err := rp.Process(ctx, standard); err != nil {
		res := failure(rp.Name(), err)
		audit.ScanError(rp.Name(), res.Err, time.Since(start).Milliseconds())
		return res
	}

	raw, err := rp.Messages(ctx)
	if err != nil {
		return failure(rp.Name(), err)
	}
	all := normalize.Normalize(raw, normalize.IgnoreList{})
	kept := opts.Ignore.Filter(all)
	audit.Replay(rp.Name(), len(kept), len(all)-len(kept), time.Since(start).Milliseconds())
	return finding.Result{Messages: kept}
}

// replayError carries the recorded engine message verbatim.
type replayError string

func (e replayError) Error() string         { return string(e) }
func (e replayError) EngineMessage() string { return string(e) }
