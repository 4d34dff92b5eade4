package logging

import (
	"go.uber.org/zap"
)

// AuditEventType names one step of a page scan.
type AuditEventType string

const (
	AuditScanStart    AuditEventType = "scan_start"
	AuditScanComplete AuditEventType = "scan_complete"
	AuditScanError    AuditEventType = "scan_error"
	AuditReplay       AuditEventType = "replay"
)

// AuditEvent is one structured audit record.
type AuditEvent struct {
	EventType  AuditEventType
	RunID      string
	URL        string
	Engine     string
	Standard   string
	Findings   int
	Suppressed int
	DurationMs int64
	Error      string
}

func (e AuditEvent) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("event", string(e.EventType)),
		zap.String("run", e.RunID),
	}
	if e.URL != "" {
		fields = append(fields, zap.String("url", e.URL))
	}
	if e.Engine != "" {
		fields = append(fields, zap.String("engine", e.Engine))
	}
	if e.Standard != "" {
		fields = append(fields, zap.String("standard", e.Standard))
	}
	switch e.EventType {
	case AuditScanComplete, AuditReplay:
		fields = append(fields,
			zap.Int("findings", e.Findings),
			zap.Int("suppressed", e.Suppressed),
			zap.Int64("dur_ms", e.DurationMs))
	case AuditScanError:
		fields = append(fields,
			zap.String("error", e.Error),
			zap.Int64("dur_ms", e.DurationMs))
	}
	return fields
}

// AuditLogger writes scan audit events to the audit category.
type AuditLogger struct {
	runID string
	url   string
}

// Audit returns an audit logger bound to one run.
func Audit(runID, url string) *AuditLogger {
	return &AuditLogger{runID: runID, url: url}
}

// Log writes an event. Scan errors are logged at warn, everything else at info.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsCategoryEnabled(CategoryAudit) {
		return
	}
	if event.RunID == "" {
		event.RunID = a.runID
	}
	if event.URL == "" {
		event.URL = a.url
	}
	l := Root().Named(string(CategoryAudit))
	if event.EventType == AuditScanError {
		l.Warn("scan audit", event.fields()...)
		return
	}
	l.Info("scan audit", event.fields()...)
}

// ScanStart records the start of a page scan.
func (a *AuditLogger) ScanStart(engine, standard string) {
	a.Log(AuditEvent{EventType: AuditScanStart, Engine: engine, Standard: standard})
}

// ScanComplete records a successful scan.
func (a *AuditLogger) ScanComplete(engine string, findings, suppressed int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditScanComplete,
		Engine:     engine,
		Findings:   findings,
		Suppressed: suppressed,
		DurationMs: durationMs,
	})
}

// Replay records a capture normalized again without a browser.
func (a *AuditLogger) Replay(engine string, findings, suppressed int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditReplay,
		Engine:     engine,
		Findings:   findings,
		Suppressed: suppressed,
		DurationMs: durationMs,
	})
}

// ScanError records a failed scan.
func (a *AuditLogger) ScanError(engine, errMsg string, durationMs int64) {
	a.Log(AuditEvent{EventType: AuditScanError, Engine: engine, Error: errMsg, DurationMs: durationMs})
}
