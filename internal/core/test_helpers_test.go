package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fungiatlas/internal/atlasdata"
	"fungiatlas/internal/content"
)

func defaultDoc(t *testing.T) content.Document {
	t.Helper()
	doc, err := atlasdata.Default()
	require.NoError(t, err)
	return doc
}

func loadDefault(t *testing.T) *Dataset {
	t.Helper()
	ds, err := LoadDataset(context.Background(), defaultDoc(t))
	require.NoError(t, err)
	return ds
}

// tinyDoc is a three species atlas with one ambiguous edge feature.
func tinyDoc() content.Document {
	return content.Document{
		Version: "tiny",
		Features: []content.FeatureRow{
			{Name: "cap_color", Values: []string{"red", "brown", "white"}},
			{Name: "gill_color", Values: []string{"white", "brown"}},
			{Name: "ring_present", Values: []string{"true", "false"}},
		},
		Species: []content.SpeciesRow{
			{
				ScientificName: "Alpha one",
				Edibility:      "edible",
				Features:       map[string]string{"cap_color": "red", "gill_color": "white", "ring_present": "true"},
				Season:         &content.SeasonRow{From: 6, To: 9},
				Habitat:        []string{"forest"},
			},
			{
				ScientificName: "Beta two",
				Edibility:      "poisonous",
				Features:       map[string]string{"cap_color": "brown", "gill_color": "white", "ring_present": "false"},
				Season:         &content.SeasonRow{From: 10, To: 2},
				Habitat:        []string{"meadow"},
			},
			{
				ScientificName: "Gamma three",
				Synonyms:       []string{"Gamma olim"},
				Edibility:      "deadly",
				Features:       map[string]string{"cap_color": "white", "gill_color": "brown", "ring_present": "unknown"},
				Season:         &content.SeasonRow{From: 7, To: 8},
				Habitat:        []string{"forest"},
			},
		},
		Edges: []content.EdgeRow{
			{A: "alpha-one", B: "beta-two", Features: []string{"gill_color", "cap_color"}},
			{A: "Gamma olim", B: "alpha-one", Features: []string{"cap_color"}, Note: "gamma is pale"},
		},
	}
}

func fixedClock(ts time.Time) Clock {
	return ClockFunc(func() time.Time { return ts })
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level   string
	msg     string
	keyvals []any
}

func (l *captureLogger) add(level, msg string, keyvals []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, keyvals: keyvals})
}

func (l *captureLogger) Debug(msg string, keyvals ...any) { l.add("debug", msg, keyvals) }
func (l *captureLogger) Info(msg string, keyvals ...any)  { l.add("info", msg, keyvals) }
func (l *captureLogger) Warn(msg string, keyvals ...any)  { l.add("warn", msg, keyvals) }
func (l *captureLogger) Error(msg string, keyvals ...any) { l.add("error", msg, keyvals) }

func (l *captureLogger) find(level, msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

func (e logEntry) value(key string) any {
	for i := 0; i+1 < len(e.keyvals); i += 2 {
		if e.keyvals[i] == key {
			return e.keyvals[i+1]
		}
	}
	return nil
}

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *captureAudit) Record(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

type metricCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricCall
}

func (m *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricCall{op: op, success: success})
}

type captureTracer struct {
	mu    sync.Mutex
	ops   []string
	ended []error
}

type captureSpan struct {
	tracer *captureTracer
}

func (t *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = append(t.ops, op)
	return ctx, captureSpan{tracer: t}
}

func (s captureSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.ended = append(s.tracer.ended, err)
}

// swapSource serves whatever document or error it currently holds.
type swapSource struct {
	mu  sync.Mutex
	doc content.Document
	err error
}

func (s *swapSource) Name() string { return "swap" }

func (s *swapSource) Fetch(ctx context.Context) (content.Document, error) {
	if err := ctx.Err(); err != nil {
		return content.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), s.err
}

func (s *swapSource) set(doc content.Document, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc, s.err = doc, err
}

func contentEdge(a, b string, features ...string) content.EdgeRow {
	return content.EdgeRow{A: a, B: b, Features: features}
}
