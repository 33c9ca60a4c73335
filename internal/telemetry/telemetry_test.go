package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/carta/internal/config"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), config.OTELConfig{ServiceName: "test-carta", SampleRate: 1.0})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func TestNewProvider_Disabled(t *testing.T) {
	p := newTestProvider(t)
	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Meter())
	assert.NotNil(t, p.Registry())
}

func TestNewProvider_WithEndpoint(t *testing.T) {
	cfg := config.OTELConfig{
		Endpoint:    "localhost:4317",
		Insecure:    true,
		ServiceName: "test-carta",
		SampleRate:  1.0,
	}

	// Provider setup should succeed even without a real collector
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func metricNames(t *testing.T, p *Provider) []string {
	t.Helper()
	families, err := p.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return names
}

func hasPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func TestRecordMetrics(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	p.RecordDiscovered(ctx, "direct", "")
	p.RecordGap(ctx, "Microsoft.Cache/redis")
	p.RecordGeneration(ctx, nil)
	p.RecordGeneration(ctx, errors.New("boom"))
	p.RecordRunDuration(ctx, "ok", 2*time.Second)

	names := metricNames(t, p)
	for _, prefix := range []string{
		"carta_resources_discovered",
		"carta_resolution_gaps",
		"carta_generation_calls",
		"carta_run_duration",
	} {
		assert.True(t, hasPrefix(names, prefix), "missing %s in %v", prefix, names)
	}
}

func TestPush(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestProvider(t)
	p.RecordDiscovered(context.Background(), "group", "sub-1")

	require.NoError(t, p.Push(context.Background(), srv.URL, "carta", "run-42"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/carta/run_id/run-42", path)
}

func TestPush_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestProvider(t)
	err := p.Push(context.Background(), srv.URL, "carta", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}

func TestProvider_StartSpan(t *testing.T) {
	p := newTestProvider(t)
	ctx, span := p.StartSpan(context.Background(), "run")
	require.NotNil(t, ctx)
	span.End()
}

func TestNewLogger_JSONLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogOptions{Service: "carta", Level: "warn", Format: "json", Output: &buf})

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "carta", entry["service"])
}

func TestNewLogger_BadLevelDefaultsToInfo(t *testing.T) {
	l := NewLogger(LogOptions{Level: "loud", Format: "json", Output: &bytes.Buffer{}})
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestOTELHook_AddsTraceIDs(t *testing.T) {
	p := newTestProvider(t)
	ctx, span := p.StartSpan(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	l := WithContext(NewLogger(LogOptions{Format: "json", Output: &buf}), ctx)
	l.Info().Msg("with span")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	// the span is only recorded when a sampler is active; the ids are
	// present whenever the span context is valid
	if span.SpanContext().IsValid() {
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	}
}
