package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jkaninda/zunguka/internal/config"
	"github.com/jkaninda/zunguka/internal/llm"
)

// --- No-op Path ---

func TestNew_NilConfig(t *testing.T) {
	obs, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if obs != nil {
		t.Fatal("expected nil Observability for nil config")
	}
}

func TestNew_AllDisabled(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if obs == nil {
		t.Fatal("expected non-nil Observability")
	}
	if obs.Metrics != nil {
		t.Error("metrics should be nil when not enabled")
	}
	if obs.Tracer != nil {
		t.Error("tracer should be nil when not enabled")
	}
}

func TestNew_MetricsEnabled(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{
		Metrics: &config.MetricsConfig{Enabled: true},
	}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if obs.Metrics == nil {
		t.Fatal("expected non-nil MetricsCollector")
	}
}

func TestObservability_ShutdownNil(t *testing.T) {
	// Should not panic.
	var obs *Observability
	obs.Shutdown(context.Background())
}

func TestTracerOrNil_Nil(t *testing.T) {
	var obs *Observability
	if obs.TracerOrNil() != nil {
		t.Error("expected nil tracer from nil Observability")
	}
	if obs.MetricsOrNil() != nil {
		t.Error("expected nil metrics from nil Observability")
	}
}

// --- MetricsCollector ---

func TestMetricsCollector_Created(t *testing.T) {
	m := NewMetricsCollector()
	if m == nil {
		t.Fatal("expected non-nil MetricsCollector")
	}
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}

	// Initialize some metrics so they appear in Gather (CounterVec only appears after first use).
	m.LLMRequestsTotal.WithLabelValues("gemini", "success").Inc()
	m.KeyPoolSize.WithLabelValues("gemini").Set(3)
	m.RateLimitRetriesTotal.WithLabelValues("gemini").Inc()
	m.ChatTurnsTotal.WithLabelValues("gemini", "success").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"zunguka_llm_requests_total",
		"zunguka_keypool_size",
		"zunguka_keypool_rate_limit_retries_total",
		"zunguka_chat_turns_total",
	} {
		if !names[expected] {
			t.Errorf("metric %q not found in registry", expected)
		}
	}
}

func TestMetricsCollector_RecordAndGather(t *testing.T) {
	m := NewMetricsCollector()

	m.LLMRequestsTotal.WithLabelValues("gemini", "success").Inc()
	m.LLMRequestsTotal.WithLabelValues("gemini", "success").Inc()
	m.LLMRequestsTotal.WithLabelValues("gemini", "error").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "zunguka_llm_requests_total" {
			found = true
			for _, metric := range f.GetMetric() {
				labels := labelMap(metric.GetLabel())
				if labels["status"] == "success" {
					if got := metric.GetCounter().GetValue(); got != 2 {
						t.Errorf("success count = %v, want 2", got)
					}
				}
				if labels["status"] == "error" {
					if got := metric.GetCounter().GetValue(); got != 1 {
						t.Errorf("error count = %v, want 1", got)
					}
				}
			}
		}
	}
	if !found {
		t.Error("zunguka_llm_requests_total not found")
	}
}

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string)
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

// --- InstrumentedProvider (wrapper) ---

type mockProvider struct {
	name   string
	resp   *llm.Response
	err    error
	called int
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) SendMessage(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.called++
	return m.resp, m.err
}

func TestInstrumentedProvider_Success(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockProvider{
		name: "test",
		resp: &llm.Response{
			Content: "hello",
			Usage:   llm.Usage{InputTokens: 10, OutputTokens: 20},
		},
	}

	p := NewInstrumentedProvider(inner, metrics, nil)
	resp, err := p.SendMessage(context.Background(), &llm.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("content = %q, want hello", resp.Content)
	}
	if inner.called != 1 {
		t.Errorf("inner called %d times, want 1", inner.called)
	}

	val := counterValue(t, metrics.Registry, "zunguka_llm_requests_total", prometheus.Labels{"provider": "test", "status": "success"})
	if val != 1 {
		t.Errorf("requests_total = %v, want 1", val)
	}

	inputTokens := counterValue(t, metrics.Registry, "zunguka_llm_tokens_used_total", prometheus.Labels{"provider": "test", "direction": "input"})
	if inputTokens != 10 {
		t.Errorf("input tokens = %v, want 10", inputTokens)
	}
}

func TestInstrumentedProvider_Error(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockProvider{
		name: "test",
		err:  errors.New("api error"),
	}

	p := NewInstrumentedProvider(inner, metrics, nil)
	_, err := p.SendMessage(context.Background(), &llm.Request{})
	if err == nil {
		t.Fatal("expected error")
	}

	val := counterValue(t, metrics.Registry, "zunguka_llm_requests_total", prometheus.Labels{"provider": "test", "status": "error"})
	if val != 1 {
		t.Errorf("error requests_total = %v, want 1", val)
	}
}

func TestInstrumentedProvider_NilMetrics(t *testing.T) {
	inner := &mockProvider{
		name: "test",
		resp: &llm.Response{Content: "ok"},
	}

	// nil metrics should not panic.
	p := NewInstrumentedProvider(inner, nil, nil)
	resp, err := p.SendMessage(context.Background(), &llm.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q, want ok", resp.Content)
	}
}

// --- Helpers ---

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			lm := labelMap(metric.GetLabel())
			match := true
			for k, v := range labels {
				if lm[k] != v {
					match = false
					break
				}
			}
			if match {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
