package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// newTestTracer installs an in-memory tracer and restores the globals on
// cleanup.
func newTestTracer(t *testing.T, cfg Config) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})

	exp := tracetest.NewInMemoryExporter()
	tr, err := NewWithExporter(cfg, exp)
	if err != nil {
		t.Fatalf("NewWithExporter() failed: %v", err)
	}
	t.Cleanup(func() { tr.Shutdown(context.Background()) })
	return tr, exp
}

func TestNew_Disabled(t *testing.T) {
	tr, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if tr.Enabled() {
		t.Error("Enabled() = true for disabled config")
	}

	_, span := tr.Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracer produced a valid span context")
	}
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

func TestNewWithExporter_RecordsSpans(t *testing.T) {
	tr, exp := newTestTracer(t, Config{Sampler: SamplerAlways, ServiceName: "test"})

	ctx, span := tr.Start(context.Background(), "relay POST")
	if TraceID(ctx) == "" {
		t.Error("TraceID() empty inside a sampled span")
	}
	span.End()

	if err := tr.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() failed: %v", err)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "relay POST" {
		t.Fatalf("exported spans = %+v", spans)
	}
}

func TestNewWithExporter_NeverSampler(t *testing.T) {
	tr, exp := newTestTracer(t, Config{Sampler: SamplerNever})

	_, span := tr.Start(context.Background(), "dropped")
	span.End()
	tr.ForceFlush(context.Background())

	if n := len(exp.GetSpans()); n != 0 {
		t.Errorf("exported %d spans with never sampler", n)
	}
}

func TestValidateSampling(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{"", 1, false},
		{SamplerRatio, 1.5, true},
		{SamplerRatio, -0.1, true},
		{"sometimes", 0.5, true},
	}
	for _, tt := range tests {
		if err := ValidateSampling(tt.strategy, tt.ratio); (err != nil) != tt.wantErr {
			t.Errorf("ValidateSampling(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
		}
	}

	if _, err := NewWithExporter(Config{Sampler: "bogus"}, tracetest.NewInMemoryExporter()); err == nil {
		t.Error("NewWithExporter() accepted an invalid sampler")
	}
}

func TestPropagation_RoundTrip(t *testing.T) {
	tr, _ := newTestTracer(t, Config{Sampler: SamplerAlways})

	ctx, span := tr.Start(context.Background(), "client")
	defer span.End()

	h := http.Header{}
	h.Set("Traceparent", "00-00000000000000000000000000000001-0000000000000001-01")
	Inject(ctx, h)

	tp := h.Get("Traceparent")
	if !strings.Contains(tp, span.SpanContext().TraceID().String()) {
		t.Errorf("traceparent = %q, want trace id %s", tp, span.SpanContext().TraceID())
	}

	got := trace.SpanContextFromContext(Extract(context.Background(), h))
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Errorf("Extract() trace id = %s", got.TraceID())
	}
}

func TestHTTPMiddleware_ContinuesTrace(t *testing.T) {
	tr, exp := newTestTracer(t, Config{Sampler: SamplerAlways})

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, span := tr.Start(r.Context(), "child")
		span.End()
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	req.Header.Set("Traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	tr.ForceFlush(context.Background())
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if got := spans[0].SpanContext.TraceID().String(); got != traceID {
		t.Errorf("child trace id = %s, want %s", got, traceID)
	}
	if spans[0].Parent.SpanID().String() != "00f067aa0ba902b7" {
		t.Errorf("parent span id = %s", spans[0].Parent.SpanID())
	}
}

var _ sdktrace.SpanExporter = (*tracetest.InMemoryExporter)(nil)
