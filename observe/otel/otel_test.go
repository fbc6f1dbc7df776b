package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/adpilot-ai/adpilot/observe"
)

func TestSinkEmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	sink := NewSink(tp)

	now := time.Now()
	err := sink.Emit(context.Background(), observe.Event{
		Kind:       observe.KindTurn,
		TurnID:     "turn-123",
		SessionID:  "sess-456",
		Status:     observe.StatusCompleted,
		Timestamp:  now,
		DurationMs: 150,
	})
	if err != nil {
		t.Fatal(err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if span.Name != "adpilot.turn" {
		t.Errorf("expected span name 'adpilot.turn', got %q", span.Name)
	}

	attrMap := attrToMap(span.Attributes)
	if v, ok := attrMap["adpilot.turn.id"]; !ok || v != "turn-123" {
		t.Errorf("missing or wrong adpilot.turn.id: %v", attrMap)
	}
	if v, ok := attrMap["adpilot.session.id"]; !ok || v != "sess-456" {
		t.Errorf("missing or wrong adpilot.session.id: %v", attrMap)
	}
}

func TestSpanNaming(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	sink := NewSink(tp)
	now := time.Now()

	tests := []struct {
		event    observe.Event
		wantName string
	}{
		{observe.Event{Kind: observe.KindProvider, Provider: "anthropic", Timestamp: now}, "adpilot.llm.anthropic"},
		{observe.Event{Kind: observe.KindTool, ToolName: "manage_campaign", Timestamp: now}, "adpilot.tool.manage_campaign"},
		{observe.Event{Kind: observe.KindSession, Timestamp: now}, "adpilot.session.persist"},
		{observe.Event{Kind: observe.KindMemory, Timestamp: now}, "adpilot.memory.append"},
		{observe.Event{Kind: observe.KindCustom, Name: "budget_guard", Timestamp: now}, "adpilot.budget_guard"},
	}

	for _, tt := range tests {
		exporter.Reset()
		sink.Emit(context.Background(), tt.event)
		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Errorf("expected 1 span for %s, got %d", tt.wantName, len(spans))
			continue
		}
		if spans[0].Name != tt.wantName {
			t.Errorf("expected span name %q, got %q", tt.wantName, spans[0].Name)
		}
	}
}

func TestSinkErrorStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	sink := NewSink(tp)
	sink.Emit(context.Background(), observe.Event{
		Kind:      observe.KindTurn,
		Status:    observe.StatusFailed,
		Error:     "provider stream closed early",
		Timestamp: time.Now(),
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event recorded on span")
	}
}

func TestNilTracerProvider(t *testing.T) {
	sink := NewSink(nil)
	err := sink.Emit(context.Background(), observe.Event{
		Kind:      observe.KindTurn,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Errorf("expected no error with nil provider, got: %v", err)
	}
}

func attrToMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}
