// Package otel bridges the observe.Sink to OpenTelemetry tracing.
//
// It converts observe.Event records into OTel spans so that turns, tool
// executions, and provider streams are visible in any
// OpenTelemetry-compatible backend (Jaeger, Zipkin, Grafana, etc.).
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adpilot-ai/adpilot/observe"
)

const instrumentationName = "github.com/adpilot-ai/adpilot"

// Sink implements observe.Sink by emitting OpenTelemetry spans.
type Sink struct {
	tracer trace.Tracer
}

// NewSink creates an OTel sink using the given TracerProvider.
// If tp is nil, it uses a noop tracer provider.
func NewSink(tp trace.TracerProvider) *Sink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Sink{
		tracer: tp.Tracer(instrumentationName),
	}
}

// Emit converts an observe.Event into an OTel span.
func (s *Sink) Emit(_ context.Context, event observe.Event) error {
	event.Normalize()

	spanName := spanNameFor(event)
	ctx := context.Background()
	startTime := event.Timestamp

	_, span := s.tracer.Start(ctx, spanName, trace.WithTimestamp(startTime))

	attrs := []attribute.KeyValue{
		attribute.String("adpilot.event.kind", string(event.Kind)),
	}
	if event.TurnID != "" {
		attrs = append(attrs, attribute.String("adpilot.turn.id", event.TurnID))
	}
	if event.SessionID != "" {
		attrs = append(attrs, attribute.String("adpilot.session.id", event.SessionID))
	}
	if event.ConversationID != "" {
		attrs = append(attrs, attribute.String("adpilot.conversation.id", event.ConversationID))
	}
	if event.Provider != "" {
		attrs = append(attrs, attribute.String("adpilot.provider", event.Provider))
	}
	if event.Model != "" {
		attrs = append(attrs, attribute.String("adpilot.model", event.Model))
	}
	if event.ToolName != "" {
		attrs = append(attrs, attribute.String("adpilot.tool.name", event.ToolName))
	}
	if event.Name != "" {
		attrs = append(attrs, attribute.String("adpilot.event.name", event.Name))
	}
	if event.Status != "" {
		attrs = append(attrs, attribute.String("adpilot.status", string(event.Status)))
	}
	if event.Message != "" {
		attrs = append(attrs, attribute.String("adpilot.message", truncate(event.Message, 1024)))
	}
	if event.DurationMs > 0 {
		attrs = append(attrs, attribute.Int64("adpilot.duration_ms", event.DurationMs))
	}
	for k, v := range event.Attributes {
		attrs = append(attrs, attribute.String("adpilot.attr."+k, fmt.Sprintf("%v", v)))
	}

	span.SetAttributes(attrs...)

	if event.Status == observe.StatusFailed {
		span.SetStatus(codes.Error, event.Error)
		if event.Error != "" {
			span.RecordError(fmt.Errorf("%s", event.Error))
		}
	} else if event.Status == observe.StatusCompleted {
		span.SetStatus(codes.Ok, "")
	}

	endTime := startTime
	if event.DurationMs > 0 {
		endTime = startTime.Add(time.Duration(event.DurationMs) * time.Millisecond)
	}
	span.End(trace.WithTimestamp(endTime))
	return nil
}

func spanNameFor(event observe.Event) string {
	switch event.Kind {
	case observe.KindTurn:
		return "adpilot.turn"
	case observe.KindProvider:
		if event.Provider != "" {
			return "adpilot.llm." + event.Provider
		}
		return "adpilot.llm.stream"
	case observe.KindTool:
		if event.ToolName != "" {
			return "adpilot.tool." + event.ToolName
		}
		return "adpilot.tool.call"
	case observe.KindSession:
		return "adpilot.session.persist"
	case observe.KindMemory:
		return "adpilot.memory.append"
	default:
		if event.Name != "" {
			return "adpilot." + event.Name
		}
		return "adpilot.event"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
