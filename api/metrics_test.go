package api

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func TestBoardRequestMetricsSpan(t *testing.T) {
	recorder := withSpanRecorder(t)

	m, ctx := newBoardRequestMetrics(context.Background(), log.New(), "/tasks")
	if ctx == nil {
		t.Fatal("expected a span context when a tracer provider is installed")
	}
	m.ObserveAuth(time.Millisecond)
	m.ObserveFetch(2 * time.Millisecond)
	m.SetTasksReturned(4)
	m.Log(200, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "board.request" {
		t.Fatalf("unexpected span name %q", span.Name())
	}
	found := false
	for _, attr := range span.Attributes() {
		if attr.Key == attribute.Key("route") && attr.Value.AsString() == "/tasks" {
			found = true
		}
	}
	if !found {
		t.Fatalf("route attribute missing: %#v", span.Attributes())
	}
	if span.Status().Code == codes.Error {
		t.Fatal("successful request must not mark the span as error")
	}
}

func TestBoardRequestMetricsSpanError(t *testing.T) {
	recorder := withSpanRecorder(t)

	m, _ := newBoardRequestMetrics(context.Background(), log.New(), "/tasksUpdateOrder")
	m.SetErrorStage("storage")
	m.Log(500, errors.New("boom"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status())
	}
}

func TestBoardRequestMetricsWithoutTracer(t *testing.T) {
	// The default provider yields non-recording spans; metrics must still
	// log without a span context.
	m, ctx := newBoardRequestMetrics(context.Background(), log.New(), "/tasks")
	if ctx != nil {
		t.Fatal("expected nil span context without a tracer provider")
	}
	m.Log(200, nil)
}

func TestNextTimestampMonotonic(t *testing.T) {
	prev := nextTimestamp()
	for i := 0; i < 1000; i++ {
		ts := nextTimestamp()
		if ts <= prev {
			t.Fatalf("timestamps not strictly increasing: %d then %d", prev, ts)
		}
		prev = ts
	}
}
