package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/shelfmarket/api/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("order_not_found", "order\nnot found", http.StatusNotFound).
		WithRequestID("req-1").
		WithDetails(map[string]any{"orderId": "ord_1"}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %s", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		"error":      "order_not_found",
		"message":    "order not found",
		"status":     float64(http.StatusNotFound),
		"request_id": "req-1",
		"trace_id":   "trace-1",
	}
	for key, value := range want {
		if body[key] != value {
			t.Fatalf("expected %s=%v, got %v", key, value, body[key])
		}
	}
	details, ok := body["details"].(map[string]any)
	if !ok || details["orderId"] != "ord_1" {
		t.Fatalf("expected nested details, got %v", body["details"])
	}
}

func TestWriteErrorTakesRequestIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-ctx")
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("cart_conflict", "cart changed", http.StatusConflict))

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["request_id"] != "req-ctx" {
		t.Fatalf("expected request id from context, got %v", body["request_id"])
	}
	if _, ok := body["trace_id"]; ok {
		t.Fatalf("expected trace_id to be omitted, got %v", body["trace_id"])
	}
	if _, ok := body["details"]; ok {
		t.Fatalf("expected details to be omitted, got %v", body["details"])
	}
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	if err := NewError("x", "y", 0); err.Status != http.StatusInternalServerError {
		t.Fatalf("expected default 500, got %d", err.Status)
	}
}

func TestNewErrorClipsOnRuneBoundary(t *testing.T) {
	message := strings.Repeat("a", maxMessageLen-1) + "é"
	err := NewError("x", message, http.StatusBadRequest)
	if !utf8.ValidString(err.Message) {
		t.Fatalf("clipped message is not valid utf-8")
	}
	if len(err.Message) != maxMessageLen-1 {
		t.Fatalf("expected multibyte rune to be dropped, got length %d", len(err.Message))
	}
}

func TestWriteErrorPrefersExplicitTraceID(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "from-ctx"})
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("unavailable", "try later", http.StatusServiceUnavailable).WithTraceID("explicit"))

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["trace_id"] != "explicit" {
		t.Fatalf("expected explicit trace id, got %v", body["trace_id"])
	}
}
