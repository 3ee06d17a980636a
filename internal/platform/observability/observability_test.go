package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shelfmarket/api/internal/platform/requestctx"
)

func TestParseCloudTrace(t *testing.T) {
	parsed, ok := parseCloudTrace("105445aa7843bc8bf206b12000100000/12345;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if parsed.traceID.String() != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace id %s", parsed.traceID)
	}
	if parsed.spanID.String() != "0000000000003039" {
		t.Fatalf("expected decimal span id to map to hex, got %s", parsed.spanID)
	}
	sc := parsed.spanContext()
	if !parsed.sampled || !sc.IsSampled() || !sc.IsRemote() {
		t.Fatalf("expected sampled remote span context")
	}
	if hexForm, ok := parseCloudTrace("105445aa7843bc8bf206b12000100000/0000000000003039"); !ok || hexForm.spanID != parsed.spanID || hexForm.sampled {
		t.Fatalf("expected hex span id without options to parse unsampled")
	}

	for _, header := range []string{"", "bad", "105445aa7843bc8bf206b12000100000/", "short/1;o=1", "105445aa7843bc8bf206b12000100000/0", "105445aa7843bc8bf206b12000100000/0000000000000000"} {
		if _, ok := parseCloudTrace(header); ok {
			t.Fatalf("expected %q to be rejected", header)
		}
	}
}

func TestParseSpanIDForms(t *testing.T) {
	cases := map[string]string{
		"12345":            "0000000000003039",
		"0000000000003039": "0000000000003039",
		"00f067aa0ba902b7": "00f067aa0ba902b7",
		"A2FB4A1D1A96D312": "a2fb4a1d1a96d312",
		"1234567890123456": "000462d53c8abac0",
	}
	for input, want := range cases {
		spanID, ok := parseSpanID(input)
		if !ok {
			t.Fatalf("expected %q to parse", input)
		}
		if spanID.String() != want {
			t.Fatalf("span %q: expected %s, got %s", input, want, spanID)
		}
	}
	for _, input := range []string{"", "0", "012", "-5", "zz", "18446744073709551616"} {
		if _, ok := parseSpanID(input); ok {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestCloudTraceStringRoundTrips(t *testing.T) {
	const header = "105445aa7843bc8bf206b12000100000/12345;o=1"
	parsed, ok := parseCloudTrace(header)
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if got := parsed.String(); got != header {
		t.Fatalf("unexpected header %s", got)
	}
}

func TestTraceMiddlewareContinuesIncomingTrace(t *testing.T) {
	const header = "105445aa7843bc8bf206b12000100000/12345;o=1"
	var seen requestctx.TraceInfo
	router := chi.NewRouter()
	router.Use(TraceMiddleware("shelf"))
	router.Get("/orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestctx.Trace(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_1", nil)
	req.Header.Set(cloudTraceHeader, header)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if seen.TraceID != "105445aa7843bc8bf206b12000100000" || seen.ProjectID != "shelf" {
		t.Fatalf("unexpected trace info %+v", seen)
	}
	if seen.LoggingResource() != "projects/shelf/traces/105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected logging resource %s", seen.LoggingResource())
	}
	if got := rr.Header().Get(cloudTraceHeader); got != header {
		t.Fatalf("expected trace header echoed, got %q", got)
	}
}

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	fallbackCore, fallbackLogs := observer.New(zapcore.InfoLevel)
	requestCore, requestLogs := observer.New(zapcore.InfoLevel)

	hook := EventLogger(zap.New(fallbackCore))
	hook(context.Background(), "cart.item.added", map[string]any{"buyer": "b1"})

	ctx := requestctx.WithLogger(context.Background(), zap.New(requestCore))
	hook(ctx, "checkout.failed", map[string]any{"buyer": "b1", "error": "boom"})

	if fallbackLogs.Len() != 1 || fallbackLogs.All()[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected one info entry on fallback logger, got %v", fallbackLogs.All())
	}
	entries := requestLogs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry on request logger, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for failures, got %s", entries[0].Level)
	}
	if entries[0].ContextMap()["event"] != "checkout.failed" {
		t.Fatalf("expected event field, got %v", entries[0].ContextMap())
	}
}

func TestRequestLoggerMiddlewareLogsRoutePattern(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(zap.New(core)), RequestLoggerMiddleware())
	router.Get("/orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/ord_1", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected a single completion line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/orders/{orderId}" {
		t.Fatalf("expected route pattern, got %v", fields["route"])
	}
	if fields["status"] != int64(http.StatusConflict) {
		t.Fatalf("expected status 409, got %v", fields["status"])
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn for 4xx, got %s", entries[0].Level)
	}
}

func TestRecoveryMiddlewareAnswers500(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestSanitizeRoute(t *testing.T) {
	if got := SanitizeRoute(""); got != "unmatched" {
		t.Fatalf("expected unmatched, got %q", got)
	}
	if got := SanitizeRoute("/orders/\x00{orderId}\n"); got != "/orders/{orderId}" {
		t.Fatalf("expected control characters dropped, got %q", got)
	}
	if got := SanitizeMethod("get"); got != "GET" {
		t.Fatalf("expected upper-cased method, got %q", got)
	}
}
