package observability

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/shelfmarket/api/internal/platform/requestctx"
)

const cloudTraceHeader = "X-Cloud-Trace-Context"

var tracer = otel.Tracer("github.com/shelfmarket/api/internal/platform/observability")

// cloudTrace is the decoded form of X-Cloud-Trace-Context: TRACE_ID/SPAN_ID;o=OPTIONS.
type cloudTrace struct {
	traceID trace.TraceID
	spanID  trace.SpanID
	sampled bool
}

func (c cloudTrace) spanContext() trace.SpanContext {
	var flags trace.TraceFlags
	if c.sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    c.traceID,
		SpanID:     c.spanID,
		TraceFlags: flags,
		Remote:     true,
	})
}

// String renders the header value. The span id is decimal as Cloud Trace expects.
func (c cloudTrace) String() string {
	option := 0
	if c.sampled {
		option = 1
	}
	return fmt.Sprintf("%s/%d;o=%d", c.traceID, binary.BigEndian.Uint64(c.spanID[:]), option)
}

// TraceMiddleware starts the server span for each request, continuing the caller's trace when
// X-Cloud-Trace-Context is valid. The span is renamed to the matched route once routing completes.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if incoming, ok := parseCloudTrace(r.Header.Get(cloudTraceHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, incoming.spanContext())
			}

			ctx, span := tracer.Start(ctx, r.Method+" "+SanitizeRoute(r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r)...),
			)
			defer span.End()

			sc := span.SpanContext()
			outgoing := cloudTrace{traceID: sc.TraceID(), spanID: sc.SpanID(), sampled: sc.IsSampled()}
			ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{
				TraceID:   sc.TraceID().String(),
				SpanID:    sc.SpanID().String(),
				Sampled:   sc.IsSampled(),
				ProjectID: projectID,
			})
			if sc.IsValid() {
				w.Header().Set(cloudTraceHeader, outgoing.String())
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(ctx)
			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			if route := routePattern(r); route != "" {
				span.SetName(r.Method + " " + route)
				span.SetAttributes(semconv.HTTPRoute(route))
			}
			span.SetAttributes(semconv.HTTPResponseStatusCode(status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}

func parseCloudTrace(header string) (cloudTrace, bool) {
	traceHex, rest, found := strings.Cut(strings.TrimSpace(header), "/")
	if !found || len(traceHex) != 32 {
		return cloudTrace{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return cloudTrace{}, false
	}

	spanPart, options, _ := strings.Cut(rest, ";")
	spanID, ok := parseSpanID(spanPart)
	if !ok {
		return cloudTrace{}, false
	}

	sampled := false
	for _, option := range strings.Split(options, ";") {
		if value, ok := strings.CutPrefix(strings.TrimSpace(option), "o="); ok {
			sampled = value == "1"
			break
		}
	}
	return cloudTrace{traceID: traceID, spanID: spanID, sampled: sampled}, true
}

// parseSpanID accepts the decimal span id Cloud Trace sends and the 16 digit hex form some proxies
// rewrite it to. Decimal ids never carry a leading zero, so a 16 character value starting with 0 is
// read as hex even when it holds only digits.
func parseSpanID(value string) (trace.SpanID, bool) {
	value = strings.TrimSpace(value)
	if len(value) == 16 && (value[0] == '0' || strings.ContainsAny(value, "abcdefABCDEF")) {
		spanID, err := trace.SpanIDFromHex(strings.ToLower(value))
		return spanID, err == nil && spanID.IsValid()
	}
	if value == "" || value[0] == '0' {
		return trace.SpanID{}, false
	}
	num, err := strconv.ParseUint(value, 10, 64)
	if err != nil || num == 0 {
		return trace.SpanID{}, false
	}
	var spanID trace.SpanID
	binary.BigEndian.PutUint64(spanID[:], num)
	return spanID, true
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.URLScheme(scheme),
		semconv.URLPath(SanitizeRoute(r.URL.Path)),
	}
	if r.Host != "" {
		attrs = append(attrs, semconv.ServerAddress(r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.UserAgentOriginal(sanitizeString(ua, 256)))
	}
	return attrs
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	return http.StatusOK
}
