package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shelfmarket/api/internal/platform/auth"
	"github.com/shelfmarket/api/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	anonymous         = "anonymous"
)

// DefaultMaxBodyBytes caps the request body buffered for fingerprinting. It matches the handlers'
// own request limit.
const DefaultMaxBodyBytes = 16 * 1024

var errBodyTooLarge = errors.New("idempotency: request body too large")

var defaultMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

type guard struct {
	store      Store
	headerName string
	ttl        time.Duration
	methods    []string
	clock      func() time.Time
	logger     *zap.Logger
	optional   bool
	maxBody    int64
}

type MiddlewareOption func(*guard)

// WithHeader sets the request header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.headerName = name
		}
	}
}

// WithTTL sets how long reservations and stored responses live.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithMethods replaces the guarded methods. Other methods pass straight through.
func WithMethods(methods ...string) MiddlewareOption {
	return func(g *guard) {
		var guarded []string
		for _, method := range methods {
			if method = strings.ToUpper(strings.TrimSpace(method)); method != "" {
				guarded = append(guarded, method)
			}
		}
		if len(guarded) > 0 {
			g.methods = guarded
		}
	}
}

func WithLogger(logger *zap.Logger) MiddlewareOption {
	return func(g *guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithOptionalKey lets requests without the header through unguarded instead of rejecting them.
func WithOptionalKey() MiddlewareOption {
	return func(g *guard) {
		g.optional = true
	}
}

// WithMaxBodyBytes caps the body read before the handler runs. Larger requests answer 413.
func WithMaxBodyBytes(limit int64) MiddlewareOption {
	return func(g *guard) {
		if limit > 0 {
			g.maxBody = limit
		}
	}
}

func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// Middleware makes guarded requests carrying a key run at most once per caller. A repeat with the
// same key and request replays the stored response with X-Idempotent-Replay set; a repeat while the
// first is still running, or with a different request, answers 409. Server errors are not stored so
// the client may retry with the same key.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:      store,
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		methods:    defaultMethods,
		clock:      time.Now,
		logger:     zap.NewNop(),
		maxBody:    DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

func (g *guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	if !slices.Contains(g.methods, r.Method) {
		next.ServeHTTP(w, r)
		return
	}
	key := strings.TrimSpace(r.Header.Get(g.headerName))
	if key == "" {
		if g.optional {
			next.ServeHTTP(w, r)
			return
		}
		respond(ctx, w, http.StatusBadRequest, "idempotency_key_required", "missing idempotency key header")
		return
	}

	body, err := bufferBody(r, g.maxBody)
	if errors.Is(err, errBodyTooLarge) {
		respond(ctx, w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds allowed size")
		return
	}
	if err != nil {
		respond(ctx, w, http.StatusBadRequest, "idempotency_read_body_failed", "unable to read request body")
		return
	}
	caller := requester(ctx)
	scoped := scopeKey(key, caller)
	fp := fingerprint(r, body, caller)
	logger := g.logger.With(zap.String("requester", caller))

	reservation, err := g.store.Reserve(ctx, scoped, fp, g.clock().UTC(), g.ttl)
	if err != nil {
		if errors.Is(err, ErrFingerprintMismatch) {
			respond(ctx, w, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different request")
			return
		}
		logger.Error("idempotency: reserve failed", zap.Error(err))
		respond(ctx, w, http.StatusInternalServerError, "idempotency_store_error", "unable to process idempotency key")
		return
	}
	switch reservation.State {
	case ReservationStateCompleted:
		replay(w, reservation.Record)
		return
	case ReservationStatePending:
		respond(ctx, w, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
		return
	}

	captured := newCapture()
	next.ServeHTTP(captured, r)
	response := captured.response()

	if response.Status >= http.StatusInternalServerError {
		if err := g.store.Release(ctx, scoped, fp); err != nil {
			logger.Warn("idempotency: release after server error failed", zap.Error(err))
		}
		captured.flush(w, logger)
		return
	}
	if err := g.store.SaveResponse(ctx, scoped, fp, response, g.clock().UTC(), g.ttl); err != nil {
		logger.Error("idempotency: persist response failed", zap.Error(err))
		if err := g.store.Release(ctx, scoped, fp); err != nil {
			logger.Warn("idempotency: release after save failure failed", zap.Error(err))
		}
		respond(ctx, w, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
		return
	}
	captured.flush(w, logger)
}

// bufferBody reads at most limit bytes of the request body and puts a fresh reader back for the
// handler.
func bufferBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func requester(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity.UID != "" {
		return identity.UID
	}
	return anonymous
}

// scopeKey namespaces a client key by caller so two buyers never collide on the same key.
func scopeKey(key, caller string) string {
	if caller = strings.TrimSpace(caller); caller == "" {
		caller = anonymous
	}
	return strings.TrimSpace(key) + "|" + caller
}

// fingerprint identifies the request a key was first used with: method, target, content type,
// caller and body.
func fingerprint(r *http.Request, body []byte, caller string) string {
	h := sha256.New()
	for _, part := range []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Host,
		r.Header.Get("Content-Type"),
		caller,
	} {
		_, _ = io.WriteString(h, part)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func replay(w http.ResponseWriter, record Record) {
	header := w.Header()
	for name, values := range record.Headers() {
		header[name] = values
	}
	header.Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

func respond(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

// capture buffers a handler's response so it can be stored before anything reaches the client.
type capture struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newCapture() *capture {
	return &capture{header: make(http.Header)}
}

func (c *capture) Header() http.Header { return c.header }

func (c *capture) WriteHeader(status int) {
	if c.status == 0 && status > 0 {
		c.status = status
	}
}

func (c *capture) Write(data []byte) (int, error) {
	c.WriteHeader(http.StatusOK)
	return c.body.Write(data)
}

func (c *capture) response() Response {
	resp := Response{Status: c.status, Headers: c.header.Clone()}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if c.body.Len() > 0 {
		resp.Body = c.body.Bytes()
	}
	return resp
}

func (c *capture) flush(w http.ResponseWriter, logger *zap.Logger) {
	resp := c.response()
	header := w.Header()
	for name, values := range resp.Headers {
		header[name] = values
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) == 0 {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		logger.Warn("idempotency: flush response failed", zap.Error(err))
	}
}
