package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/shelfmarket/api/internal/platform/httpx"
)

const (
	defaultRoleClaim     = "role"
	emailClaim           = "email"
	defaultVerifyTimeout = 5 * time.Second
)

var (
	ErrTokenExpired = errors.New("auth: id token expired")
	ErrTokenRevoked = errors.New("auth: id token revoked")
	ErrTokenInvalid = errors.New("auth: id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns bearer tokens into an Identity on the request context.
type Authenticator struct {
	verifier     TokenVerifier
	roleClaim    string
	fallbackRole string
	timeout      time.Duration
}

type Option func(*Authenticator)

// WithRoleClaim names the custom claim holding marketplace roles.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithFallbackRole sets the role given to tokens without a role claim. The default is buyer so any
// signed-in account can shop; pass "" to require an explicit claim.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		a.fallbackRole = normaliseRole(role)
	}
}

// WithVerificationTimeout bounds each token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		roleClaim:    defaultRoleClaim,
		fallbackRole: RoleBuyer,
		timeout:      defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth admits requests with a valid bearer token holding one of roles, or any role
// when roles is empty. Authentication failures answer 401, a missing role 403.
func (a *Authenticator) RequireFirebaseAuth(roles ...string) func(http.Handler) http.Handler {
	var allowed []string
	for _, role := range roles {
		if role = normaliseRole(role); role != "" {
			allowed = append(allowed, role)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity, failure := a.authenticate(ctx, r.Header.Get("Authorization"))
			if failure != nil {
				httpx.WriteError(ctx, w, *failure)
				return
			}
			if len(allowed) > 0 && !identity.HasAnyRole(allowed...) {
				httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func (a *Authenticator) authenticate(ctx context.Context, header string) (*Identity, *httpx.Error) {
	unauthorized := func(code, message string) *httpx.Error {
		e := httpx.NewError(code, message, http.StatusUnauthorized)
		return &e
	}

	raw, ok := bearerToken(header)
	if !ok {
		return nil, unauthorized("unauthenticated", "authorization header missing or invalid")
	}
	if a == nil || a.verifier == nil {
		return nil, unauthorized("unauthenticated", "authorization service unavailable")
	}

	verifyCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	token, err := a.verifier.VerifyIDToken(verifyCtx, raw)
	switch {
	case err == nil && token != nil:
	case errors.Is(err, ErrTokenExpired):
		return nil, unauthorized("token_expired", "id token expired")
	case errors.Is(err, ErrTokenRevoked):
		return nil, unauthorized("token_revoked", "id token revoked")
	default:
		return nil, unauthorized("invalid_token", "id token verification failed")
	}

	identity := &Identity{
		UID:   strings.TrimSpace(token.UID),
		Email: stringClaim(token.Claims, emailClaim),
		Roles: parseRoles(token.Claims[a.roleClaim]),
		token: token,
	}
	if identity.UID == "" {
		return nil, unauthorized("invalid_token", "id token has no subject")
	}
	if len(identity.Roles) == 0 && a.fallbackRole != "" {
		identity.Roles = []string{a.fallbackRole}
	}
	if len(identity.Roles) == 0 {
		e := httpx.NewError("missing_role", "no roles associated with identity", http.StatusForbidden)
		return nil, &e
	}
	return identity, nil
}
