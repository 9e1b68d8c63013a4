package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/accountauth"
)

// AccessCookie is the cookie the guard reads when no bearer header is sent.
const AccessCookie = "accessToken"

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by Guard.
func PrincipalFromContext(ctx context.Context) (*accountauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*accountauth.Principal)
	return p, ok && p != nil
}

// ErrorWriter renders a rejected request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Guard rejects requests without a valid access token. onError renders the
// rejection; nil falls back to a plain 401.
func Guard(engine *accountauth.Engine, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				onError(w, r, accountauth.ErrEngineNotReady)
				return
			}

			principal, err := engine.ValidateAccess(r.Context(), accessToken(r))
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accessToken returns the bearer token, or the access cookie, or "".
func accessToken(r *http.Request) string {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	if c, err := r.Cookie(AccessCookie); err == nil {
		return c.Value
	}
	return ""
}

// AccessToken exposes the guard's token lookup to handlers that accept an
// optional access token, such as logout.
func AccessToken(r *http.Request) string {
	return accessToken(r)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
