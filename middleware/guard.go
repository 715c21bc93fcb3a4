package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	hmsAuth "github.com/MrEthical07/hmsAuth"
)

type sessionContextKey struct{}

// SessionFromContext returns the session stored by Guard.
func SessionFromContext(ctx context.Context) (*hmsAuth.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*hmsAuth.Session)
	return s, ok
}

// PrincipalFromContext returns the authenticated principal stored by Guard.
func PrincipalFromContext(ctx context.Context) (hmsAuth.Principal, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return hmsAuth.Principal{}, false
	}
	return s.Principal, true
}

// Guard authenticates the bearer token on every request and stores the
// resulting session in the request context. Client IP and user agent are
// attached so engine audit events carry them.
func Guard(engine *hmsAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithRequestMetadata(r)
			sess, err := engine.Authenticate(ctx, token)
			if err != nil {
				if errors.Is(err, hmsAuth.ErrUnexpected) {
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithRequestMetadata returns r's context carrying the client IP and user
// agent for engine audit events.
func WithRequestMetadata(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := ClientIP(r); ip != "" {
		ctx = hmsAuth.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = hmsAuth.WithUserAgent(ctx, ua)
	}
	return ctx
}

// ClientIP returns the first X-Forwarded-For hop, or the host part of
// RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
