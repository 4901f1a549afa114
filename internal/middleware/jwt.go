package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"calendar-proxy/internal/api"
	"calendar-proxy/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "calendar-proxy"

// Claims represents the JWT claims accepted by the proxy. Subject carries the
// front-end user id.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator validates HS256 bearer tokens signed with a shared secret
type Authenticator struct {
	secret []byte
	// Routes that never require a token, matched by exact path
	open map[string]bool
}

// NewAuthenticator returns nil when secret is empty, which disables auth.
func NewAuthenticator(secret string, openPaths ...string) *Authenticator {
	if secret == "" {
		return nil
	}
	open := make(map[string]bool, len(openPaths))
	for _, p := range openPaths {
		open[p] = true
	}
	return &Authenticator{secret: []byte(secret), open: open}
}

// GenerateToken issues a token for subject valid for ttl
func (a *Authenticator) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ValidateToken parses and verifies tokenString
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "Invalid token", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, utils.NewAppError(utils.ErrInvalidToken, "Invalid token", errors.New("token not valid"))
}

// Middleware rejects requests without a valid bearer token. A nil
// Authenticator passes everything through.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.open[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			api.WriteError(w, utils.NewUnauthorizedError("authorization header required"))
			return
		}
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			api.WriteError(w, utils.NewUnauthorizedError("invalid authorization format"))
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			LoggerFromContext(r.Context()).Debug("rejected bearer token", "error", err)
			api.WriteError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetSubjectInContext(r.Context(), claims.Subject)))
	})
}

// Define a custom context key type to avoid collisions
type contextKey string

const (
	subjectKey   contextKey = "subject"
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

// SetSubjectInContext saves the token subject in the request context
func SetSubjectInContext(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext retrieves the token subject from the context
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}
