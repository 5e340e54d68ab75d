package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"registry-be/pkg/errors"
	"registry-be/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// CallerContextKey is the key for the authenticated account address
	CallerContextKey ContextKey = "caller"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// CallerClaims is the token payload. Subject carries the account address the
// caller proved ownership of during sign-in.
type CallerClaims struct {
	jwt.RegisteredClaims
}

// Auth validates the bearer token and puts the caller address in context.
func Auth(jwtSecret string, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, errors.NewAuthenticationError("Authorization header is required"), logger)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeErrorResponse(w, errors.NewAuthenticationError("Invalid authorization header format"), logger)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == "" {
				writeErrorResponse(w, errors.NewAuthenticationError("Token is required"), logger)
				return
			}

			caller, err := validateToken(token, jwtSecret)
			if err != nil {
				logger.WithError(err).Warn("Token validation failed")
				writeErrorResponse(w, errors.NewAuthenticationError("Invalid or expired token"), logger)
				return
			}

			ctx := context.WithValue(r.Context(), CallerContextKey, caller)
			r = r.WithContext(ctx)

			logger.WithField("caller", caller).Debug("Caller authenticated")

			next.ServeHTTP(w, r)
		})
	}
}

func validateToken(tokenString, secret string) (string, error) {
	claims := &CallerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	caller := strings.ToLower(claims.Subject)
	if !isAddress(caller) {
		return "", fmt.Errorf("token subject is not an account address")
	}
	return caller, nil
}

// isAddress checks the 0x-prefixed 20-byte hex form.
func isAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

// CallerFromContext returns the authenticated address, empty when anonymous.
func CallerFromContext(ctx context.Context) string {
	if caller, ok := ctx.Value(CallerContextKey).(string); ok {
		return caller
	}
	return ""
}

// IssueToken mints a signed token for the given address. Used by the dev
// sign-in endpoint and by tests.
func IssueToken(address, secret string, ttl time.Duration) (string, error) {
	claims := &CallerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(address),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// RequestID creates a middleware that adds a unique request ID to each request
func RequestID(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := generateRequestID()

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			r = r.WithContext(ctx)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r)
		})
	}
}

// generateRequestID generates a simple request ID
func generateRequestID() string {
	return fmt.Sprintf("%d-%d", time.Now().Unix(), time.Now().Nanosecond())
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, appErr *errors.AppError, logger *logger.Logger) {
	logger.WithError(appErr).Error("Request error")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	timestamp := time.Now().UTC().Format(time.RFC3339)
	w.Write([]byte(`{"error":{"type":"` + string(appErr.Type) + `","message":"` + appErr.Message + `","timestamp":"` + timestamp + `"}}`))
}
