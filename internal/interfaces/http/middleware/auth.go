package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const apiKeyInfoContextKey contextKey = iota

// APIKeyInfo identifies the key a request was authenticated with. KeyID is
// a short digest, never the key itself, so it is safe to log.
type APIKeyInfo struct {
	KeyID string `json:"key_id"`
}

// APIKeyValidator validates API keys.
type APIKeyValidator interface {
	ValidateAPIKey(key string) (*APIKeyInfo, error)
}

// StaticKeys accepts a fixed set of keys from configuration.
type StaticKeys struct {
	digests [][sha256.Size]byte
}

// NewStaticKeys builds a validator for keys. Blank entries are ignored.
func NewStaticKeys(keys []string) *StaticKeys {
	s := &StaticKeys{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			s.digests = append(s.digests, sha256.Sum256([]byte(k)))
		}
	}
	return s
}

// Len is the number of configured keys.
func (s *StaticKeys) Len() int { return len(s.digests) }

// ValidateAPIKey compares digests in constant time against every key.
func (s *StaticKeys) ValidateAPIKey(key string) (*APIKeyInfo, error) {
	sum := sha256.Sum256([]byte(key))
	match := 0
	for _, d := range s.digests {
		match |= subtle.ConstantTimeCompare(sum[:], d[:])
	}
	if match != 1 {
		return nil, errors.New(errors.ErrCodeUnauthorized, "invalid API key")
	}
	return &APIKeyInfo{KeyID: hex.EncodeToString(sum[:4])}, nil
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// SkipPaths are paths that bypass authentication entirely.
	SkipPaths []string
}

// AuthMiddleware requires an API key on every request it wraps.
type AuthMiddleware struct {
	validator APIKeyValidator
	config    AuthConfig
	logger    logging.Logger
}

func NewAuthMiddleware(validator APIKeyValidator, config AuthConfig, logger logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuthMiddleware{validator: validator, config: config, logger: logger}
}

// Authenticate rejects requests without a valid key with 401.
func (m *AuthMiddleware) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.shouldSkip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				writeUnauthorized(w, "API key required")
				return
			}
			info, err := m.validator.ValidateAPIKey(key)
			if err != nil {
				m.logger.Warn("API key rejected",
					logging.String("path", r.URL.Path),
					logging.String("remote_addr", r.RemoteAddr))
				writeUnauthorized(w, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyInfoContextKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Handler adapts Authenticate to the chi middleware signature.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return m.Authenticate()(next)
}

func (m *AuthMiddleware) shouldSkip(path string) bool {
	for _, skip := range m.config.SkipPaths {
		if path == skip || strings.HasPrefix(path, skip+"/") {
			return true
		}
	}
	return false
}

// extractAPIKey reads X-API-Key, falling back to an "ApiKey" authorization
// scheme.
func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "apikey") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// ContextGetAPIKeyInfo returns the key info for an authenticated request,
// or nil.
func ContextGetAPIKeyInfo(ctx context.Context) *APIKeyInfo {
	info, ok := ctx.Value(apiKeyInfoContextKey).(*APIKeyInfo)
	if !ok {
		return nil
	}
	return info
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `ApiKey realm="valuation"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    errors.ErrCodeUnauthorized.String(),
		"message": message,
	})
}
