package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	APIKeyHeader = "X-API-Key"
	// APIKeyQueryParam carries the key for clients that cannot set headers.
	APIKeyQueryParam = "api_key"
)

type keyNameKey struct{}

// APIKeys maps SHA-256 digests of accepted keys to the caller names they
// identify. Only digests are kept in memory.
type APIKeys struct {
	digests map[[sha256.Size]byte]string
}

// NewAPIKeys builds the key set from name → raw key pairs. Empty keys are
// ignored.
func NewAPIKeys(keys map[string]string) *APIKeys {
	k := &APIKeys{digests: make(map[[sha256.Size]byte]string, len(keys))}
	for name, raw := range keys {
		if raw = strings.TrimSpace(raw); raw != "" {
			k.digests[sha256.Sum256([]byte(raw))] = name
		}
	}
	return k
}

func (k *APIKeys) Len() int { return len(k.digests) }

// Lookup returns the caller name for raw, comparing digests in constant
// time.
func (k *APIKeys) Lookup(raw string) (string, bool) {
	d := sha256.Sum256([]byte(raw))
	name, found := "", false
	for stored, n := range k.digests {
		if subtle.ConstantTimeCompare(stored[:], d[:]) == 1 {
			name, found = n, true
		}
	}
	return name, found
}

// RequireAPIKey rejects requests without a valid key. Keys are read from
// Authorization: Bearer, then X-API-Key, then the api_key query parameter.
// Health endpoints and CORS preflights are exempt.
func RequireAPIKey(keys *APIKeys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			raw := extractAPIKey(r)
			if raw == "" {
				writeUnauthorized(w, "missing api key")
				return
			}
			name, ok := keys.Lookup(raw)
			if !ok {
				writeUnauthorized(w, "invalid api key")
				return
			}
			ctx := context.WithValue(r.Context(), keyNameKey{}, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerName returns the name of the API key that authenticated the
// request, or "" when authentication is off.
func CallerName(ctx context.Context) string {
	name, _ := ctx.Value(keyNameKey{}).(string)
	return name
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	return r.URL.Query().Get(APIKeyQueryParam)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="contenthub"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": "unauthenticated"})
}
