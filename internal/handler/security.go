package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/swiftcart/commerce-api/internal/domain/auth"
)

// apiKeyHeader carries the client's API key. A Bearer token in Authorization
// is accepted as an alternative.
const apiKeyHeader = "X-API-Key"

var errUnauthorized = errors.New("unauthorized")

// Security authenticates API requests via HMAC-SHA256 hashed API keys.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate resolves the request's API key to a user identity. The key is
// HMAC-hashed, looked up, and compared in constant time to guard against
// timing side-channels even when the lookup already succeeded.
func (s *Security) Authenticate(r *http.Request) (*auth.Identity, error) {
	key := r.Header.Get(apiKeyHeader)
	if key == "" {
		if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
			key = strings.TrimPrefix(bearer, "Bearer ")
		}
	}
	if key == "" {
		return nil, errUnauthorized
	}

	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	id, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
	if err != nil {
		return nil, errUnauthorized
	}

	stored, err := hex.DecodeString(id.KeyHash)
	if err != nil {
		return nil, errUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, errUnauthorized
	}

	return id, nil
}
