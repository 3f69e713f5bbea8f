package auth

import "context"

// Identity is the user resolved from a validated API key.
type Identity struct {
	KeyID   string
	KeyHash string
	UserID  string
	Email   string
	Name    string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Identity, error)
}
