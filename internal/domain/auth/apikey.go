package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no API key matches the presented hash.
var ErrKeyNotFound = errors.New("api key not found")

// Role determines which lifecycle commands an identity may invoke. Buyers and
// sellers act on their own orders; arbiters resolve disputes.
type Role string

const (
	RoleUser    Role = "user"
	RoleArbiter Role = "arbiter"
)

// Identity is the authenticated principal behind an API key.
type Identity struct {
	UserID  string
	KeyHash string
	Name    string
	Role    Role
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Identity, error)
}
