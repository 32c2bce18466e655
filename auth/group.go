package auth

import (
	"budget-grid/errors"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	GroupKey    = "x-grid-group"
	PasswordKey = "x-grid-password"

	DefaultGroup    = "dev"
	DefaultPassword = "dev-pass"
)

var validate = validator.New()

// GroupCredentials identify a client to the members of one grid group.
type GroupCredentials struct {
	Name     string `validate:"required,max=64"`
	Password string `validate:"required,max=128"`
}

func (c GroupCredentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: group credentials: %v", errors.ErrInvalidArgument, err)
	}
	return nil
}

// GetRequestMetadata sends the credentials with every call.
func (c GroupCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{GroupKey: c.Name, PasswordKey: c.Password}, nil
}

// RequireTransportSecurity is false: grid members talk plaintext inside their security group.
func (c GroupCredentials) RequireTransportSecurity() bool { return false }

// Authenticator accepts the group name and the password matching the stored Argon2id hash.
// Successful checks are remembered so that the hash is computed once per password.
type Authenticator struct {
	group        string
	passwordHash string

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

func NewAuthenticator(group, passwordHash string) *Authenticator {
	return &Authenticator{group: group, passwordHash: passwordHash, verified: make(map[[sha256.Size]byte]struct{})}
}

// NewAuthenticatorFromPassword hashes a plain password at startup.
func NewAuthenticatorFromPassword(group, password string) (*Authenticator, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return NewAuthenticator(group, hash), nil
}

func (a *Authenticator) Check(group, password string) error {
	if subtle.ConstantTimeCompare([]byte(group), []byte(a.group)) != 1 {
		return fmt.Errorf("%w: unknown group", errors.ErrUnauthenticated)
	}
	digest := sha256.Sum256([]byte(password))
	a.mu.RLock()
	_, ok := a.verified[digest]
	a.mu.RUnlock()
	if ok {
		return nil
	}
	match, err := ComparePassword(password, a.passwordHash)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if !match {
		return fmt.Errorf("%w: wrong password", errors.ErrUnauthenticated)
	}
	a.mu.Lock()
	a.verified[digest] = struct{}{}
	a.mu.Unlock()
	return nil
}
