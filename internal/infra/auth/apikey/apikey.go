// Package apikey authorizes privileged operations with a shared admin key.
package apikey

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

// Authorizer compares presented credentials against the configured admin
// key in constant time. An empty configured key locks out every caller.
type Authorizer struct {
	adminKey string
}

func NewAuthorizer(adminKey string) *Authorizer {
	return &Authorizer{adminKey: strings.TrimSpace(adminKey)}
}

func (a *Authorizer) RequireAdmin(_ context.Context, credential string) error {
	credential = strings.TrimSpace(credential)
	if a.adminKey == "" || credential == "" {
		return domain.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(credential), []byte(a.adminKey)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}
