package auth

import (
	"context"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Source records where a request identity was resolved from.
type Source string

const (
	SourceBearer  Source = "bearer"
	SourceSession Source = "session"
)

// Identity captures the signed-in shopper attached to a request.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	Source      Source

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token when the identity came from a bearer header.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

type contextKey string

const identityContextKey contextKey = "storefront/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil || identity.UID == "" {
		return nil, false
	}
	return identity, true
}
