package identity

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
)

const minPasswordLength = 6

// Provider errors that adapters return so the gate can classify them.
var (
	ErrProviderInvalidCredentials = errors.New("identity provider: invalid credentials")
	ErrProviderEmailExists        = errors.New("identity provider: email exists")
	ErrProviderWeakPassword       = errors.New("identity provider: weak password")
)

// Provider is the external credential flow.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (domain.Profile, error)
	SignUp(ctx context.Context, email, password, displayName string) (domain.Profile, error)
	SignOut(ctx context.Context, uid string) error
}

// GateDeps wires the dependencies of a Gate.
type GateDeps struct {
	Provider Provider
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// Gate turns provider outcomes into identity states and user-presentable errors.
type Gate struct {
	provider Provider
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewGate constructs a Gate validating required dependencies.
func NewGate(deps GateDeps) (*Gate, error) {
	if deps.Provider == nil {
		return nil, errors.New("identity gate: provider is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Gate{provider: deps.Provider, logger: logger}, nil
}

// SignIn authenticates with email and password.
func (g *Gate) SignIn(ctx context.Context, email, password string) (State, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Anonymous(), newError(KindInvalidCredentials, nil)
	}
	profile, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return Anonymous(), g.classify(ctx, "identity.sign_in_failed", err)
	}
	g.logger(ctx, "identity.signed_in", map[string]any{"uid": profile.UID})
	return Authenticated(profile), nil
}

// SignUp registers a new account and signs it in. Short passwords are rejected
// before the provider is called.
func (g *Gate) SignUp(ctx context.Context, email, password, displayName string) (State, error) {
	email = strings.TrimSpace(email)
	if utf8.RuneCountInString(password) < minPasswordLength {
		return Anonymous(), newError(KindWeakPassword, nil)
	}
	if email == "" {
		return Anonymous(), newError(KindUnknown, errors.New("email is required"))
	}
	profile, err := g.provider.SignUp(ctx, email, password, strings.TrimSpace(displayName))
	if err != nil {
		return Anonymous(), g.classify(ctx, "identity.sign_up_failed", err)
	}
	g.logger(ctx, "identity.signed_up", map[string]any{"uid": profile.UID})
	return Authenticated(profile), nil
}

// SignOut always ends in Anonymous. Revoking provider sessions is best effort.
func (g *Gate) SignOut(ctx context.Context, current State) State {
	profile, ok := current.Profile()
	if !ok {
		return Anonymous()
	}
	if err := g.provider.SignOut(ctx, profile.UID); err != nil {
		g.logger(ctx, "identity.sign_out_revoke_failed", map[string]any{"uid": profile.UID, "error": err})
	}
	return Anonymous()
}

func (g *Gate) classify(ctx context.Context, event string, err error) *Error {
	var kind Kind
	switch {
	case errors.Is(err, ErrProviderInvalidCredentials):
		kind = KindInvalidCredentials
	case errors.Is(err, ErrProviderEmailExists):
		kind = KindEmailInUse
	case errors.Is(err, ErrProviderWeakPassword):
		kind = KindWeakPassword
	default:
		kind = KindUnknown
	}
	g.logger(ctx, event, map[string]any{"kind": string(kind), "error": err})
	return newError(kind, err)
}
