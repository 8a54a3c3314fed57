package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/config"
)

// FirebaseClient coordinates Firebase Admin SDK calls used by the storefront.
type FirebaseClient struct {
	client  *firebaseauth.Client
	timeout time.Duration
}

// FirebaseOption customises FirebaseClient instances.
type FirebaseOption func(*FirebaseClient)

// WithFirebaseTimeout overrides the timeout used for Admin SDK calls.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(c *FirebaseClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewFirebaseClient constructs a FirebaseClient backed by the Admin SDK.
func NewFirebaseClient(ctx context.Context, cfg config.FirebaseConfig, opts ...FirebaseOption) (*FirebaseClient, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	c := &FirebaseClient{
		client:  authClient,
		timeout: defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// VerifyIDToken forwards verification to the underlying Firebase client using a bounded context.
func (c *FirebaseClient) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("firebase client not initialised")
	}
	ctx, cancel := c.contextWithTimeout(ctx)
	if cancel != nil {
		defer cancel()
	}
	return c.client.VerifyIDToken(ctx, idToken)
}

// CreateUser registers an email/password account with an optional display name.
func (c *FirebaseClient) CreateUser(ctx context.Context, email, password, displayName string) (*firebaseauth.UserRecord, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("firebase client not initialised")
	}
	ctx, cancel := c.contextWithTimeout(ctx)
	if cancel != nil {
		defer cancel()
	}

	params := (&firebaseauth.UserToCreate{}).Email(email).Password(password)
	if name := strings.TrimSpace(displayName); name != "" {
		params = params.DisplayName(name)
	}
	return c.client.CreateUser(ctx, params)
}

// RevokeRefreshTokens invalidates every refresh token issued to uid.
func (c *FirebaseClient) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if c == nil || c.client == nil {
		return errors.New("firebase client not initialised")
	}
	ctx, cancel := c.contextWithTimeout(ctx)
	if cancel != nil {
		defer cancel()
	}
	return c.client.RevokeRefreshTokens(ctx, uid)
}

func (c *FirebaseClient) contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c == nil || c.timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, c.timeout)
}
