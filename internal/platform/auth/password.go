package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// ErrPasswordRejected reports that the email/password pair did not match an account.
var ErrPasswordRejected = errors.New("auth: email or password rejected")

// PasswordAccount is the account resolved by a successful password sign-in.
type PasswordAccount struct {
	UID         string
	Email       string
	DisplayName string
	IDToken     string
}

// PasswordClient signs users in with the Identity Toolkit relying-party API.
type PasswordClient struct {
	service *identitytoolkit.Service
	timeout time.Duration
}

// NewPasswordClient constructs a PasswordClient authenticated with the project's web API key.
func NewPasswordClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*PasswordClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" && len(opts) == 0 {
		return nil, errors.New("password client requires a web api key")
	}
	if apiKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	}
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise identity toolkit: %w", err)
	}
	return &PasswordClient{service: svc, timeout: defaultVerifyTimeout}, nil
}

// SignInWithPassword verifies the credentials and returns the matching account.
// Credential mismatches are reported as ErrPasswordRejected wrapping the provider error.
func (c *PasswordClient) SignInWithPassword(ctx context.Context, email, password string) (PasswordAccount, error) {
	if c == nil || c.service == nil {
		return PasswordAccount{}, errors.New("password client not initialised")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.service.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		if IsCredentialError(err) {
			return PasswordAccount{}, fmt.Errorf("%w: %v", ErrPasswordRejected, err)
		}
		return PasswordAccount{}, err
	}
	return PasswordAccount{
		UID:         resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		IDToken:     resp.IdToken,
	}, nil
}

// IsCredentialError reports whether err is a provider rejection of the supplied credentials.
func IsCredentialError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	message := strings.ToUpper(apiErr.Message)
	for _, code := range []string{"INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED"} {
		if strings.Contains(message, code) {
			return true
		}
	}
	return false
}
