package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"

	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/auth"
)

type passwordSigner interface {
	SignInWithPassword(ctx context.Context, email, password string) (auth.PasswordAccount, error)
}

type accountAdmin interface {
	CreateUser(ctx context.Context, email, password, displayName string) (*firebaseauth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// FirebaseProvider signs users in through Identity Toolkit and manages accounts
// through the Firebase Admin SDK.
type FirebaseProvider struct {
	passwords passwordSigner
	admin     accountAdmin
}

// NewFirebaseProvider constructs a FirebaseProvider.
func NewFirebaseProvider(passwords passwordSigner, admin accountAdmin) (*FirebaseProvider, error) {
	if passwords == nil {
		return nil, errors.New("firebase provider: password client is required")
	}
	if admin == nil {
		return nil, errors.New("firebase provider: admin client is required")
	}
	return &FirebaseProvider{passwords: passwords, admin: admin}, nil
}

// SignIn verifies email and password.
func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (domain.Profile, error) {
	account, err := p.passwords.SignInWithPassword(ctx, email, password)
	if err != nil {
		return domain.Profile{}, translateProviderError(err)
	}
	return domain.Profile{UID: account.UID, Email: account.Email, DisplayName: account.DisplayName}, nil
}

// SignUp creates the account.
func (p *FirebaseProvider) SignUp(ctx context.Context, email, password, displayName string) (domain.Profile, error) {
	record, err := p.admin.CreateUser(ctx, email, password, displayName)
	if err != nil {
		return domain.Profile{}, translateProviderError(err)
	}
	if record == nil || record.UserInfo == nil {
		return domain.Profile{}, errors.New("firebase provider: empty user record")
	}
	return domain.Profile{UID: record.UID, Email: record.Email, DisplayName: record.DisplayName}, nil
}

// SignOut revokes the user's refresh tokens.
func (p *FirebaseProvider) SignOut(ctx context.Context, uid string) error {
	return p.admin.RevokeRefreshTokens(ctx, uid)
}

func translateProviderError(err error) error {
	switch {
	case errors.Is(err, auth.ErrPasswordRejected), firebaseauth.IsUserNotFound(err):
		return fmt.Errorf("%w: %w", ErrProviderInvalidCredentials, err)
	case firebaseauth.IsEmailAlreadyExists(err):
		return fmt.Errorf("%w: %w", ErrProviderEmailExists, err)
	}

	message := err.Error()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message = apiErr.Message
	}
	upper := strings.ToUpper(message)
	switch {
	case strings.Contains(upper, "EMAIL_EXISTS"):
		return fmt.Errorf("%w: %w", ErrProviderEmailExists, err)
	case strings.Contains(upper, "WEAK_PASSWORD"), strings.Contains(upper, "PASSWORD MUST BE"):
		return fmt.Errorf("%w: %w", ErrProviderWeakPassword, err)
	case strings.Contains(upper, "INVALID_LOGIN_CREDENTIALS"), strings.Contains(upper, "INVALID_PASSWORD"), strings.Contains(upper, "EMAIL_NOT_FOUND"):
		return fmt.Errorf("%w: %w", ErrProviderInvalidCredentials, err)
	}
	return err
}

var _ Provider = (*FirebaseProvider)(nil)
