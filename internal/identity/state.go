package identity

import (
	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
)

// State is either Anonymous or Authenticated with a profile. The zero value is Anonymous.
type State struct {
	profile       domain.Profile
	authenticated bool
}

// Anonymous returns the signed-out state.
func Anonymous() State {
	return State{}
}

// Authenticated returns the signed-in state for profile. A profile without a UID is Anonymous.
func Authenticated(profile domain.Profile) State {
	if profile.UID == "" {
		return State{}
	}
	return State{profile: profile, authenticated: true}
}

// Profile returns the signed-in profile and whether there is one.
func (s State) Profile() (domain.Profile, bool) {
	return s.profile, s.authenticated
}

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool {
	return s.authenticated
}

// UserID returns the signed-in UID, or domain.GuestUserID when anonymous.
func (s State) UserID() string {
	if !s.authenticated {
		return domain.GuestUserID
	}
	return s.profile.UID
}
