package domain

// Profile is the signed-in user as reported by the identity provider.
type Profile struct {
	UID         string
	Email       string
	DisplayName string
}
