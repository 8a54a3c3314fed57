package identity

import "errors"

// Kind classifies sign-in and sign-up failures.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindEmailInUse         Kind = "email_already_in_use"
	KindWeakPassword       Kind = "weak_password"
	KindUnknown            Kind = "unknown"
)

var messages = map[Kind]string{
	KindInvalidCredentials: "Invalid email or password.",
	KindEmailInUse:         "Email already exists. Please login.",
	KindWeakPassword:       "Password should be at least 6 characters.",
	KindUnknown:            "Something went wrong. Please try again.",
}

// Error is a user-presentable authentication failure. The provider cause is kept
// for logs and errors.Unwrap but never appears in Message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func newError(kind Kind, cause error) *Error {
	msg, ok := messages[kind]
	if !ok {
		kind, msg = KindUnknown, messages[KindUnknown]
	}
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func (e *Error) Error() string {
	return "identity: " + string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Kind
	}
	return KindUnknown
}
