package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/identity"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/auth"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/httpx"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/requestctx"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/session"
)

const maxAuthBodySize = 4 * 1024

// IdentityGate is the sign-in surface the auth handlers drive.
type IdentityGate interface {
	SignIn(ctx context.Context, email, password string) (identity.State, error)
	SignUp(ctx context.Context, email, password, displayName string) (identity.State, error)
	SignOut(ctx context.Context, current identity.State) identity.State
}

// CheckoutForms clears the checkout form held for a browser session.
type CheckoutForms interface {
	ResetForm(key string)
}

// AuthOption customises auth handlers.
type AuthOption func(*AuthHandlers)

// WithCheckoutForms resets the session's checkout form whenever the signed-in user changes.
func WithCheckoutForms(forms CheckoutForms) AuthOption {
	return func(h *AuthHandlers) {
		h.forms = forms
	}
}

// AuthHandlers binds identity gate outcomes to the browser session.
type AuthHandlers struct {
	gate  IdentityGate
	forms CheckoutForms
}

// NewAuthHandlers constructs auth handlers.
func NewAuthHandlers(gate IdentityGate, opts ...AuthOption) *AuthHandlers {
	h := &AuthHandlers{gate: gate}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /auth endpoints.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/session", h.current)
	r.Post("/sign-in", h.signIn)
	r.Post("/sign-up", h.signUp)
	r.Post("/sign-out", h.signOut)
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type userPayload struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *userPayload `json:"user,omitempty"`
	Source        string       `json:"source,omitempty"`
}

func (h *AuthHandlers) current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := sessionResponse{}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		resp.Authenticated = true
		resp.User = &userPayload{UID: id.UID, Email: id.Email, DisplayName: id.DisplayName}
		resp.Source = string(id.Source)
	}
	setNoStore(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandlers) signIn(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, func(ctx context.Context, req credentialsRequest) (identity.State, error) {
		return h.gate.SignIn(ctx, req.Email, req.Password)
	})
}

func (h *AuthHandlers) signUp(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, func(ctx context.Context, req credentialsRequest) (identity.State, error) {
		return h.gate.SignUp(ctx, req.Email, req.Password, req.DisplayName)
	})
}

func (h *AuthHandlers) authenticate(w http.ResponseWriter, r *http.Request, run func(context.Context, credentialsRequest) (identity.State, error)) {
	ctx := r.Context()
	if h.gate == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "sign-in is unavailable", http.StatusServiceUnavailable))
		return
	}
	sess, ok := session.FromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a browser session is required", http.StatusBadRequest))
		return
	}
	var req credentialsRequest
	if !decodeJSONBody(w, r, maxAuthBodySize, &req) {
		return
	}

	state, err := run(ctx, req)
	if err != nil {
		writeIdentityError(ctx, w, err)
		return
	}
	profile, _ := state.Profile()
	// The session keeps its ID so the cart started while signed out carries over.
	sess.SetUser(&session.User{UID: profile.UID, Email: profile.Email, DisplayName: profile.DisplayName})
	h.resetCheckout(ctx)

	setNoStore(w)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		User:          &userPayload{UID: profile.UID, Email: profile.Email, DisplayName: profile.DisplayName},
		Source:        string(auth.SourceSession),
	})
}

func (h *AuthHandlers) signOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.gate != nil {
		h.gate.SignOut(ctx, identityState(ctx))
	}
	if sess, ok := session.FromContext(ctx); ok {
		sess.SetUser(nil)
	}
	h.resetCheckout(ctx)
	setNoStore(w)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
}

func (h *AuthHandlers) resetCheckout(ctx context.Context) {
	if h.forms == nil {
		return
	}
	if key := requestctx.SessionID(ctx); key != "" {
		h.forms.ResetForm(key)
	}
}

func writeIdentityError(ctx context.Context, w http.ResponseWriter, err error) {
	var idErr *identity.Error
	if !errors.As(err, &idErr) {
		httpx.WriteError(ctx, w, httpx.NewError(string(identity.KindUnknown), "Something went wrong. Please try again.", http.StatusBadGateway))
		return
	}
	status := http.StatusBadGateway
	switch idErr.Kind {
	case identity.KindInvalidCredentials:
		status = http.StatusUnauthorized
	case identity.KindEmailInUse:
		status = http.StatusConflict
	case identity.KindWeakPassword:
		status = http.StatusUnprocessableEntity
	}
	httpx.WriteError(ctx, w, httpx.NewError(string(idErr.Kind), idErr.Message, status))
}
