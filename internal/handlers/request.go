package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/identity"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/auth"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/httpx"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/requestctx"
)

const defaultBodyLimit = 16 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads a bounded body into dst and writes the error response itself.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

// identityState resolves the request identity resolved by the auth and session middleware.
func identityState(ctx context.Context) identity.State {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return identity.Anonymous()
	}
	return identity.Authenticated(domain.Profile{
		UID:         id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	})
}

func sessionKey(ctx context.Context, w http.ResponseWriter) (string, bool) {
	key := strings.TrimSpace(requestctx.SessionID(ctx))
	if key == "" {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a browser session is required", http.StatusBadRequest))
		return "", false
	}
	return key, true
}

func setNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
}

type linePayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Image    string `json:"image,omitempty"`
	Quantity int    `json:"quantity"`
	Subtotal int64  `json:"subtotal"`
}

func buildLinePayloads(lines []domain.CartLine) []linePayload {
	payload := make([]linePayload, 0, len(lines))
	for _, line := range lines {
		payload = append(payload, linePayload{
			ID:       line.ID,
			Name:     line.Name,
			Price:    line.Price,
			Image:    line.Image,
			Quantity: line.Quantity,
			Subtotal: line.Subtotal(),
		})
	}
	return payload
}

func shippingLabel(label string) string {
	if label == "" {
		return domain.ShippingLabel
	}
	return label
}
