package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/cart"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/checkout"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/identity"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/requestctx"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestNewRouter_DefaultMounts(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(
		WithHealthClock(func() time.Time { return now }),
		WithHealthCheck("firestore", stubPinger{}),
	)))

	t.Run("healthz", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Fatalf("expected json content-type, got %s", ct)
		}
	})

	t.Run("readyz", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("default not implemented group", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected status 501, got %d", rr.Code)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rr.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != errorNotFoundCode {
			t.Fatalf("unexpected error code %v", body["error"])
		}
	})
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	health := NewHealthHandlers(WithHealthCheck("firestore", stubPinger{err: errors.New("dial timeout")}))
	rr := httptest.NewRecorder()
	health.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "error" || body.Checks["firestore"] != "error" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCartHandlersRequireSession(t *testing.T) {
	registry, err := cart.NewRegistry(cart.RegistryDeps{Carts: &memoryCartRepo{}})
	if err != nil {
		t.Fatalf("cart registry: %v", err)
	}

	t.Run("no cart source", func(t *testing.T) {
		router := NewRouter(WithCartRoutes(NewCartHandlers(nil).Routes))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
	})

	t.Run("no session", func(t *testing.T) {
		router := NewRouter(WithCartRoutes(NewCartHandlers(registry).Routes))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("session key from context", func(t *testing.T) {
		withSession := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(r.Context(), "sess-1")))
			})
		}
		router := NewRouter(WithMiddlewares(withSession), WithCartRoutes(NewCartHandlers(registry).Routes))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if registry.Len() != 1 {
			t.Fatalf("expected the session cart to be resident")
		}
	})
}

func TestReadLimitedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 33)))
	if _, err := readLimitedBody(req, 32); !errors.Is(err, errBodyTooLarge) {
		t.Fatalf("expected errBodyTooLarge, got %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("   "))
	if _, err := readLimitedBody(req, 32); !errors.Is(err, errEmptyBody) {
		t.Fatalf("expected errEmptyBody, got %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	if data, err := readLimitedBody(req, 32); err != nil || string(data) != `{"a":1}` {
		t.Fatalf("unexpected result %q %v", data, err)
	}
}

func TestWriteCheckoutErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &checkout.ValidationError{Missing: []string{"phone"}}, http.StatusUnprocessableEntity, "missing_fields"},
		{"in progress", checkout.ErrSubmitInProgress, http.StatusConflict, "submit_in_progress"},
		{"empty cart", checkout.ErrCartEmpty, http.StatusConflict, "cart_empty"},
		{"not editable", checkout.ErrNotEditable, http.StatusConflict, "not_editable"},
		{"login", checkout.ErrLoginRequired, http.StatusUnauthorized, "login_required"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "cart_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeCheckoutError(context.Background(), rr, tc.err)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, body["error"])
			}
		})
	}
}

func TestWriteIdentityErrorHidesProviderDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	writeIdentityError(context.Background(), rr, errors.New("INTERNAL: upstream 500 with secrets"))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secrets") {
		t.Fatalf("provider detail leaked: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), string(identity.KindUnknown)) {
		t.Fatalf("expected unknown kind, got %s", rr.Body.String())
	}
}
