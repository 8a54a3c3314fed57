package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_FIREBASE_PROJECT_ID": "mukuu-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "mukuu-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "mukuu-dev" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Messaging.WhatsAppNumber != defaultWhatsAppNumber {
		t.Errorf("unexpected whatsapp number %s", cfg.Messaging.WhatsAppNumber)
	}
	if cfg.Messaging.ShopName != "shop.with.mukuu" {
		t.Errorf("unexpected shop name %s", cfg.Messaging.ShopName)
	}
	if cfg.Checkout.AllowGuest {
		t.Errorf("guest checkout must be disabled by default")
	}
	if cfg.Checkout.SubmitTimeout != 15*time.Second {
		t.Errorf("unexpected submit timeout %s", cfg.Checkout.SubmitTimeout)
	}
	if cfg.Session.CookieSecure {
		t.Errorf("expected insecure cookies in the local environment")
	}
	if cfg.Session.CookieName != defaultSessionCookie {
		t.Errorf("unexpected cookie name %s", cfg.Session.CookieName)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_SERVER_PORT":             "9090",
		"STOREFRONT_FIREBASE_PROJECT_ID":     "mukuu-prod",
		"STOREFRONT_FIREBASE_WEB_API_KEY":    "secret://firebase/web-api-key",
		"STOREFRONT_SESSION_HASH_KEY":        "sm://session/hash",
		"STOREFRONT_SECURITY_ENVIRONMENT":    "prod",
		"STOREFRONT_CHECKOUT_ALLOW_GUEST":    "yes",
		"STOREFRONT_CHECKOUT_SUBMIT_TIMEOUT": "20s",
	}
	secrets := map[string]string{
		"secret://firebase/web-api-key": "AIza-test",
		"secret://session/hash":         "0123456789abcdef0123456789abcdef",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		value, ok := secrets[ref]
		if !ok {
			return "", errors.New("not found")
		}
		return value, nil
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(resolver),
		WithRequiredSecrets("Session.HashKey"),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.WebAPIKey != "AIza-test" {
		t.Errorf("expected resolved web api key, got %q", cfg.Firebase.WebAPIKey)
	}
	if cfg.Session.HashKey != secrets["secret://session/hash"] {
		t.Errorf("expected sm:// reference to resolve, got %q", cfg.Session.HashKey)
	}
	if !cfg.Session.CookieSecure {
		t.Errorf("expected secure cookies outside local")
	}
	if !cfg.Checkout.AllowGuest {
		t.Errorf("expected guest checkout override")
	}
	if cfg.Checkout.SubmitTimeout != 20*time.Second {
		t.Errorf("unexpected submit timeout %s", cfg.Checkout.SubmitTimeout)
	}
}

func TestLoadReportsMissingRequiredSecret(t *testing.T) {
	env := map[string]string{"STOREFRONT_FIREBASE_PROJECT_ID": "mukuu-prod"}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("Session.HashKey", "Session.HashKey"))

	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Session.HashKey" {
		t.Fatalf("unexpected missing names %v", names)
	}
	if redacted := missing.RedactedNames(); len(redacted) != 1 || redacted[0] == "Session.HashKey" {
		t.Fatalf("expected redacted names, got %v", redacted)
	}
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_MESSAGING_WHATSAPP_NUMBER": "+91 98765",
		"STOREFRONT_SESSION_BLOCK_KEY":         "short",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{"Firebase.ProjectID": true, "Firestore.ProjectID": true, "Messaging.WhatsAppNumber": true, "Session.BlockKey": true}
	for _, field := range validation.Fields() {
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("expected fields %v to be reported, got %v", want, validation.Fields())
	}
}

func TestLoadSecretResolverFailure(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_FIREBASE_PROJECT_ID":  "mukuu-prod",
		"STOREFRONT_FIREBASE_WEB_API_KEY": "secret://firebase/web-api-key",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))

	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://firebase/web-api-key" {
		t.Fatalf("unexpected ref %q", secretErr.Ref)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport STOREFRONT_FIREBASE_PROJECT_ID=\"mukuu-local\"\nSTOREFRONT_SERVER_PORT=7070\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path),
		WithEnvMap(map[string]string{"STOREFRONT_SERVER_PORT": "6060"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.ProjectID != "mukuu-local" {
		t.Fatalf("expected project from .env, got %q", cfg.Firebase.ProjectID)
	}
	if cfg.Server.Port != "6060" {
		t.Fatalf("expected explicit map to win over .env, got %q", cfg.Server.Port)
	}

	value, err := Lookup("FIREBASE_PROJECT_ID", WithoutSystemEnv(), WithEnvFile(path))
	if err != nil || value != "mukuu-local" {
		t.Fatalf("Lookup returned %q, %v", value, err)
	}
}
