package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"C2C_FIREBASE_PROJECT_ID":  "c2c-dev",
		"C2C_STORAGE_MEDIA_BUCKET": "c2c-media-dev",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "c2c-dev", cfg.Firestore.ProjectID)
	assert.Equal(t, "c2c-dev", cfg.PubSub.ProjectID)
	assert.Equal(t, defaultNotificationsTopic, cfg.PubSub.NotificationsTopic)
	assert.Equal(t, 120, cfg.RateLimits.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimits.Window)
	assert.Equal(t, RateLimitBackendMemory, cfg.RateLimits.Backend)
	assert.Equal(t, 1, cfg.RateLimits.TrustedProxies)
	assert.Equal(t, "INR", cfg.Pricing.Currency)
	assert.Equal(t, []string{defaultSecurityIssuer}, cfg.Security.OIDC.Issuers)
	assert.Equal(t, defaultIdempotencyHeader, cfg.Idempotency.Header)
	assert.True(t, cfg.Features.EnableStoreCredit)
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := baseEnv()
	env["C2C_SERVER_PORT"] = "9090"
	env["C2C_RATELIMIT_REQUESTS"] = "30"
	env["C2C_RATELIMIT_WINDOW"] = "15m"
	env["C2C_RATELIMIT_BACKEND"] = "Firestore"
	env["C2C_RATELIMIT_TRUSTED_PROXIES"] = "2"
	env["C2C_PRICING_CURRENCY"] = "usd"
	env["C2C_PSP_STRIPE_API_KEY"] = "sm://stripe/api"
	env["C2C_SECURITY_OIDC_ISSUERS"] = "https://accounts.google.com, https://issuer.example"

	var requested []string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		requested = append(requested, ref)
		return "sk_test_123", nil
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(resolver),
		WithRequiredSecrets("PSP.StripeAPIKey"),
	)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30, cfg.RateLimits.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimits.Window)
	assert.Equal(t, RateLimitBackendFirestore, cfg.RateLimits.Backend)
	assert.Equal(t, 2, cfg.RateLimits.TrustedProxies)
	assert.Equal(t, "USD", cfg.Pricing.Currency)
	assert.Equal(t, "sk_test_123", cfg.PSP.StripeAPIKey)
	assert.Equal(t, []string{"secret://stripe/api"}, requested)
	assert.Len(t, cfg.Security.OIDC.Issuers, 2)
}

func TestLoadValidationError(t *testing.T) {
	env := map[string]string{"C2C_RATELIMIT_BACKEND": "redis", "C2C_RATELIMIT_TRUSTED_PROXIES": "-1"}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	require.Error(t, err)

	var validation *ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Contains(t, validation.Fields(), "Firebase.ProjectID")
	assert.Contains(t, validation.Fields(), "Storage.MediaBucket")
	assert.Contains(t, validation.Fields(), "RateLimits.Backend")
	assert.Contains(t, validation.Fields(), "RateLimits.TrustedProxies")
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := baseEnv()
	env["C2C_PSP_STRIPE_API_KEY"] = "secret://stripe/api"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	require.True(t, errors.As(err, &secretErr))
	assert.Equal(t, "secret://stripe/api", secretErr.Ref)
}

func TestLoadMissingRequiredSecret(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("PSP.StripeAPIKey"),
	)
	var missing *MissingSecretsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"PSP.StripeAPIKey"}, missing.Names())
	assert.NotContains(t, err.Error(), "PSP.StripeAPIKey")
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "C2C_FIREBASE_PROJECT_ID=from-dotenv\nC2C_STORAGE_MEDIA_BUCKET=\"media-dotenv\"\n# comment\nC2C_SERVER_PORT=7000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(context.Background(),
		WithEnvFile(path), WithoutSystemEnv(),
		WithEnvMap(map[string]string{"C2C_SERVER_PORT": "7100"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Firebase.ProjectID)
	assert.Equal(t, "media-dotenv", cfg.Storage.MediaBucket)
	assert.Equal(t, "7100", cfg.Server.Port)
}

func TestEnvironmentValuesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("A=dotenv\nB=dotenv\n"), 0o600))

	values, err := EnvironmentValues(WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{"B": "explicit"}))
	require.NoError(t, err)
	assert.Equal(t, "dotenv", values["A"])
	assert.Equal(t, "explicit", values["B"])
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), "absent.env")),
		WithoutSystemEnv(), WithEnvMap(baseEnv()),
	)
	require.NoError(t, err)
}
