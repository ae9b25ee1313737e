package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider resolves secrets from process environment variables.
//
// The ref is the variable name: secretref:env:ACME_DB_PASSWORD.
type EnvProvider struct{}

var _ Provider = EnvProvider{}

// NewEnvProvider creates an environment-backed provider.
func NewEnvProvider() EnvProvider { return EnvProvider{} }

// Name returns the provider name used in secret references.
func (EnvProvider) Name() string { return "env" }

// Resolve looks up ref in the environment.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	value, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("environment variable %q is not set", ref)
	}
	return value, nil
}

// Close is a no-op for environment lookups.
func (EnvProvider) Close() error { return nil }
