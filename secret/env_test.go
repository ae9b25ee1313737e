package secret

import (
	"context"
	"testing"
)

func TestEnvProvider_Resolve(t *testing.T) {
	t.Setenv("ACME_DB_PASSWORD", "s3cr3t")

	p := NewEnvProvider()
	got, err := p.Resolve(context.Background(), "ACME_DB_PASSWORD")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "s3cr3t" {
		t.Fatalf("Resolve() = %q, want %q", got, "s3cr3t")
	}
}

func TestEnvProvider_MissingVariable(t *testing.T) {
	p := NewEnvProvider()
	if _, err := p.Resolve(context.Background(), "TENANTCORE_DEFINITELY_UNSET"); err == nil {
		t.Fatalf("expected error for unset variable")
	}
}

func TestResolver_InlineRefInConnectionString(t *testing.T) {
	t.Setenv("ACME_DB_PASSWORD", "s3cr3t")

	r := NewResolver(true, NewEnvProvider())
	got, err := r.ResolveValue(context.Background(), "postgres://app:secretref:env:ACME_DB_PASSWORD@db:5432/acme")
	if err != nil {
		t.Fatalf("ResolveValue() error = %v", err)
	}
	if got != "postgres://app:s3cr3t@db:5432/acme" {
		t.Fatalf("ResolveValue() = %q", got)
	}
}
