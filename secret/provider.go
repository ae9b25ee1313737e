package secret

import "context"

// Provider fetches one credential by reference, e.g. the password a
// tenant descriptor's DSN points at via "secretref:env:ACME_DB_PASSWORD".
//
// Contract: implementations must be safe for concurrent use. Resolved
// values end up inside connection strings, so implementations must
// never log them.
type Provider interface {
	// Name is the scheme part of a secretref: "env" claims
	// secretref:env:... references.
	Name() string

	// Resolve returns the credential for ref or an error when the
	// backing store does not hold it.
	Resolve(ctx context.Context, ref string) (string, error)

	// Close releases any client held against the backing store.
	Close() error
}
