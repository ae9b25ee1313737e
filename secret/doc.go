// Package secret resolves secret references embedded in configuration
// values, most notably tenant connection strings.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider + Registry)
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:env:ACME_DB_PASSWORD
//   - Inline use:  postgres://app:secretref:env:ACME_DB_PASSWORD@db/acme
//
// Plain values go through strict environment expansion instead, so a DSN
// like "postgres://app:${DB_PASSWORD}@db/acme" fails loudly when the
// variable is unset rather than producing a broken connection string.
package secret
