// Package postgres implements the PostgreSQL-backed stores: the master
// tenant registry and the per-tenant audit log.
//
// Connections use pgx through database/sql with sqlx on top. The audit
// store opens one pool per distinct tenant DSN, lazily, and reuses it
// for the process lifetime.
package postgres
