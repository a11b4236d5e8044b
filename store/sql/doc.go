// Package sqlstore provides bun-backed implementations of the durable store
// contracts in core, for PostgreSQL and SQLite.
package sqlstore
