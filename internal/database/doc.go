// Package database implements the Postgres-backed record stores.
//
// An alternative to the Redis backend for deployments that already run
// Postgres; selected when DATABASE_URL is set. Durability and isolation are
// the database's contract, not this package's: every operation is a single
// statement and concurrent workers coordinate through the database alone.
package database
