// Package redis implements Redis-backed stores.
//
// Provides the RecordStore (catalog products and chat messages, with
// insertion order preserved) and the AuthSessionRepo used by the auth gate.
// The Redis instance is the only resource shared across workers; every
// operation is a single command or pipeline, so concurrent workers need no
// additional locking here.
package redis
