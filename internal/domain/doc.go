// Package domain defines the core domain types and interfaces.
//
// This package contains the record model (products, chat messages), the
// broadcast channel and event types, and the store/gate contracts implemented
// by the redis, database, and memstore packages. No implementation code -
// just contracts. Prevents circular imports by keeping interfaces on the
// consumer side.
package domain
