// Package hub implements the per-worker broadcast hub using the actor pattern.
//
// The Hub tracks live websocket sessions and their channel subscriptions and
// fans published events out to every subscriber of a channel. Uses a single
// goroutine + command channel (no mutexes). Per-connection write goroutines
// handle slow clients gracefully: a session whose send buffer is full is
// evicted instead of stalling the fan-out.
package hub
