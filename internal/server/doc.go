// Package server wires the HTTP and websocket surface of one worker.
//
// Page and REST routes are thin collaborators; the realtime core is the
// websocket handler, which runs the auth gate, promotes the connection to a
// hub session, syncs the join snapshots, and pumps inbound events through the
// dispatch table.
package server
