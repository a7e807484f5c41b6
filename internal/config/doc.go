// Package config loads process configuration from the environment.
//
// Startup arguments (--port, --mode) parsed in cmd/server override the
// corresponding environment values; nothing here is runtime-mutable.
package config
