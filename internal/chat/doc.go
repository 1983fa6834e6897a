// Package chat implements the core of the BisonChat server.
//
// The implementation is organized into specialized files for the shared
// directory, its reader/writer gate, command dispatch, message routing,
// session lifecycle, and the TCP and WebSocket transports to keep the
// codebase maintainable and testable as the project grows.
package chat
