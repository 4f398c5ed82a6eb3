// Package hub delivers change events to subscribed client connections.
//
// The Registry tracks which connection is interested in which grid cells of
// which organization and fans published events out accordingly. Each
// subscriber has its own bounded queue and writer goroutine: a slow or dead
// connection loses events locally but can never stall the publishing side.
//
// The WebSocket handler is the default transport; the Sink interface keeps
// the registry independent of it.
package hub
