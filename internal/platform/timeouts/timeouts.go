// Package timeouts defines shared timeout constants used across entrypoints.
// Centralizing these values prevents drift between the HTTP server, the
// health endpoint and the CLI.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Export caps a single CLI sheet export including the upload.
const Export = 2 * time.Minute
