// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for session event listeners
	EventChannelBuffer = 100
)

// Capture upload constants
const (
	// MaxUploadSize is the maximum size of one multipart capture request (32MB)
	MaxUploadSize = 32 << 20

	// MaxFramesPerCapture caps the number of frames a client may send in one burst
	MaxFramesPerCapture = 10
)

// Session registry constants
const (
	// SessionCleanupInterval is how often finished web sessions are swept
	SessionCleanupInterval = 5 * time.Minute
)

// Server timeouts
const (
	// RequestTimeout bounds a single API request, including a capture and its recognition call
	RequestTimeout = 2 * time.Minute
)
