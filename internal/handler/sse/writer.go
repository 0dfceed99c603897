// Package sse holds the low-level Server-Sent Events plumbing shared by
// the streaming handlers: frame delivery with immediate flushing and
// periodic keep-alive comments for proxies that drop idle connections.
package sse

import (
	"fmt"
	"io"
	"net/http"
)

// Writer delivers pre-serialized SSE frames over one HTTP response.
// Frames are flushed immediately; generation must never sit in a buffer.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for event streaming and sends the headers. It
// returns an error when the ResponseWriter cannot flush, which means the
// server stack is buffering and streaming could not work.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteFrame sends one serialized frame and flushes.
func (s *Writer) WriteFrame(frame string) error {
	if _, err := io.WriteString(s.w, frame); err != nil {
		return fmt.Errorf("write frame failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment (": keepalive") and flushes.
// SSE spec: lines starting with : are comments, ignored by clients.
// Returns an error when the connection is closed.
func (s *Writer) WriteKeepAlive() error {
	if _, err := io.WriteString(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	s.flusher.Flush()

	// Health check: a zero-byte write surfaces closed connections that
	// the comment write itself may not.
	if _, err := s.w.Write([]byte{}); err != nil {
		return fmt.Errorf("connection closed: %w", err)
	}
	return nil
}
