// Package stream relays an upstream SSE response body to the client
// verbatim, except for backends whose tool_use.input fields need the
// string-to-object repair pass.
package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/howard-nolan/claude-gateway/internal/transform"
)

// Relay copies upstream's SSE body to w, flushing after every line so the
// client sees tokens as they arrive. When repair is true, each "data: "
// line is passed through transform.FixStreamingToolInputs before being
// forwarded — used for the custom and gemini_bridge backends, whose
// upstreams sometimes emit tool_use.input as a JSON string instead of an
// object.
func Relay(w http.ResponseWriter, upstream io.Reader, repair bool) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support flushing (http.Flusher)")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if repair {
			line = transform.FixStreamingToolInputs(line)
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("writing SSE line: %w", err)
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return fmt.Errorf("writing SSE newline: %w", err)
		}
		flusher.Flush()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading upstream stream: %w", err)
	}
	return nil
}

// RelayStatusOnly writes just upstream's status code and headers with no
// body — used when an upstream streaming call errors out before producing
// any bytes worth relaying.
func RelayStatusOnly(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// Buffer reads the entire upstream body, applying the repair pass first if
// requested. Used when a caller needs the full bytes (e.g. to compute
// usage deltas or log sizes) rather than relaying incrementally.
func Buffer(upstream io.Reader, repair bool) ([]byte, error) {
	raw, err := io.ReadAll(upstream)
	if err != nil {
		return nil, err
	}
	if repair {
		raw = transform.FixStreamingToolInputs(raw)
	}
	return raw, nil
}

// SplitSSELines splits a raw SSE body into its newline-delimited lines,
// dropping the final empty element produced by a trailing newline. Used by
// tests that assert on individual "data: ..." lines.
func SplitSSELines(raw []byte) [][]byte {
	lines := bytes.Split(raw, []byte("\n"))
	if n := len(lines); n > 0 && len(lines[n-1]) == 0 {
		lines = lines[:n-1]
	}
	return lines
}
