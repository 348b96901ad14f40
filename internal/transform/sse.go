package transform

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
)

// FixStreamingToolInputs scans an SSE response body line by line and
// repairs any tool_use block whose "input" field arrived as a JSON-encoded
// string rather than an object — a malformed shape some backends emit
// mid-stream. It looks inside content_block, delta, and message.content[]
// on every event, not just content_block_start. The data: [DONE]
// terminator and any non-"data: " line pass through unchanged, and a line
// that fails to parse as JSON is re-emitted verbatim.
func FixStreamingToolInputs(raw []byte) []byte {
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	first := true
	for scanner.Scan() {
		if !first {
			out.WriteByte('\n')
		}
		first = false

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") || strings.TrimSpace(line) == "data: [DONE]" {
			out.WriteString(line)
			continue
		}

		var event map[string]any
		if err := json.Unmarshal([]byte(line[len("data: "):]), &event); err != nil {
			out.WriteString(line)
			continue
		}

		if block, ok := event["content_block"].(map[string]any); ok {
			fixToolInput(block)
		}
		if delta, ok := event["delta"].(map[string]any); ok {
			fixToolInput(delta)
		}
		if message, ok := event["message"].(map[string]any); ok {
			if content, ok := message["content"].([]any); ok {
				for _, cb := range content {
					if block, ok := cb.(map[string]any); ok {
						fixToolInput(block)
					}
				}
			}
		}

		fixed, err := json.Marshal(event)
		if err != nil {
			out.WriteString(line)
			continue
		}
		out.WriteString("data: ")
		out.Write(fixed)
	}

	return out.Bytes()
}

// fixToolInput coerces obj's "input" field to an object when obj is a
// tool_use block and input arrived as a string. Returns true if it
// changed anything.
func fixToolInput(obj map[string]any) bool {
	if t, _ := obj["type"].(string); t != "tool_use" {
		return false
	}
	raw, ok := obj["input"].(string)
	if !ok {
		return false
	}
	obj["input"] = coerceToolInput(raw)
	return true
}
