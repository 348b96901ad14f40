// Package transform rewrites Anthropic Messages API payloads in flight:
// stripping thinking blocks the upstream won't accept, filtering
// incompatible beta features, sanitizing bodies for providers that reject
// non-standard fields, and repairing malformed tool-call deltas in SSE
// responses.
//
// Every function here is a pure, idempotent transformation of a decoded
// JSON body (map[string]any) or of raw SSE bytes — none of them do I/O.
package transform

import "strings"

// reasoningModelMarkers are the model-name substrings that mark a model as
// supporting extended/adaptive thinking.
var reasoningModelMarkers = []string{"sonnet-3-7", "sonnet-4-5", "claude-3-7", "opus-4-5"}

// IsReasoningModel reports whether the given outbound model, on the given
// backend, is reasoning-capable: only the real anthropic backend ever is,
// and only for a handful of named model families.
func IsReasoningModel(model string, backend string) bool {
	if backend != "anthropic" {
		return false
	}
	lower := strings.ToLower(model)
	for _, marker := range reasoningModelMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// StripThinkingBlocks removes any content block of type "thinking" or
// "redacted_thinking" from every message's content list, in place, for
// every backend — thinking blocks carry a client-generated signature no
// backend but the one that produced them will accept.
func StripThinkingBlocks(body map[string]any) {
	messages, ok := body["messages"].([]any)
	if !ok {
		return
	}
	for _, m := range messages {
		message, ok := m.(map[string]any)
		if !ok {
			continue
		}
		content, ok := message["content"].([]any)
		if !ok {
			continue
		}
		filtered := content[:0]
		for _, b := range content {
			block, ok := b.(map[string]any)
			if !ok {
				filtered = append(filtered, b)
				continue
			}
			if t, _ := block["type"].(string); t == "thinking" || t == "redacted_thinking" {
				continue
			}
			filtered = append(filtered, b)
		}
		message["content"] = filtered
	}
}

// StripReasoningParams deletes the top-level "thinking" and "effort" keys
// when the target backend/model isn't reasoning-capable.
func StripReasoningParams(body map[string]any, model string, backend string) {
	if IsReasoningModel(model, backend) {
		return
	}
	delete(body, "thinking")
	delete(body, "effort")
}
