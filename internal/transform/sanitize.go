package transform

import (
	"encoding/json"
	"strings"
)

// allowedTopKeys are the only top-level request fields the generic
// Anthropic-compatible "custom" backend is guaranteed to accept.
var allowedTopKeys = map[string]bool{
	"model": true, "messages": true, "system": true, "tools": true,
	"tool_choice": true, "max_tokens": true, "stream": true,
	"temperature": true, "top_p": true, "top_k": true, "stop_sequences": true,
}

var allowedSystemBlockKeys = map[string]bool{"type": true, "text": true}

var allowedToolKeys = map[string]bool{"name": true, "description": true, "input_schema": true, "type": true}

var allowedMessageKeys = map[string]bool{"role": true, "content": true}

// allowedContentBlockKeys maps a content block's "type" to the fields it's
// allowed to carry. A type not in this table keeps only "type" itself.
var allowedContentBlockKeys = map[string]map[string]bool{
	"text":        {"type": true, "text": true},
	"tool_use":    {"type": true, "id": true, "name": true, "input": true},
	"tool_result": {"type": true, "tool_use_id": true, "content": true, "is_error": true},
	"image":       {"type": true, "source": true},
}

// SanitizeForCustomProvider deep-sanitizes a decoded request body in
// place, keeping only fields the custom backend's strict Anthropic
// compatibility layer is known to accept. No message is ever dropped or
// truncated — only non-standard keys are removed.
func SanitizeForCustomProvider(body map[string]any) {
	deleteExcept(body, allowedTopKeys)

	if system, ok := body["system"].([]any); ok {
		for _, b := range system {
			if block, ok := b.(map[string]any); ok {
				deleteExcept(block, allowedSystemBlockKeys)
			}
		}
	}

	if tools, ok := body["tools"].([]any); ok {
		for _, tl := range tools {
			if tool, ok := tl.(map[string]any); ok {
				deleteExcept(tool, allowedToolKeys)
			}
		}
	}

	if messages, ok := body["messages"].([]any); ok {
		for _, m := range messages {
			message, ok := m.(map[string]any)
			if !ok {
				continue
			}
			deleteExcept(message, allowedMessageKeys)

			content, ok := message["content"].([]any)
			if !ok {
				continue
			}
			for _, b := range content {
				block, ok := b.(map[string]any)
				if !ok {
					continue
				}
				sanitizeBlock(block)
			}
		}
	}
}

func sanitizeBlock(block map[string]any) {
	blockType, _ := block["type"].(string)
	allowed, ok := allowedContentBlockKeys[blockType]
	if !ok {
		allowed = map[string]bool{"type": true}
	}
	deleteExcept(block, allowed)

	if blockType == "tool_use" {
		if raw, ok := block["input"].(string); ok {
			block["input"] = coerceToolInput(raw)
		}
	}

	if blockType == "tool_result" {
		if subContent, ok := block["content"].([]any); ok {
			for _, s := range subContent {
				if sub, ok := s.(map[string]any); ok {
					sanitizeBlock(sub)
				}
			}
		}
	}
}

// coerceToolInput parses a tool_use.input string field as JSON, per the
// malformed-input repair rule: non-object results and parse failures both
// become an empty object, never a dropped field.
func coerceToolInput(raw string) map[string]any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return map[string]any{}
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return obj
}

func deleteExcept(m map[string]any, allowed map[string]bool) {
	for key := range m {
		if !allowed[key] {
			delete(m, key)
		}
	}
}

