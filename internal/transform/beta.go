package transform

import "strings"

// FilterBetaHeader filters the comma-separated anthropic-beta header value
// down to tokens the target backend/model combination can accept. For
// gemini_bridge, every thinking* token is dropped outright; for any
// non-reasoning-capable target, tokens mentioning "thinking" or "effort"
// are dropped. An empty result means the header should be omitted
// entirely.
func FilterBetaHeader(header string, model string, backend string) string {
	if header == "" {
		return ""
	}

	parts := strings.Split(header, ",")
	kept := parts[:0]
	for _, raw := range parts {
		part := strings.TrimSpace(raw)
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)

		if backend == "gemini_bridge" && strings.HasPrefix(lower, "thinking") {
			continue
		}
		if !IsReasoningModel(model, backend) && (strings.Contains(lower, "thinking") || strings.Contains(lower, "effort")) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, ",")
}
