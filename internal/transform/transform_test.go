package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestStripThinkingBlocksRemovesThinkingAndRedacted(t *testing.T) {
	body := decode(t, `{"messages":[{"role":"user","content":[
		{"type":"thinking","thinking":"...","signature":"x"},
		{"type":"redacted_thinking","data":"y"},
		{"type":"text","text":"hi"}
	]}]}`)

	StripThinkingBlocks(body)

	messages := body["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 1)
	assert.Equal(t, "text", content[0].(map[string]any)["type"])
}

func TestStripThinkingBlocksIsIdempotent(t *testing.T) {
	body := decode(t, `{"messages":[{"role":"user","content":[{"type":"thinking"},{"type":"text","text":"hi"}]}]}`)
	StripThinkingBlocks(body)
	first, _ := json.Marshal(body)
	StripThinkingBlocks(body)
	second, _ := json.Marshal(body)
	assert.JSONEq(t, string(first), string(second))
}

func TestIsReasoningModel(t *testing.T) {
	assert.True(t, IsReasoningModel("claude-sonnet-4-5-20250929", "anthropic"))
	assert.True(t, IsReasoningModel("claude-3-7-sonnet-latest", "anthropic"))
	assert.False(t, IsReasoningModel("claude-sonnet-4-5-20250929", "custom"))
	assert.False(t, IsReasoningModel("claude-sonnet-4-5-20250929", "gemini_bridge"))
	assert.False(t, IsReasoningModel("glm-4.7", "glm"))
}

func TestStripReasoningParamsDeletesWhenNotCapable(t *testing.T) {
	body := decode(t, `{"model":"glm-4.7","thinking":{"type":"enabled"},"effort":"high"}`)
	StripReasoningParams(body, "glm-4.7", "glm")
	assert.NotContains(t, body, "thinking")
	assert.NotContains(t, body, "effort")
}

func TestStripReasoningParamsKeepsWhenCapable(t *testing.T) {
	body := decode(t, `{"model":"claude-sonnet-4-5-20250929","thinking":{"type":"enabled"}}`)
	StripReasoningParams(body, "claude-sonnet-4-5-20250929", "anthropic")
	assert.Contains(t, body, "thinking")
}

func TestFilterBetaHeaderDropsThinkingForNonReasoningTarget(t *testing.T) {
	out := FilterBetaHeader("interleaved-thinking-2025-05-14,computer-use-2025-01-24", "glm-4.7", "glm")
	assert.Equal(t, "computer-use-2025-01-24", out)
}

func TestFilterBetaHeaderDropsAllThinkingForGeminiBridge(t *testing.T) {
	out := FilterBetaHeader("interleaved-thinking-2025-05-14,computer-use-2025-01-24", "gemini-2.5-pro", "gemini_bridge")
	assert.Equal(t, "computer-use-2025-01-24", out)
}

func TestFilterBetaHeaderKeepsThinkingForReasoningTarget(t *testing.T) {
	out := FilterBetaHeader("interleaved-thinking-2025-05-14", "claude-sonnet-4-5-20250929", "anthropic")
	assert.Equal(t, "interleaved-thinking-2025-05-14", out)
}

func TestFilterBetaHeaderEmptyInputReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", FilterBetaHeader("", "glm-4.7", "glm"))
}

func TestSanitizeForCustomProviderStripsNonStandardFields(t *testing.T) {
	body := decode(t, `{
		"model":"claude-sonnet-4-5-20250929",
		"messages":[{"role":"user","content":[{"type":"text","text":"hi","cache_control":{"type":"ephemeral"}}],"metadata":"x"}],
		"system":[{"type":"text","text":"sys","cache_control":{}}],
		"tools":[{"name":"t","description":"d","input_schema":{},"type":"custom","extra":"x"}],
		"metadata":{"user_id":"u1"},
		"citations":true
	}`)

	SanitizeForCustomProvider(body)

	assert.NotContains(t, body, "metadata")
	assert.NotContains(t, body, "citations")

	messages := body["messages"].([]any)
	msg := messages[0].(map[string]any)
	assert.NotContains(t, msg, "metadata")

	content := msg["content"].([]any)
	block := content[0].(map[string]any)
	assert.NotContains(t, block, "cache_control")
	assert.Equal(t, "hi", block["text"])

	system := body["system"].([]any)
	sysBlock := system[0].(map[string]any)
	assert.NotContains(t, sysBlock, "cache_control")

	tools := body["tools"].([]any)
	tool := tools[0].(map[string]any)
	assert.NotContains(t, tool, "extra")
}

func TestSanitizeForCustomProviderCoercesStringToolInput(t *testing.T) {
	body := decode(t, `{"messages":[{"role":"assistant","content":[
		{"type":"tool_use","id":"1","name":"x","input":"{\"a\":1}"}
	]}]}`)

	SanitizeForCustomProvider(body)

	content := body["messages"].([]any)[0].(map[string]any)["content"].([]any)
	block := content[0].(map[string]any)
	input, ok := block["input"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, input["a"])
}

func TestSanitizeForCustomProviderEmptyOrInvalidInputBecomesEmptyObject(t *testing.T) {
	body := decode(t, `{"messages":[{"role":"assistant","content":[
		{"type":"tool_use","id":"1","name":"x","input":"not json"},
		{"type":"tool_use","id":"2","name":"y","input":""}
	]}]}`)

	SanitizeForCustomProvider(body)

	content := body["messages"].([]any)[0].(map[string]any)["content"].([]any)
	assert.Equal(t, map[string]any{}, content[0].(map[string]any)["input"])
	assert.Equal(t, map[string]any{}, content[1].(map[string]any)["input"])
}

func TestSanitizeForCustomProviderNeverDropsMessages(t *testing.T) {
	body := decode(t, `{"messages":[{"role":"user","content":[{"type":"text","text":"a"}]},{"role":"assistant","content":[{"type":"text","text":"b"}]}]}`)
	SanitizeForCustomProvider(body)
	assert.Len(t, body["messages"].([]any), 2)
}

func TestSanitizeForCustomProviderIsIdempotent(t *testing.T) {
	body := decode(t, `{"model":"m","messages":[{"role":"user","content":[{"type":"tool_use","id":"1","name":"x","input":"{\"a\":1}","cache_control":{}}]}],"extra":"x"}`)
	SanitizeForCustomProvider(body)
	first, _ := json.Marshal(body)
	SanitizeForCustomProvider(body)
	second, _ := json.Marshal(body)
	assert.JSONEq(t, string(first), string(second))
}

func TestFixStreamingToolInputsRepairsContentBlockStart(t *testing.T) {
	raw := []byte(`data: {"type":"content_block_start","content_block":{"type":"tool_use","id":"1","name":"x","input":"{\"a\":1}"}}` + "\n\n" + `data: [DONE]`)
	fixed := FixStreamingToolInputs(raw)

	var event map[string]any
	lines := splitLines(fixed)
	require.NoError(t, json.Unmarshal([]byte(lines[0][len("data: "):]), &event))
	block := event["content_block"].(map[string]any)
	input, ok := block["input"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, input["a"])
}

func TestFixStreamingToolInputsRepairsDelta(t *testing.T) {
	raw := []byte(`data: {"type":"content_block_delta","delta":{"type":"tool_use","input":"{\"b\":2}"}}`)
	fixed := FixStreamingToolInputs(raw)
	var event map[string]any
	require.NoError(t, json.Unmarshal(fixed[len("data: "):], &event))
	delta := event["delta"].(map[string]any)
	assert.EqualValues(t, 2, delta["input"].(map[string]any)["b"])
}

func TestFixStreamingToolInputsPassesThroughDoneAndNonDataLines(t *testing.T) {
	raw := []byte("event: ping\n\ndata: [DONE]")
	fixed := FixStreamingToolInputs(raw)
	assert.Equal(t, "event: ping\n\ndata: [DONE]", string(fixed))
}

func TestFixStreamingToolInputsIsIdempotent(t *testing.T) {
	raw := []byte(`data: {"type":"content_block_start","content_block":{"type":"tool_use","id":"1","name":"x","input":"{\"a\":1}"}}`)
	first := FixStreamingToolInputs(raw)
	second := FixStreamingToolInputs(first)
	assert.Equal(t, string(first), string(second))
}

func splitLines(b []byte) []string {
	var lines []string
	var cur []byte
	for _, c := range b {
		if c == '\n' {
			lines = append(lines, string(cur))
			cur = nil
			continue
		}
		cur = append(cur, c)
	}
	lines = append(lines, string(cur))
	return lines
}
