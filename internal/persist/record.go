package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	recordSchema   = mustCompile("record.json", `{"type": "object"}`)
	listSchema     = mustCompile("record-list.json", `{"type": "array", "items": {"type": "object"}}`)
	envelopeSchema = mustCompile("record-envelope.json", `{
  "type": "object",
  "required": ["results"],
  "properties": {"results": {"type": "array", "items": {"type": "object"}}}
}`)
)

func mustCompile(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("persist: load schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// emptyVLMDesc is stored when the script has no prior vlmdesc.
var emptyVLMDesc = json.RawMessage(`{}`)

type record struct {
	ScriptID json.RawMessage `json:"script_id"`
	VLMDesc  json.RawMessage `json:"vlmdesc"`
}

// extractVLMDesc finds the script's vlmdesc in a candidate response body.
// It returns ErrRecordNotFound when the body holds no matching record.
func extractVLMDesc(body []byte, scriptID string) (json.RawMessage, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var list []record
	switch {
	case envelopeSchema.Validate(doc) == nil:
		var env struct {
			Results []record `json:"results"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode record envelope: %w", err)
		}
		list = env.Results
	case recordSchema.Validate(doc) == nil:
		var r record
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		return unwrapVLMDesc(r.VLMDesc), nil
	case listSchema.Validate(doc) == nil:
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode record list: %w", err)
		}
	default:
		return nil, ErrRecordNotFound
	}

	for _, r := range list {
		if matchesScript(r.ScriptID, scriptID) {
			return unwrapVLMDesc(r.VLMDesc), nil
		}
	}
	return nil, ErrRecordNotFound
}

// matchesScript compares a script_id that may be a JSON string or number.
func matchesScript(raw json.RawMessage, scriptID string) bool {
	if len(raw) == 0 {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == scriptID
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String() == scriptID
	}
	return false
}

// unwrapVLMDesc strips {"vlm_desc": X} wrappers left by earlier saves.
// Missing or null values become {}.
func unwrapVLMDesc(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyVLMDesc
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err == nil && len(wrapped) == 1 {
		if inner, ok := wrapped["vlm_desc"]; ok {
			return unwrapVLMDesc(inner)
		}
	}
	return json.RawMessage(trimmed)
}
