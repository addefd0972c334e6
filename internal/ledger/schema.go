package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema constrains the raw model payload stored alongside a
// decision: the envelope (action, confidence, reasoning) must be sane when
// present, everything else passes through untouched.
const responseSchema = `{
  "type": "object",
  "properties": {
    "action": {
      "type": "string",
      "enum": ["CREATE_GRID", "STOP_GRID", "ADJUST_GRID", "HOLD"]
    },
    "symbol": {"type": "string", "minLength": 1},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"}
  }
}`

var compiledResponseSchema = mustCompileSchema(responseSchema)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decision_response.json", bytes.NewReader([]byte(raw))); err != nil {
		panic(err)
	}
	return compiler.MustCompile("decision_response.json")
}

// ValidateResponsePayload checks a raw llm_response blob against the
// decision envelope schema. Non-object payloads are rejected; unknown keys
// are allowed.
func ValidateResponsePayload(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	// UseNumber keeps numeric bounds exact for the schema check.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("llm_response is not valid JSON: %w", err)
	}
	if err := compiledResponseSchema.Validate(doc); err != nil {
		return fmt.Errorf("llm_response rejected by schema: %w", err)
	}
	return nil
}
