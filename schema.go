package cogito

import (
	"bytes"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Structured model output is validated against a JSON schema before it is
// decoded. The schemas are the contract with the model; anything that fails
// validation is treated as an LLM failure and routed to the deterministic
// fallback path.

// MustSchema compiles a JSON schema from source. It panics on invalid schema
// source, which only happens on programming errors in embedded schemas.
func MustSchema(name string, source string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
	if err != nil {
		panic("invalid schema source " + name + ": " + err.Error())
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic("failed to add schema resource " + name + ": " + err.Error())
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		panic("failed to compile schema " + name + ": " + err.Error())
	}

	return schema
}

// ValidateJSON checks data against the schema.
func ValidateJSON(schema *jsonschema.Schema, data []byte) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return goerr.Wrap(err, "model output is not valid JSON")
	}

	if err := schema.Validate(instance); err != nil {
		return goerr.Wrap(err, "model output does not match schema")
	}

	return nil
}

const checkpointVerdictSchema = `{
	"type": "object",
	"properties": {
		"should_continue": {"type": "boolean"},
		"should_adapt": {"type": "boolean"},
		"should_replan": {"type": "boolean"},
		"goal_achieved": {"type": "boolean"},
		"adaptation": {"type": "string"},
		"reasoning": {"type": "string"}
	},
	"required": ["should_continue", "goal_achieved"]
}`

var checkpointSchema = MustSchema("checkpoint_verdict.json", checkpointVerdictSchema)

func validateCheckpointVerdict(data []byte) error {
	return ValidateJSON(checkpointSchema, data)
}
