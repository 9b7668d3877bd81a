package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentmemory/backend/internal/apierror"
)

// schemaSet holds the compiled request-body schemas for every write
// endpoint that accepts attacker-controlled JSON from a host hook, so
// malformed bodies are rejected before a single component method runs.
type schemaSet struct {
	messageSend *jsonschema.Schema
	actionCreate *jsonschema.Schema
}

const messageSendSchemaJSON = `{
	"type": "object",
	"required": ["from", "to"],
	"properties": {
		"from": {"type": "string", "minLength": 1},
		"to": {"type": "string", "minLength": 1},
		"topic": {"type": "string"},
		"kind": {"type": "string"},
		"priority": {"type": "integer", "minimum": 0, "maximum": 9},
		"ttlSeconds": {"type": "integer", "minimum": 0}
	}
}`

const actionCreateSchemaJSON = `{
	"type": "object",
	"required": ["toolName", "sessionId"],
	"properties": {
		"toolName": {"type": "string", "minLength": 1},
		"sessionId": {"type": "string"},
		"exitCode": {"type": "integer"}
	}
}`

func compileSchema(name, schemaJSON string) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s schema: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name+".json", doc); err != nil {
		return nil, fmt.Errorf("add %s schema resource: %w", name, err)
	}
	schema, err := c.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return schema, nil
}

func newSchemaSet() (*schemaSet, error) {
	send, err := compileSchema("message-send", messageSendSchemaJSON)
	if err != nil {
		return nil, err
	}
	action, err := compileSchema("action-create", actionCreateSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &schemaSet{messageSend: send, actionCreate: action}, nil
}

// validateBody decodes raw into a generic document and validates it
// against schema before the caller unmarshals it into a typed struct,
// returning a validation apierror on the first failing rule.
func validateBody(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apierror.Validation("invalid JSON body: " + err.Error())
	}
	if err := schema.Validate(doc); err != nil {
		return apierror.Validation("schema validation failed: " + err.Error())
	}
	return nil
}
