package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rvellido/taskweave/pkg/schema"
)

// documentSchemaJSON is the JSON Schema for imported task/workflow documents.
// Embedded as a constant to avoid filesystem dependencies.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://taskweave.dev/schemas/document.json",
  "type": "object",
  "properties": {
    "tasks": {
      "type": "array",
      "items": { "$ref": "#/$defs/task" }
    },
    "workflows": {
      "type": "array",
      "items": { "$ref": "#/$defs/workflow" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "task": {
      "type": "object",
      "required": ["id", "name"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string", "minLength": 1 },
        "description": { "type": "string" },
        "importance": { "type": "integer", "minimum": 1, "maximum": 10 },
        "urgency": { "type": "integer", "minimum": 1, "maximum": 10 },
        "duration_mins": { "type": "integer", "minimum": 0 },
        "deadline": { "type": "string", "format": "date-time" },
        "dependencies": {
          "type": "array",
          "items": { "type": "string" }
        },
        "is_async_trigger": { "type": "boolean" },
        "async_wait_mins": { "type": "integer", "minimum": 0 },
        "cognitive_complexity": { "type": "integer", "minimum": 0 },
        "recurrence": { "type": "string" },
        "completed": { "type": "boolean" },
        "created_at": { "type": "string", "format": "date-time" },
        "updated_at": { "type": "string", "format": "date-time" }
      },
      "additionalProperties": false
    },
    "workflow": {
      "type": "object",
      "required": ["id", "name", "steps"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string", "minLength": 1 },
        "steps": {
          "type": "array",
          "items": { "$ref": "#/$defs/step" }
        },
        "completed": { "type": "boolean" },
        "created_at": { "type": "string", "format": "date-time" },
        "updated_at": { "type": "string", "format": "date-time" }
      },
      "additionalProperties": false
    },
    "step": {
      "type": "object",
      "required": ["id", "name"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string", "minLength": 1 },
        "depends_on": {
          "type": "array",
          "items": { "type": "string" }
        },
        "duration_mins": { "type": "integer", "minimum": 0 },
        "importance": { "type": "integer", "minimum": 1, "maximum": 10 },
        "urgency": { "type": "integer", "minimum": 1, "maximum": 10 },
        "deadline": { "type": "string", "format": "date-time" },
        "is_async_trigger": { "type": "boolean" },
        "async_wait_mins": { "type": "integer", "minimum": 0 },
        "condition": { "type": "string" },
        "percent_complete": { "type": "integer", "minimum": 0, "maximum": 100 }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator validates raw import documents against the document
// JSON Schema (Draft 2020-12). Safe for concurrent use.
type JSONSchemaValidator struct {
	documentSchema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the embedded document schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document schema: %w", err)
	}
	if err := c.AddResource("https://taskweave.dev/schemas/document.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add document schema resource: %w", err)
	}

	docSchema, err := c.Compile("https://taskweave.dev/schemas/document.json")
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}

	return &JSONSchemaValidator{documentSchema: docSchema}, nil
}

// ValidateDocument validates a Document against the schema. Structural checks
// JSON Schema cannot express (duplicate IDs) are applied afterwards.
func (v *JSONSchemaValidator) ValidateDocument(doc *schema.Document) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "document is nil")
	}

	val, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize document").WithCause(err)
	}
	if err := v.documentSchema.Validate(val); err != nil {
		return toWeaveError(err)
	}

	seenTasks := make(map[string]struct{}, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if _, exists := seenTasks[t.ID]; exists {
			return schema.NewErrorf(schema.ErrCodeValidation, "duplicate task id %q", t.ID)
		}
		seenTasks[t.ID] = struct{}{}
	}
	for _, wf := range doc.Workflows {
		seenSteps := make(map[string]struct{}, len(wf.Steps))
		for _, s := range wf.Steps {
			if _, exists := seenSteps[s.ID]; exists {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"workflow %q has duplicate step id %q", wf.Name, s.ID)
			}
			seenSteps[s.ID] = struct{}{}
		}
	}

	return nil
}

// ValidateRaw validates raw JSON bytes against the document schema without
// first binding them to Go types, so unknown fields are rejected too.
func (v *JSONSchemaValidator) ValidateRaw(data []byte) error {
	val, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid JSON").WithCause(err)
	}
	if err := v.documentSchema.Validate(val); err != nil {
		return toWeaveError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toWeaveError converts a jsonschema.ValidationError into a WeaveError with
// one message per leaf violation.
func toWeaveError(err error) *schema.WeaveError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
