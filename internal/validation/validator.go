package validation

import (
	"fmt"

	"github.com/rvellido/taskweave/pkg/schema"
)

// DocumentValidator orchestrates the validation pipeline for an imported or
// edited document:
//
//  1. Structural (JSON Schema)
//  2. Dependency graph per workflow (orphans, then cycles)
//  3. Dependency graph across standalone tasks
//
// Structural errors short-circuit: graph stages assume well-formed records.
type DocumentValidator struct {
	jsonSchema *JSONSchemaValidator
}

// NewDocumentValidator creates a DocumentValidator with the document schema
// pre-compiled.
func NewDocumentValidator() (*DocumentValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &DocumentValidator{jsonSchema: jsv}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
func (dv *DocumentValidator) Validate(doc *schema.Document) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if err := dv.jsonSchema.ValidateDocument(doc); err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	for i := range doc.Workflows {
		wf := &doc.Workflows[i]
		wfResult := ValidateWorkflowDependencies(wf.Steps)
		for _, issue := range wfResult.Errors {
			result.AddError(
				fmt.Sprintf("workflows[%d].%s", i, issue.Path),
				issue.Code, issue.Message,
			)
		}
	}

	result.Merge(ValidateTaskDependencies(doc.Tasks))

	return result
}

// ValidateDocument returns a structured error when the document is invalid,
// nil when it is valid.
func (dv *DocumentValidator) ValidateDocument(doc *schema.Document) error {
	return dv.Validate(doc).ToError()
}

// ValidateRaw checks raw JSON bytes against the document schema before they
// are bound to Go types, so unknown fields are still visible.
func (dv *DocumentValidator) ValidateRaw(data []byte) error {
	return dv.jsonSchema.ValidateRaw(data)
}
