// Package ingest turns third-party task exports into validated documents.
// An optional jq transform reshapes arbitrary JSON into the document format
// before structural and graph validation run; records arriving without IDs
// get generated ones so downstream stages can assume identity.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rvellido/taskweave/internal/expressions"
	"github.com/rvellido/taskweave/internal/validation"
	"github.com/rvellido/taskweave/pkg/schema"
)

// Importer runs the import pipeline: decode, transform, identify, validate.
type Importer struct {
	jq        *expressions.GoJQEngine
	validator *validation.DocumentValidator
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewImporter creates an Importer with the document schema pre-compiled.
func NewImporter(logger *slog.Logger) (*Importer, error) {
	dv, err := validation.NewDocumentValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		jq:        expressions.NewGoJQEngine(),
		validator: dv,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}, nil
}

// Import decodes raw JSON, applies the jq transform when one is given, fills
// missing IDs, and validates the shaped document. A non-nil document always
// comes back with a ValidationResult; the error return is reserved for inputs
// that never produced a document at all.
func (im *Importer) Import(ctx context.Context, raw []byte, transform string) (*schema.Document, *schema.ValidationResult, error) {
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, nil, schema.NewError(schema.ErrCodeImport, "input is not valid JSON").WithCause(err)
	}

	shaped := input
	if transform != "" {
		out, err := im.jq.Run(ctx, transform, input)
		if err != nil {
			return nil, nil, schema.NewErrorf(schema.ErrCodeImport,
				"import transform failed: %s", err.Error()).WithCause(err)
		}
		shaped = out
	}

	obj, ok := shaped.(map[string]any)
	if !ok {
		return nil, nil, schema.NewErrorf(schema.ErrCodeImport,
			"import must produce a single document object, got %T", shaped)
	}
	im.identify(obj)

	shapedJSON, err := json.Marshal(obj)
	if err != nil {
		return nil, nil, schema.NewError(schema.ErrCodeImport, "failed to serialize shaped input").WithCause(err)
	}

	// Structural validation runs against the shaped JSON itself, not the
	// bound struct, so fields the document format does not know about are
	// rejected instead of silently dropped.
	if err := im.validator.ValidateRaw(shapedJSON); err != nil {
		result := &schema.ValidationResult{}
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return nil, result, nil
	}

	var doc schema.Document
	if err := json.Unmarshal(shapedJSON, &doc); err != nil {
		return nil, nil, schema.NewError(schema.ErrCodeImport,
			"shaped input does not match the document format").WithCause(err)
	}
	im.stamp(&doc)

	result := im.validator.Validate(&doc)
	im.logger.Debug("import validated",
		"tasks", len(doc.Tasks),
		"workflows", len(doc.Workflows),
		"errors", len(result.Errors),
		"warnings", len(result.Warnings))

	return &doc, result, nil
}

// identify fills missing record IDs in place on the shaped JSON object.
// Existing IDs are never overwritten, so re-importing an already identified
// document is a no-op.
func (im *Importer) identify(obj map[string]any) {
	fill := func(rec map[string]any) {
		if id, _ := rec["id"].(string); id == "" {
			rec["id"] = im.newID()
		}
	}

	if tasks, ok := obj["tasks"].([]any); ok {
		for _, t := range tasks {
			if rec, ok := t.(map[string]any); ok {
				fill(rec)
			}
		}
	}
	if workflows, ok := obj["workflows"].([]any); ok {
		for _, w := range workflows {
			rec, ok := w.(map[string]any)
			if !ok {
				continue
			}
			fill(rec)
			if steps, ok := rec["steps"].([]any); ok {
				for _, s := range steps {
					if step, ok := s.(map[string]any); ok {
						fill(step)
					}
				}
			}
		}
	}
}

// stamp sets creation and update times on records that arrived without them.
func (im *Importer) stamp(doc *schema.Document) {
	now := im.now()
	for i := range doc.Tasks {
		if doc.Tasks[i].CreatedAt.IsZero() {
			doc.Tasks[i].CreatedAt = now
		}
		if doc.Tasks[i].UpdatedAt.IsZero() {
			doc.Tasks[i].UpdatedAt = now
		}
	}
	for i := range doc.Workflows {
		if doc.Workflows[i].CreatedAt.IsZero() {
			doc.Workflows[i].CreatedAt = now
		}
		if doc.Workflows[i].UpdatedAt.IsZero() {
			doc.Workflows[i].UpdatedAt = now
		}
	}
}
