package main

import (
	"encoding/json"

	"github.com/rvellido/taskweave/internal/validation"
	"github.com/rvellido/taskweave/pkg/schema"
)

type valResult = schema.ValidationResult

func validateRaw(dv *validation.DocumentValidator, raw []byte) (*valResult, error) {
	if err := dv.ValidateRaw(raw); err != nil {
		res := &schema.ValidationResult{}
		res.AddError("/", schema.ErrCodeValidation, err.Error())
		return res, nil
	}
	var doc schema.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return dv.Validate(&doc), nil
}

func docOf(tasks []schema.Task, workflows []schema.Workflow) *schema.Document {
	return &schema.Document{Tasks: tasks, Workflows: workflows}
}

func derefTasks(tasks []*schema.Task) []schema.Task {
	out := make([]schema.Task, len(tasks))
	for i, t := range tasks {
		out[i] = *t
	}
	return out
}

func derefWorkflows(workflows []*schema.Workflow) []schema.Workflow {
	out := make([]schema.Workflow, len(workflows))
	for i, wf := range workflows {
		out[i] = *wf
	}
	return out
}
