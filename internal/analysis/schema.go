package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Bounds of a strict result.
const (
	MinConcepts        = 3
	MaxConcepts        = 10
	MinQuestions       = 4
	MaxQuestions       = 15
	MaxCitations       = 3
	OptionsPerQuestion = 4
)

// SchemaName identifies the canonical schema to providers that require one.
const SchemaName = "document_analysis"

var (
	schemaOnce     sync.Once
	canonical      *jsonschema.Schema
	canonicalJSON  json.RawMessage
	resolvedSchema *jsonschema.Resolved
	schemaErr      error
)

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

func nonEmptyString() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", MinLength: intPtr(1)}
}

func buildSchema() *jsonschema.Schema {
	concept := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"title":   nonEmptyString(),
			"summary": nonEmptyString(),
			"citations": {
				Type:     "array",
				Items:    &jsonschema.Schema{Type: "string"},
				MaxItems: intPtr(MaxCitations),
			},
			"importance": nonEmptyString(),
		},
		Required: []string{"title", "summary", "citations", "importance"},
	}

	question := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"question": nonEmptyString(),
			"options": {
				Type:     "array",
				Items:    nonEmptyString(),
				MinItems: intPtr(OptionsPerQuestion),
				MaxItems: intPtr(OptionsPerQuestion),
			},
			"correctAnswer": {
				Type:    "integer",
				Minimum: floatPtr(0),
				Maximum: floatPtr(OptionsPerQuestion - 1),
			},
			"concept": nonEmptyString(),
		},
		Required: []string{"question", "options", "correctAnswer", "concept"},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"concepts": {
				Type:     "array",
				Items:    concept,
				MinItems: intPtr(MinConcepts),
				MaxItems: intPtr(MaxConcepts),
			},
			"questions": {
				Type:     "array",
				Items:    question,
				MinItems: intPtr(MinQuestions),
				MaxItems: intPtr(MaxQuestions),
			},
		},
		Required: []string{"concepts", "questions"},
	}
}

func loadSchema() {
	schemaOnce.Do(func() {
		canonical = buildSchema()
		canonicalJSON, schemaErr = json.Marshal(canonical)
		if schemaErr != nil {
			return
		}
		resolvedSchema, schemaErr = canonical.Resolve(nil)
	})
}

// SchemaJSON returns the canonical result schema as JSON, suitable for
// providers that constrain generation with a JSON schema.
func SchemaJSON() (json.RawMessage, error) {
	loadSchema()
	if schemaErr != nil {
		return nil, fmt.Errorf("building result schema: %w", schemaErr)
	}
	return canonicalJSON, nil
}

// ValidateStrict decodes raw as a result and checks it against the canonical
// schema without any repair. Failures are returned as *Failure.
func ValidateStrict(raw []byte) (models.AnalysisResult, error) {
	loadSchema()
	if schemaErr != nil {
		return models.AnalysisResult{}, fail(FailureSchema, fmt.Errorf("building result schema: %w", schemaErr))
	}

	var instance any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &instance); err != nil {
		return models.AnalysisResult{}, fail(FailureParse, err)
	}
	if err := resolvedSchema.Validate(instance); err != nil {
		return models.AnalysisResult{}, fail(FailureSchema, err)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.AnalysisResult{}, fail(FailureParse, err)
	}
	if err := checkBounds(result, MaxConcepts, MaxQuestions); err != nil {
		return models.AnalysisResult{}, err
	}
	return result, nil
}

// checkBounds verifies the invariants every returned result must hold.
func checkBounds(r models.AnalysisResult, maxConcepts, maxQuestions int) error {
	switch {
	case len(r.Concepts) < MinConcepts || len(r.Concepts) > maxConcepts:
		return fail(FailureBounds, fmt.Errorf("%d concepts, want %d..%d", len(r.Concepts), MinConcepts, maxConcepts))
	case len(r.Questions) < MinQuestions || len(r.Questions) > maxQuestions:
		return fail(FailureBounds, fmt.Errorf("%d questions, want %d..%d", len(r.Questions), MinQuestions, maxQuestions))
	}
	for i, c := range r.Concepts {
		if len(c.Citations) > MaxCitations {
			return fail(FailureBounds, fmt.Errorf("concept %d has %d citations", i+1, len(c.Citations)))
		}
	}
	for i, q := range r.Questions {
		if len(q.Options) != OptionsPerQuestion {
			return fail(FailureBounds, fmt.Errorf("question %d has %d options", i+1, len(q.Options)))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= OptionsPerQuestion {
			return fail(FailureBounds, fmt.Errorf("question %d answer %d out of range", i+1, q.CorrectAnswer))
		}
	}
	return nil
}
