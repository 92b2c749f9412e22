package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Limits applied to a repaired free-form result.
const (
	LenientMaxConcepts  = 8
	LenientMaxQuestions = 12
)

// Placeholders used when a field cannot be repaired from the model output.
const (
	DefaultSummary    = "No summary available."
	DefaultImportance = "Supporting idea"
)

// fenceMarker matches a markdown code fence and its optional language tag.
var fenceMarker = regexp.MustCompile("```[A-Za-z0-9_+-]*")

var defaultOptions = [OptionsPerQuestion]string{"Option A", "Option B", "Option C", "Option D"}

// Normalize turns free-form model output into a result. Markdown fences and
// any prose around the outermost JSON object are discarded, then each concept
// and question is repaired field by field. Output that cannot be parsed,
// lacks the concepts and questions arrays, or ends up with fewer than
// MinConcepts concepts or MinQuestions questions is rejected with a *Failure.
func Normalize(text string) (models.AnalysisResult, error) {
	body, err := extractObject(stripFences(text))
	if err != nil {
		return models.AnalysisResult{}, err
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return models.AnalysisResult{}, fail(FailureParse, err)
	}

	rawConcepts, ok := doc["concepts"].([]any)
	if !ok {
		return models.AnalysisResult{}, fail(FailureShape, errors.New("concepts is missing or not an array"))
	}
	rawQuestions, ok := doc["questions"].([]any)
	if !ok {
		return models.AnalysisResult{}, fail(FailureShape, errors.New("questions is missing or not an array"))
	}

	concepts := make([]models.Concept, 0, len(rawConcepts))
	for _, rc := range rawConcepts {
		obj, ok := rc.(map[string]any)
		if !ok {
			continue
		}
		concepts = append(concepts, repairConcept(obj, len(concepts)+1))
	}

	firstTitle := ""
	if len(concepts) > 0 {
		firstTitle = concepts[0].Title
	}
	questions := make([]models.QuizQuestion, 0, len(rawQuestions))
	for _, rq := range rawQuestions {
		obj, ok := rq.(map[string]any)
		if !ok {
			continue
		}
		questions = append(questions, repairQuestion(obj, len(questions)+1, firstTitle))
	}

	if len(concepts) > LenientMaxConcepts {
		concepts = concepts[:LenientMaxConcepts]
	}
	if len(questions) > LenientMaxQuestions {
		questions = questions[:LenientMaxQuestions]
	}

	result := models.AnalysisResult{Concepts: concepts, Questions: questions}
	if err := checkBounds(result, LenientMaxConcepts, LenientMaxQuestions); err != nil {
		return models.AnalysisResult{}, err
	}
	return result, nil
}

// stripFences removes markdown code fence markers such as ```json and ```,
// leaving any payload that shares a line with them.
func stripFences(text string) string {
	return fenceMarker.ReplaceAllString(text, "")
}

// extractObject slices text from the first '{' to the last '}'.
func extractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fail(FailureParse, errors.New("no JSON object in model output"))
	}
	return text[start : end+1], nil
}

func repairConcept(obj map[string]any, n int) models.Concept {
	c := models.Concept{
		Title:      stringField(obj, "title"),
		Summary:    stringField(obj, "summary"),
		Citations:  citations(obj["citations"]),
		Importance: stringField(obj, "importance"),
	}
	if c.Title == "" {
		c.Title = fmt.Sprintf("Concept %d", n)
	}
	if c.Summary == "" {
		c.Summary = DefaultSummary
	}
	if c.Importance == "" {
		c.Importance = DefaultImportance
	}
	return c
}

func repairQuestion(obj map[string]any, n int, firstConcept string) models.QuizQuestion {
	q := models.QuizQuestion{
		Question:      stringField(obj, "question"),
		Options:       options(obj["options"]),
		CorrectAnswer: answerIndex(obj["correctAnswer"]),
		Concept:       stringField(obj, "concept"),
	}
	if q.Question == "" {
		q.Question = fmt.Sprintf("Question %d", n)
	}
	if q.Concept == "" {
		q.Concept = firstConcept
	}
	return q
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// citations keeps at most MaxCitations string entries. Anything that is not
// an array yields no citations.
func citations(v any) []string {
	out := []string{}
	items, _ := v.([]any)
	for _, item := range items {
		if len(out) == MaxCitations {
			break
		}
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// options returns the four answer options, or the placeholders when v is
// not an array of exactly four non-empty strings.
func options(v any) []string {
	items, ok := v.([]any)
	if ok && len(items) == OptionsPerQuestion {
		out := make([]string, 0, OptionsPerQuestion)
		for _, item := range items {
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" {
				break
			}
			out = append(out, s)
		}
		if len(out) == OptionsPerQuestion {
			return out
		}
	}
	return append([]string(nil), defaultOptions[:]...)
}

// answerIndex accepts only JSON numbers with an integral value in range;
// everything else, numeric strings included, maps to 0.
func answerIndex(v any) int {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < 0 || f >= OptionsPerQuestion {
		return 0
	}
	return int(f)
}
