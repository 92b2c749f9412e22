package analysis

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repairPayload = "```json\n" + `{"concepts":[{"title":"A","summary":"s","citations":[],"importance":"i"},{"title":"B","summary":"s","citations":[],"importance":"i"},{"title":"C","summary":"s","citations":[],"importance":"i"}],"questions":[{"question":"q","options":["a","b","c","d"],"correctAnswer":5,"concept":"A"},{"question":"q2","options":["a","b"],"correctAnswer":1,"concept":"A"},{"question":"q3","options":["a","b","c","d"],"correctAnswer":0,"concept":"A"},{"question":"q4","options":["a","b","c","d"],"correctAnswer":0,"concept":"A"}]}` + "\n```"

func conceptJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"title":"T%d","summary":"s","citations":[],"importance":"i"}`, i+1)
	}
	return strings.Join(parts, ",")
}

func questionJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"question":"Q%d","options":["a","b","c","d"],"correctAnswer":1,"concept":"T1"}`, i+1)
	}
	return strings.Join(parts, ",")
}

func payload(concepts, questions int) string {
	return fmt.Sprintf(`{"concepts":[%s],"questions":[%s]}`, conceptJSON(concepts), questionJSON(questions))
}

func failureKind(t *testing.T, err error) FailureKind {
	t.Helper()
	var f *Failure
	require.True(t, errors.As(err, &f), "expected *Failure, got %v", err)
	return f.Kind
}

func TestNormalize_RepairsAnswerAndOptions(t *testing.T) {
	result, err := Normalize(repairPayload)
	require.NoError(t, err)

	require.Len(t, result.Questions, 4)
	assert.Equal(t, 0, result.Questions[0].CorrectAnswer)
	assert.Equal(t, []string{"Option A", "Option B", "Option C", "Option D"}, result.Questions[1].Options)
	assert.Equal(t, 1, result.Questions[1].CorrectAnswer)
	assert.Equal(t, []string{"a", "b", "c", "d"}, result.Questions[2].Options)
}

func TestNormalize_TooFewConceptsFails(t *testing.T) {
	_, err := Normalize(payload(2, 4))

	require.Error(t, err)
	assert.Equal(t, FailureBounds, failureKind(t, err))
}

func TestNormalize_TooFewQuestionsFails(t *testing.T) {
	_, err := Normalize(payload(3, 3))

	require.Error(t, err)
	assert.Equal(t, FailureBounds, failureKind(t, err))
}

func TestNormalize_FencesAndProseMatchCleanPayload(t *testing.T) {
	clean := payload(4, 5)
	wrapped := "Sure! Here is the analysis you asked for.\n\n```json\n" + clean + "\n```\n\nLet me know if you need anything else."

	want, err := Normalize(clean)
	require.NoError(t, err)
	got, err := Normalize(wrapped)
	require.NoError(t, err)

	assert.Equal(t, want, got)

	oneLine, err := Normalize("```json " + clean + " ```")
	require.NoError(t, err)
	assert.Equal(t, want, oneLine)
}

func TestNormalize_TruncatesToLenientLimits(t *testing.T) {
	result, err := Normalize(payload(11, 20))
	require.NoError(t, err)

	assert.Len(t, result.Concepts, LenientMaxConcepts)
	assert.Len(t, result.Questions, LenientMaxQuestions)
	assert.Equal(t, "T1", result.Concepts[0].Title)
	assert.Equal(t, "T8", result.Concepts[7].Title)
}

func TestNormalize_DefaultsMissingConceptFields(t *testing.T) {
	text := fmt.Sprintf(`{"concepts":[{},{"title":"  "},{"title":"Real","summary":"s","importance":"i","citations":"not a list"}],"questions":[%s]}`, questionJSON(4))

	result, err := Normalize(text)
	require.NoError(t, err)

	first := result.Concepts[0]
	assert.Equal(t, "Concept 1", first.Title)
	assert.Equal(t, DefaultSummary, first.Summary)
	assert.Equal(t, DefaultImportance, first.Importance)
	assert.Equal(t, []string{}, first.Citations)
	assert.Equal(t, "Concept 2", result.Concepts[1].Title)
	assert.Equal(t, []string{}, result.Concepts[2].Citations)
}

func TestNormalize_ClampsCitations(t *testing.T) {
	text := fmt.Sprintf(`{"concepts":[{"title":"A","summary":"s","importance":"i","citations":["1",2,"3","4","5"]},%s],"questions":[%s]}`, conceptJSON(2), questionJSON(4))

	result, err := Normalize(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "4"}, result.Concepts[0].Citations)
}

func TestNormalize_DefaultsMissingQuestionFields(t *testing.T) {
	text := fmt.Sprintf(`{"concepts":[%s],"questions":[{},%s]}`, conceptJSON(3), questionJSON(3))

	result, err := Normalize(text)
	require.NoError(t, err)

	q := result.Questions[0]
	assert.Equal(t, "Question 1", q.Question)
	assert.Equal(t, []string{"Option A", "Option B", "Option C", "Option D"}, q.Options)
	assert.Equal(t, 0, q.CorrectAnswer)
	assert.Equal(t, "T1", q.Concept)
}

func TestNormalize_CorrectAnswerRepair(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   int
	}{
		{name: "in range", answer: `3`, want: 3},
		{name: "negative", answer: `-1`, want: 0},
		{name: "too large", answer: `4`, want: 0},
		{name: "fractional", answer: `1.5`, want: 0},
		{name: "integral float", answer: `2.0`, want: 2},
		{name: "numeric string", answer: `"2"`, want: 0},
		{name: "null", answer: `null`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := fmt.Sprintf(`{"question":"q","options":["a","b","c","d"],"correctAnswer":%s,"concept":"T1"}`, tt.answer)
			text := fmt.Sprintf(`{"concepts":[%s],"questions":[%s,%s]}`, conceptJSON(3), q, questionJSON(3))

			result, err := Normalize(text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Questions[0].CorrectAnswer)
		})
	}
}

func TestNormalize_OptionsWithNonStringsReplaced(t *testing.T) {
	q := `{"question":"q","options":["a",2,"c","d"],"correctAnswer":1,"concept":"T1"}`
	text := fmt.Sprintf(`{"concepts":[%s],"questions":[%s,%s]}`, conceptJSON(3), q, questionJSON(3))

	result, err := Normalize(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Option A", "Option B", "Option C", "Option D"}, result.Questions[0].Options)
}

func TestNormalize_SkipsNonObjectEntries(t *testing.T) {
	text := fmt.Sprintf(`{"concepts":["a","b",%s],"questions":[%s]}`, conceptJSON(2), questionJSON(4))

	_, err := Normalize(text)
	assert.Equal(t, FailureBounds, failureKind(t, err))
}

func TestNormalize_HardFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
		want FailureKind
	}{
		{name: "no object", text: "I could not read the paper.", want: FailureParse},
		{name: "broken json", text: `{"concepts": [}`, want: FailureParse},
		{name: "missing concepts", text: `{"questions": []}`, want: FailureShape},
		{name: "concepts not array", text: `{"concepts": {}, "questions": []}`, want: FailureShape},
		{name: "missing questions", text: fmt.Sprintf(`{"concepts": [%s]}`, conceptJSON(3)), want: FailureShape},
		{name: "empty", text: "", want: FailureParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.text)
			require.Error(t, err)
			assert.Equal(t, tt.want, failureKind(t, err))
		})
	}
}

func TestNormalize_ResultsAlwaysWithinBounds(t *testing.T) {
	for concepts := 3; concepts <= 12; concepts++ {
		for _, questions := range []int{4, 9, 13, 30} {
			result, err := Normalize(payload(concepts, questions))
			require.NoError(t, err)
			assertValid(t, result, LenientMaxConcepts)
		}
	}
}

func assertValid(t *testing.T, r models.AnalysisResult, maxConcepts int) {
	t.Helper()
	assert.GreaterOrEqual(t, len(r.Concepts), MinConcepts)
	assert.LessOrEqual(t, len(r.Concepts), maxConcepts)
	assert.GreaterOrEqual(t, len(r.Questions), MinQuestions)
	for _, c := range r.Concepts {
		assert.NotEmpty(t, c.Title)
		assert.NotEmpty(t, c.Summary)
		assert.NotEmpty(t, c.Importance)
		assert.LessOrEqual(t, len(c.Citations), MaxCitations)
	}
	for _, q := range r.Questions {
		assert.Len(t, q.Options, OptionsPerQuestion)
		assert.GreaterOrEqual(t, q.CorrectAnswer, 0)
		assert.Less(t, q.CorrectAnswer, OptionsPerQuestion)
		assert.NotEmpty(t, q.Concept)
	}
}
