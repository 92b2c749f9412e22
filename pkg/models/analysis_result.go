package models

// FallbackTitle is the first concept title of the degraded dataset.
// Consumers compare against it to detect fallback output.
const FallbackTitle = "Summary Unavailable"

// Concept is one key idea extracted from a document.
type Concept struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Citations  []string `json:"citations"`
	Importance string   `json:"importance"`
}

// QuizQuestion is a four-option multiple choice question tied to a concept.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Concept       string   `json:"concept"`
}

// AnalysisResult is the structured summary of one document.
type AnalysisResult struct {
	Concepts  []Concept      `json:"concepts"`
	Questions []QuizQuestion `json:"questions"`
}

// IsFallback reports whether r is the degraded dataset.
func (r AnalysisResult) IsFallback() bool {
	return len(r.Concepts) > 0 && r.Concepts[0].Title == FallbackTitle
}
