package analysis

import "github.com/kiranshivaraju/explainer/pkg/models"

// Fallback returns the degraded dataset served when no strategy produced a
// usable result. It satisfies the same bounds as a genuine result, and its
// first concept is titled models.FallbackTitle.
func Fallback() models.AnalysisResult {
	return models.AnalysisResult{
		Concepts: []models.Concept{
			{
				Title:      models.FallbackTitle,
				Summary:    "The document could not be analyzed automatically. Try again later or with a different file.",
				Citations:  []string{},
				Importance: "Shown in place of an automatic summary",
			},
			{
				Title:      "Read the Abstract",
				Summary:    "The abstract states the problem, the approach and the main result in a few sentences.",
				Citations:  []string{},
				Importance: "Fastest way to the core contribution",
			},
			{
				Title:      "Check the Conclusion",
				Summary:    "The conclusion restates what was shown and often lists limitations and future work.",
				Citations:  []string{},
				Importance: "Frames what the results do and do not claim",
			},
		},
		Questions: []models.QuizQuestion{
			{
				Question:      "Why is this summary shown?",
				Options:       []string{"Automatic analysis was unavailable", "The document was empty", "The quiz was disabled", "The file was too large"},
				CorrectAnswer: 0,
				Concept:       models.FallbackTitle,
			},
			{
				Question:      "Which section usually states the main result most briefly?",
				Options:       []string{"References", "Abstract", "Appendix", "Acknowledgements"},
				CorrectAnswer: 1,
				Concept:       "Read the Abstract",
			},
			{
				Question:      "Where are limitations of the work usually discussed?",
				Options:       []string{"Title page", "Table of contents", "Conclusion", "Figure captions"},
				CorrectAnswer: 2,
				Concept:       "Check the Conclusion",
			},
			{
				Question:      "What is a reasonable next step when automatic analysis fails?",
				Options:       []string{"Delete the document", "Ignore the document", "Rename the document", "Retry the analysis later"},
				CorrectAnswer: 3,
				Concept:       models.FallbackTitle,
			},
		},
	}
}
