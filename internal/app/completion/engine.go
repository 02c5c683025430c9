// Package completion computes an application's completion percentage from
// the section/question configuration and the current responses. The
// computation is pure and deterministic for a fixed snapshot: it is re-run on
// every autosave and must always agree with itself.
package completion

import (
	"github.com/tallpines/campreg/internal/app/models"
)

// SectionBreakdown reports progress for one applicable section.
type SectionBreakdown struct {
	SectionID         int64  `json:"sectionId"`
	Name              string `json:"name"`
	RequiredQuestions int    `json:"requiredQuestions"`
	AnsweredRequired  int    `json:"answeredRequired"`
	Complete          bool   `json:"complete"`
}

// Result is the output of Compute.
type Result struct {
	Percentage int                `json:"percentage"`
	Sections   []SectionBreakdown `json:"sections"`
}

// Compute evaluates the completion percentage of an application in the given
// status. Sections whose required_status does not match are ignored entirely.
// Within each applicable section, only applicable questions count (see
// Evaluator); the percentage is answered required questions over total
// required questions across all applicable sections, rounded down. An
// application with zero required applicable questions is 100% complete.
//
// responses maps question id to the current answer value; absent or empty
// values are unanswered.
func Compute(status models.Status, sections []*models.Section, responses map[int64]string) Result {
	eval := NewEvaluator(sections, responses)

	var totalRequired, answeredRequired int
	var breakdown []SectionBreakdown

	for _, section := range sections {
		if !section.IsActive || !section.AppliesTo(status) {
			continue
		}
		sb := SectionBreakdown{SectionID: section.ID, Name: section.Name}
		for _, q := range section.Questions {
			if !q.IsActive || !q.Required || !eval.Applicable(q.ID) {
				continue
			}
			sb.RequiredQuestions++
			if responses[q.ID] != "" {
				sb.AnsweredRequired++
			}
		}
		sb.Complete = sb.AnsweredRequired == sb.RequiredQuestions
		totalRequired += sb.RequiredQuestions
		answeredRequired += sb.AnsweredRequired
		breakdown = append(breakdown, sb)
	}

	if totalRequired == 0 {
		return Result{Percentage: 100, Sections: breakdown}
	}
	return Result{
		Percentage: answeredRequired * 100 / totalRequired,
		Sections:   breakdown,
	}
}
