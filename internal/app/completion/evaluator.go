package completion

import (
	"github.com/tallpines/campreg/internal/app/models"
)

type visibility uint8

const (
	visibilityUnknown visibility = iota
	visibilityResolving
	visibilityVisible
	visibilityHidden
)

// Evaluator resolves conditional question visibility. A question with a
// show_if rule is visible only when its governing question is itself visible
// and the governing question's current answer equals the expected one.
// Visibility is transitive through chains of rules, and a cycle of rules
// makes every question on the cycle permanently inapplicable.
//
// Visibility is evaluated across all supplied sections, regardless of status
// scoping: a governing question in a section that does not currently count
// toward completion still controls its dependents.
type Evaluator struct {
	questions map[int64]*models.Question
	responses map[int64]string
	state     map[int64]visibility
}

// NewEvaluator indexes the question graph for one snapshot of sections and
// responses.
func NewEvaluator(sections []*models.Section, responses map[int64]string) *Evaluator {
	e := &Evaluator{
		questions: make(map[int64]*models.Question),
		responses: responses,
		state:     make(map[int64]visibility),
	}
	for _, s := range sections {
		for _, q := range s.Questions {
			if q.IsActive {
				e.questions[q.ID] = q
			}
		}
	}
	return e
}

// Applicable reports whether the question's conditional rule chain currently
// resolves to visible. Unknown question ids are not applicable.
func (e *Evaluator) Applicable(questionID int64) bool {
	return e.resolve(questionID) == visibilityVisible
}

func (e *Evaluator) resolve(questionID int64) visibility {
	if v, ok := e.state[questionID]; ok && v != visibilityUnknown {
		if v == visibilityResolving {
			// Cycle: mark hidden so the walk terminates. Every question on
			// the cycle resolves hidden through this entry.
			e.state[questionID] = visibilityHidden
			return visibilityHidden
		}
		return v
	}

	q, ok := e.questions[questionID]
	if !ok {
		e.state[questionID] = visibilityHidden
		return visibilityHidden
	}

	if q.ShowIfQuestionID == nil {
		e.state[questionID] = visibilityVisible
		return visibilityVisible
	}

	e.state[questionID] = visibilityResolving

	result := visibilityHidden
	if e.resolve(*q.ShowIfQuestionID) == visibilityVisible {
		expected := ""
		if q.ShowIfAnswer != nil {
			expected = *q.ShowIfAnswer
		}
		if e.responses[*q.ShowIfQuestionID] == expected && expected != "" {
			result = visibilityVisible
		}
	}

	// resolve of the governor may have already forced this entry to hidden
	// when it closed a cycle; keep that verdict.
	if e.state[questionID] == visibilityResolving {
		e.state[questionID] = result
	}
	return e.state[questionID]
}
