// Package lifecycle owns the application state machine: which
// (status, sub_status) pairs exist, which transitions between them are legal,
// which milestone timestamp each target stamps, and the event name each
// transition emits for the notification rule engine. Everything here is pure;
// persistence and concurrency control live in the repositories.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

// State is a validated (status, sub_status) pair.
type State struct {
	Status    models.Status
	SubStatus models.SubStatus
}

func (s State) String() string {
	return string(s.Status) + "." + string(s.SubStatus)
}

// Canonical states.
var (
	ApplicantNotStarted  = State{models.StatusApplicant, models.SubStatusNotStarted}
	ApplicantIncomplete  = State{models.StatusApplicant, models.SubStatusIncomplete}
	ApplicantComplete    = State{models.StatusApplicant, models.SubStatusComplete}
	ApplicantUnderReview = State{models.StatusApplicant, models.SubStatusUnderReview}
	ApplicantWaitlist    = State{models.StatusApplicant, models.SubStatusWaitlist}
	CamperIncomplete     = State{models.StatusCamper, models.SubStatusIncomplete}
	CamperComplete       = State{models.StatusCamper, models.SubStatusComplete}
	InactiveWithdrawn    = State{models.StatusInactive, models.SubStatusWithdrawn}
	InactiveDeferred     = State{models.StatusInactive, models.SubStatusDeferred}
	InactiveRejected     = State{models.StatusInactive, models.SubStatusRejected}
	InactiveDeactivated  = State{models.StatusInactive, models.SubStatusDeactivated}
)

var subStatusesByStatus = map[models.Status][]models.SubStatus{
	models.StatusApplicant: {
		models.SubStatusNotStarted,
		models.SubStatusIncomplete,
		models.SubStatusComplete,
		models.SubStatusUnderReview,
		models.SubStatusWaitlist,
	},
	models.StatusCamper: {
		models.SubStatusIncomplete,
		models.SubStatusComplete,
	},
	models.StatusInactive: {
		models.SubStatusWithdrawn,
		models.SubStatusDeferred,
		models.SubStatusRejected,
		models.SubStatusDeactivated,
	},
}

// Valid reports whether the pair is a representable state.
func Valid(s State) bool {
	for _, sub := range subStatusesByStatus[s.Status] {
		if sub == s.SubStatus {
			return true
		}
	}
	return false
}

// StateOf returns the current state of an application.
func StateOf(app *models.Application) State {
	return State{Status: app.Status, SubStatus: app.SubStatus}
}

var activeStates = []State{
	ApplicantNotStarted,
	ApplicantIncomplete,
	ApplicantComplete,
	ApplicantUnderReview,
	ApplicantWaitlist,
	CamperIncomplete,
	CamperComplete,
}

var inactiveStates = []State{
	InactiveWithdrawn,
	InactiveDeferred,
	InactiveRejected,
	InactiveDeactivated,
}

// reachable holds the legal forward edges. Every inactive state is reachable
// from every active state; reactivation edges go from every inactive state to
// the three applicant fill-in states (the actual target is recomputed from
// completion, see ReactivationTarget).
var reachable = map[State][]State{
	ApplicantNotStarted:  {ApplicantIncomplete, ApplicantComplete},
	ApplicantIncomplete:  {ApplicantComplete},
	ApplicantComplete:    {ApplicantIncomplete, ApplicantUnderReview},
	ApplicantUnderReview: {ApplicantWaitlist, CamperIncomplete, CamperComplete},
	ApplicantWaitlist:    {ApplicantUnderReview, CamperIncomplete, CamperComplete},
	CamperIncomplete:     {CamperComplete},
	CamperComplete:       {CamperIncomplete},
}

func init() {
	for _, from := range activeStates {
		reachable[from] = append(reachable[from], inactiveStates...)
	}
	for _, from := range inactiveStates {
		reachable[from] = append(reachable[from],
			ApplicantNotStarted, ApplicantIncomplete, ApplicantComplete)
	}
}

// CanTransition reports whether target is reachable from current. Re-entering
// the current state is always allowed (it is applied as a no-op).
func CanTransition(from, to State) bool {
	if !Valid(from) || !Valid(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, candidate := range reachable[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Milestone names the once-set timestamp a transition stamps. The empty value
// means the target has no associated milestone.
type Milestone string

const (
	MilestoneNone        Milestone = ""
	MilestoneCompleted   Milestone = "completed_at"
	MilestoneUnderReview Milestone = "under_review_at"
	MilestonePromoted    Milestone = "promoted_to_camper_at"
	MilestoneWaitlisted  Milestone = "waitlisted_at"
	MilestoneDeferred    Milestone = "deferred_at"
	MilestoneWithdrawn   Milestone = "withdrawn_at"
	MilestoneRejected    Milestone = "rejected_at"
	MilestonePaid        Milestone = "paid_at"
)

func milestoneFor(from, to State) Milestone {
	if to.Status == models.StatusCamper && from.Status != models.StatusCamper {
		return MilestonePromoted
	}
	switch to {
	case ApplicantComplete:
		return MilestoneCompleted
	case ApplicantUnderReview:
		return MilestoneUnderReview
	case ApplicantWaitlist:
		return MilestoneWaitlisted
	case InactiveWithdrawn:
		return MilestoneWithdrawn
	case InactiveDeferred:
		return MilestoneDeferred
	case InactiveRejected:
		return MilestoneRejected
	}
	return MilestoneNone
}

// TransitionPlan is the outcome of validating a transition request. NoOp is
// true when target equals current: the state is untouched and no milestone is
// stamped, but the attempt is still audited.
type TransitionPlan struct {
	From      State
	To        State
	NoOp      bool
	Milestone Milestone
	Event     string
}

// PlanTransition validates a requested transition and describes how to apply
// it. It fails with apperrors.ErrInvalidTransition when the target is not
// reachable from the current state.
func PlanTransition(from, to State) (TransitionPlan, error) {
	if !CanTransition(from, to) {
		return TransitionPlan{}, apperrors.NewCustomError(
			apperrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move from %s to %s", from, to),
		)
	}
	plan := TransitionPlan{From: from, To: to}
	if from == to {
		plan.NoOp = true
		return plan, nil
	}
	plan.Milestone = milestoneFor(from, to)
	plan.Event = EventName(from, to)
	return plan, nil
}

// ReactivationTarget maps a freshly recomputed completion percentage to the
// applicant state a reactivated application lands in: nothing answered starts
// over, a fully answered application that was never reviewed is complete
// again, anything else resumes as incomplete.
func ReactivationTarget(percentage int, everReviewed bool) State {
	switch {
	case percentage == 0:
		return ApplicantNotStarted
	case percentage == 100 && !everReviewed:
		return ApplicantComplete
	default:
		return ApplicantIncomplete
	}
}

// Event is what the state machine hands to the notification rule engine after
// a transition commits.
type Event struct {
	Name          string
	ApplicationID int64
	From          State
	To            State
	ActorID       *int64
	OccurredAt    time.Time
}

// Event names matched by event-triggered automations.
const (
	EventStarted        = "application.started"
	EventReopened       = "application.reopened"
	EventCompleted      = "application.completed"
	EventUnderReview    = "application.under_review"
	EventWaitlisted     = "application.waitlisted"
	EventPromoted       = "application.promoted"
	EventCamperComplete = "camper.forms_completed"
	EventCamperReopened = "camper.forms_reopened"
	EventWithdrawn      = "application.withdrawn"
	EventDeferred       = "application.deferred"
	EventRejected       = "application.rejected"
	EventDeactivated    = "application.deactivated"
	EventReactivated    = "application.reactivated"
	EventPaid           = "application.paid" // emitted by the payment handler, not a transition
)

// KnownEvents lists every event name an automation may subscribe to.
func KnownEvents() []string {
	return []string{
		EventStarted, EventReopened, EventCompleted, EventUnderReview,
		EventWaitlisted, EventPromoted, EventCamperComplete, EventCamperReopened,
		EventWithdrawn, EventDeferred, EventRejected, EventDeactivated,
		EventReactivated, EventPaid,
	}
}

// EventName derives the canonical event for a non-noop transition.
func EventName(from, to State) string {
	if from.Status == models.StatusInactive && to.Status == models.StatusApplicant {
		return EventReactivated
	}
	if to.Status == models.StatusCamper && from.Status != models.StatusCamper {
		return EventPromoted
	}
	switch to {
	case ApplicantIncomplete:
		if from == ApplicantNotStarted {
			return EventStarted
		}
		return EventReopened
	case ApplicantComplete:
		return EventCompleted
	case ApplicantUnderReview:
		return EventUnderReview
	case ApplicantWaitlist:
		return EventWaitlisted
	case CamperComplete:
		return EventCamperComplete
	case CamperIncomplete:
		return EventCamperReopened
	case InactiveWithdrawn:
		return EventWithdrawn
	case InactiveDeferred:
		return EventDeferred
	case InactiveRejected:
		return EventRejected
	case InactiveDeactivated:
		return EventDeactivated
	}
	return ""
}
