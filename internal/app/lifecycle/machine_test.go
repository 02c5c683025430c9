package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

func TestValid(t *testing.T) {
	assert.True(t, Valid(ApplicantNotStarted))
	assert.True(t, Valid(CamperComplete))
	assert.True(t, Valid(InactiveDeactivated))

	// Sub-statuses scoped to another status are unrepresentable.
	assert.False(t, Valid(State{models.StatusCamper, models.SubStatusUnderReview}))
	assert.False(t, Valid(State{models.StatusInactive, models.SubStatusComplete}))
	assert.False(t, Valid(State{models.StatusApplicant, models.SubStatusWithdrawn}))
	assert.False(t, Valid(State{Status: "BOGUS", SubStatus: models.SubStatusComplete}))
}

func TestApplicantProgression(t *testing.T) {
	chain := []State{
		ApplicantNotStarted,
		ApplicantIncomplete,
		ApplicantComplete,
		ApplicantUnderReview,
		ApplicantWaitlist,
	}
	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, CanTransition(chain[i], chain[i+1]), "%s -> %s", chain[i], chain[i+1])
	}

	// No skipping ahead to review before the form is complete.
	assert.False(t, CanTransition(ApplicantNotStarted, ApplicantUnderReview))
	assert.False(t, CanTransition(ApplicantIncomplete, ApplicantWaitlist))
	// No walking backwards out of review.
	assert.False(t, CanTransition(ApplicantUnderReview, ApplicantIncomplete))
}

func TestPromotionAndInactiveReachability(t *testing.T) {
	assert.True(t, CanTransition(ApplicantUnderReview, CamperIncomplete))
	assert.True(t, CanTransition(ApplicantWaitlist, CamperComplete))
	assert.False(t, CanTransition(ApplicantComplete, CamperIncomplete))

	// Every inactive state is reachable from every active state.
	for _, from := range activeStates {
		for _, to := range inactiveStates {
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	// Inactive states are terminal except for reactivation.
	assert.False(t, CanTransition(InactiveWithdrawn, CamperIncomplete))
	assert.True(t, CanTransition(InactiveWithdrawn, ApplicantComplete))
	assert.True(t, CanTransition(InactiveDeferred, ApplicantNotStarted))
}

func TestPlanTransitionInvalid(t *testing.T) {
	_, err := PlanTransition(ApplicantNotStarted, ApplicantUnderReview)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
}

func TestPlanTransitionNoOp(t *testing.T) {
	plan, err := PlanTransition(ApplicantUnderReview, ApplicantUnderReview)
	require.NoError(t, err)
	assert.True(t, plan.NoOp)
	assert.Equal(t, MilestoneNone, plan.Milestone)
	assert.Empty(t, plan.Event)
}

func TestMilestones(t *testing.T) {
	cases := []struct {
		from, to  State
		milestone Milestone
	}{
		{ApplicantIncomplete, ApplicantComplete, MilestoneCompleted},
		{ApplicantComplete, ApplicantUnderReview, MilestoneUnderReview},
		{ApplicantUnderReview, ApplicantWaitlist, MilestoneWaitlisted},
		{ApplicantUnderReview, CamperIncomplete, MilestonePromoted},
		{ApplicantWaitlist, CamperComplete, MilestonePromoted},
		{CamperComplete, InactiveWithdrawn, MilestoneWithdrawn},
		{ApplicantComplete, InactiveDeferred, MilestoneDeferred},
		{ApplicantUnderReview, InactiveRejected, MilestoneRejected},
		{CamperIncomplete, InactiveDeactivated, MilestoneNone},
		{CamperIncomplete, CamperComplete, MilestoneNone},
		{ApplicantNotStarted, ApplicantIncomplete, MilestoneNone},
	}
	for _, tc := range cases {
		plan, err := PlanTransition(tc.from, tc.to)
		require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.milestone, plan.Milestone, "%s -> %s", tc.from, tc.to)
	}
}

func TestEventNames(t *testing.T) {
	cases := []struct {
		from, to State
		event    string
	}{
		{ApplicantNotStarted, ApplicantIncomplete, EventStarted},
		{ApplicantComplete, ApplicantIncomplete, EventReopened},
		{ApplicantIncomplete, ApplicantComplete, EventCompleted},
		{ApplicantComplete, ApplicantUnderReview, EventUnderReview},
		{ApplicantUnderReview, ApplicantWaitlist, EventWaitlisted},
		{ApplicantUnderReview, CamperIncomplete, EventPromoted},
		{ApplicantWaitlist, CamperComplete, EventPromoted},
		{CamperIncomplete, CamperComplete, EventCamperComplete},
		{CamperComplete, CamperIncomplete, EventCamperReopened},
		{ApplicantComplete, InactiveWithdrawn, EventWithdrawn},
		{CamperComplete, InactiveDeferred, EventDeferred},
		{ApplicantUnderReview, InactiveRejected, EventRejected},
		{CamperIncomplete, InactiveDeactivated, EventDeactivated},
		{InactiveWithdrawn, ApplicantComplete, EventReactivated},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.event, EventName(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestKnownEventsCoverTransitionTable(t *testing.T) {
	known := make(map[string]bool)
	for _, name := range KnownEvents() {
		known[name] = true
	}
	for from, targets := range reachable {
		for _, to := range targets {
			name := EventName(from, to)
			require.NotEmpty(t, name, "%s -> %s has no event name", from, to)
			assert.True(t, known[name], "event %s missing from KnownEvents", name)
		}
	}
}

func TestReactivationTarget(t *testing.T) {
	assert.Equal(t, ApplicantNotStarted, ReactivationTarget(0, false))
	assert.Equal(t, ApplicantComplete, ReactivationTarget(100, false))
	assert.Equal(t, ApplicantIncomplete, ReactivationTarget(100, true))
	assert.Equal(t, ApplicantIncomplete, ReactivationTarget(60, false))
}
