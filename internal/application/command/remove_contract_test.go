package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/enrollment"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

func newRemoveFixture(t *testing.T) (*RemoveContractHandler, *InitializeContractHandler, *fakeContractRepo, *fakeLedger, *fakeEventBus) {
	t.Helper()

	contracts := newFakeContractRepo()
	catalog := newFakeCourseRepo()
	ledger := newFakeLedger()
	bus := &fakeEventBus{}

	catalog.addCourse(1, "Гипертония")
	catalog.addCourse(2, "Диабет 2 типа")

	initHandler := NewInitializeContractHandler(
		contracts, catalog, ledger, &fakeIDGenerator{}, fakeTokenGenerator{}, bus,
	)
	removeHandler := NewRemoveContractHandler(contracts, ledger, bus)
	return removeHandler, initHandler, contracts, ledger, bus
}

func TestRemoveContract_DropsEnrollmentsKeepsCompletions(t *testing.T) {
	removeHandler, initHandler, contracts, ledger, bus := newRemoveFixture(t)
	ctx := context.Background()

	_, err := initHandler.Handle(ctx, InitializeContractCommand{ContractID: 500, CourseIDs: []int64{1, 2}})
	require.NoError(t, err)

	claimed, err := ledger.TryComplete(ctx, &enrollment.Completion{
		ID:          "00000000-0000-4000-8000-0000000000aa",
		ContractID:  500,
		LessonID:    10,
		Points:      3,
		MaxPoints:   5,
		CompletedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, claimed)

	result, err := removeHandler.Handle(ctx, RemoveContractCommand{ContractID: 500})
	require.NoError(t, err)

	assert.True(t, result.WasActive)
	assert.Equal(t, 2, result.EnrollmentsDropped)

	c, err := contracts.GetByID(ctx, 500)
	require.NoError(t, err)
	assert.False(t, c.IsActive())

	enrolled, err := ledger.IsEnrolled(ctx, 500, 1)
	require.NoError(t, err)
	assert.False(t, enrolled)

	done, err := ledger.HasCompleted(ctx, 500, 10)
	require.NoError(t, err)
	assert.True(t, done, "completion journal survives disconnect")

	assert.Len(t, bus.published(shared.EventContractRemoved), 1)
}

func TestRemoveContract_UnknownContractIsNoop(t *testing.T) {
	removeHandler, _, _, _, bus := newRemoveFixture(t)

	result, err := removeHandler.Handle(context.Background(), RemoveContractCommand{ContractID: 999})
	require.NoError(t, err)

	assert.False(t, result.WasActive)
	assert.Zero(t, result.EnrollmentsDropped)
	assert.Empty(t, bus.published(shared.EventContractRemoved))
}

func TestRemoveContract_ReinitCannotRescoreLesson(t *testing.T) {
	contracts := newFakeContractRepo()
	catalog := newFakeCourseRepo()
	ledger := newFakeLedger()
	bus := &fakeEventBus{}

	catalog.addCourse(1, "Гипертония")
	catalog.addLesson(&course.Lesson{
		ID:       10,
		CourseID: 1,
		Ordinal:  1,
		Questions: []course.Question{
			{ID: 101, Text: "2+2?", Answer: "4", Points: 10},
		},
	})

	initHandler := NewInitializeContractHandler(
		contracts, catalog, ledger, &fakeIDGenerator{}, fakeTokenGenerator{}, bus,
	)
	removeHandler := NewRemoveContractHandler(contracts, ledger, bus)
	submitHandler := NewSubmitLessonHandler(catalog, ledger, ledger, &fakeIDGenerator{}, bus)

	ctx := context.Background()
	submit := SubmitLessonCommand{
		ContractID: 7,
		LessonID:   10,
		Answers:    map[string]string{"101": "4"},
	}

	_, err := initHandler.Handle(ctx, InitializeContractCommand{ContractID: 7, CourseIDs: []int64{1}})
	require.NoError(t, err)

	first, err := submitHandler.Handle(ctx, submit)
	require.NoError(t, err)
	require.True(t, first.First)
	require.Equal(t, 10, first.TotalPoints)

	_, err = removeHandler.Handle(ctx, RemoveContractCommand{ContractID: 7})
	require.NoError(t, err)

	_, err = initHandler.Handle(ctx, InitializeContractCommand{ContractID: 7, CourseIDs: []int64{1}})
	require.NoError(t, err)

	// The completion from the first connection still holds the claim.
	again, err := submitHandler.Handle(ctx, submit)
	require.NoError(t, err)
	assert.False(t, again.First, "lesson must stay scored across remove/re-init")
	assert.Zero(t, again.Points)

	e, err := ledger.Get(ctx, 7, 1)
	require.NoError(t, err)
	assert.Zero(t, e.Points, "fresh enrollment starts at zero and gets no second award")

	assert.Len(t, bus.published(shared.EventLessonScored), 1)
}

func TestRemoveContract_Idempotent(t *testing.T) {
	removeHandler, initHandler, _, _, _ := newRemoveFixture(t)
	ctx := context.Background()

	_, err := initHandler.Handle(ctx, InitializeContractCommand{ContractID: 500, CourseIDs: []int64{1}})
	require.NoError(t, err)

	first, err := removeHandler.Handle(ctx, RemoveContractCommand{ContractID: 500})
	require.NoError(t, err)
	assert.True(t, first.WasActive)

	second, err := removeHandler.Handle(ctx, RemoveContractCommand{ContractID: 500})
	require.NoError(t, err)
	assert.False(t, second.WasActive)
	assert.Zero(t, second.EnrollmentsDropped)
}
