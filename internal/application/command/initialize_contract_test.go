package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

func newInitFixture(t *testing.T) (*InitializeContractHandler, *fakeContractRepo, *fakeLedger, *fakeEventBus) {
	t.Helper()

	contracts := newFakeContractRepo()
	catalog := newFakeCourseRepo()
	ledger := newFakeLedger()
	bus := &fakeEventBus{}

	catalog.addCourse(1, "Гипертония")
	catalog.addCourse(2, "Диабет 2 типа")

	handler := NewInitializeContractHandler(
		contracts, catalog, ledger, &fakeIDGenerator{}, fakeTokenGenerator{}, bus,
	)
	return handler, contracts, ledger, bus
}

func TestInitializeContract_CreatesAndEnrolls(t *testing.T) {
	handler, contracts, ledger, bus := newInitFixture(t)
	ctx := context.Background()

	result, err := handler.Handle(ctx, InitializeContractCommand{
		ContractID: 500,
		CourseIDs:  []int64{1, 2},
	})
	require.NoError(t, err)

	assert.False(t, result.Reactivated)
	assert.Equal(t, []int64{1, 2}, result.EnrolledCourseIDs)

	c, err := contracts.GetByID(ctx, 500)
	require.NoError(t, err)
	assert.True(t, c.IsActive())
	assert.True(t, c.AgentToken.IsValid())

	for _, courseID := range []int64{1, 2} {
		enrolled, err := ledger.IsEnrolled(ctx, 500, course.ID(courseID))
		require.NoError(t, err)
		assert.True(t, enrolled, "course %d", courseID)
	}

	assert.Len(t, bus.published(shared.EventEnrollmentCreated), 2)
	assert.Len(t, bus.published(shared.EventContractInitialized), 1)
}

func TestInitializeContract_UnknownCoursesSkipped(t *testing.T) {
	handler, _, ledger, bus := newInitFixture(t)

	result, err := handler.Handle(context.Background(), InitializeContractCommand{
		ContractID: 500,
		CourseIDs:  []int64{1, 777, -3},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, result.EnrolledCourseIDs)

	enrolled, err := ledger.IsEnrolled(context.Background(), 500, 777)
	require.NoError(t, err)
	assert.False(t, enrolled)

	assert.Len(t, bus.published(shared.EventEnrollmentCreated), 1)
}

func TestInitializeContract_ReactivatesExisting(t *testing.T) {
	handler, contracts, ledger, bus := newInitFixture(t)
	ctx := context.Background()

	_, err := handler.Handle(ctx, InitializeContractCommand{ContractID: 500, CourseIDs: []int64{1}})
	require.NoError(t, err)
	_, err = ledger.AddPoints(ctx, 500, 1, 4)
	require.NoError(t, err)

	removed, err := contracts.GetByID(ctx, 500)
	require.NoError(t, err)
	removed.Deactivate()
	require.NoError(t, contracts.Update(ctx, removed))

	result, err := handler.Handle(ctx, InitializeContractCommand{ContractID: 500, CourseIDs: []int64{1, 2}})
	require.NoError(t, err)

	assert.True(t, result.Reactivated)
	// Course 1 was already enrolled: only course 2 is fresh.
	assert.Equal(t, []int64{2}, result.EnrolledCourseIDs)

	c, err := contracts.GetByID(ctx, 500)
	require.NoError(t, err)
	assert.True(t, c.IsActive())

	e, err := ledger.Get(ctx, 500, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, e.Points, "existing enrollment keeps its points")

	assert.Len(t, bus.published(shared.EventContractReactivated), 1)
}

func TestInitializeContract_NoCourses(t *testing.T) {
	handler, contracts, _, bus := newInitFixture(t)

	result, err := handler.Handle(context.Background(), InitializeContractCommand{ContractID: 500})
	require.NoError(t, err)

	assert.Empty(t, result.EnrolledCourseIDs)

	exists, err := contracts.Exists(context.Background(), 500)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Len(t, bus.published(shared.EventContractInitialized), 1)
}

func TestInitializeContract_InvalidContractID(t *testing.T) {
	handler, _, _, _ := newInitFixture(t)

	_, err := handler.Handle(context.Background(), InitializeContractCommand{ContractID: 0})
	assert.Error(t, err)
}
