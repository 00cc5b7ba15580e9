package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

func newSettingsFixture(t *testing.T) (*SaveContractCoursesHandler, *fakeLedger, *fakeEventBus) {
	t.Helper()

	contracts := newFakeContractRepo()
	catalog := newFakeCourseRepo()
	ledger := newFakeLedger()
	bus := &fakeEventBus{}

	catalog.addCourse(1, "Гипертония")

	c, err := contract.New(500, "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	require.NoError(t, contracts.Create(context.Background(), c))

	handler := NewSaveContractCoursesHandler(contracts, catalog, ledger, &fakeIDGenerator{}, bus)
	return handler, ledger, bus
}

func TestSaveContractCourses_AddAndRemove(t *testing.T) {
	handler, ledger, bus := newSettingsFixture(t)
	ctx := context.Background()

	added, err := handler.Handle(ctx, SaveContractCoursesCommand{
		ContractID: 500, Action: ActionAddCourse, CourseID: 1,
	})
	require.NoError(t, err)
	assert.True(t, added.Changed)

	enrolled, err := ledger.IsEnrolled(ctx, 500, 1)
	require.NoError(t, err)
	assert.True(t, enrolled)
	assert.Len(t, bus.published(shared.EventEnrollmentCreated), 1)

	removed, err := handler.Handle(ctx, SaveContractCoursesCommand{
		ContractID: 500, Action: ActionRemoveCourse, CourseID: 1,
	})
	require.NoError(t, err)
	assert.True(t, removed.Changed)

	enrolled, err = ledger.IsEnrolled(ctx, 500, 1)
	require.NoError(t, err)
	assert.False(t, enrolled)
}

func TestSaveContractCourses_Idempotent(t *testing.T) {
	handler, _, bus := newSettingsFixture(t)
	ctx := context.Background()

	_, err := handler.Handle(ctx, SaveContractCoursesCommand{
		ContractID: 500, Action: ActionAddCourse, CourseID: 1,
	})
	require.NoError(t, err)

	repeat, err := handler.Handle(ctx, SaveContractCoursesCommand{
		ContractID: 500, Action: ActionAddCourse, CourseID: 1,
	})
	require.NoError(t, err)
	assert.False(t, repeat.Changed)
	assert.Len(t, bus.published(shared.EventEnrollmentCreated), 1)

	noop, err := handler.Handle(ctx, SaveContractCoursesCommand{
		ContractID: 500, Action: ActionRemoveCourse, CourseID: 99,
	})
	require.NoError(t, err)
	assert.False(t, noop.Changed)
}

func TestSaveContractCourses_UnknownCourseRejected(t *testing.T) {
	handler, _, _ := newSettingsFixture(t)

	_, err := handler.Handle(context.Background(), SaveContractCoursesCommand{
		ContractID: 500, Action: ActionAddCourse, CourseID: 777,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSaveContractCourses_UnknownContractRejected(t *testing.T) {
	handler, _, _ := newSettingsFixture(t)

	_, err := handler.Handle(context.Background(), SaveContractCoursesCommand{
		ContractID: 999, Action: ActionAddCourse, CourseID: 1,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSaveContractCourses_InvalidAction(t *testing.T) {
	handler, _, _ := newSettingsFixture(t)

	_, err := handler.Handle(context.Background(), SaveContractCoursesCommand{
		ContractID: 500, Action: "drop_everything", CourseID: 1,
	})
	assert.Error(t, err)
}
