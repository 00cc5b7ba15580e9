package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

func newOrderFixture(t *testing.T) (*ProcessOrderHandler, *fakeContractRepo, *fakeLedger, *fakeEventBus) {
	t.Helper()

	contracts := newFakeContractRepo()
	catalog := newFakeCourseRepo()
	ledger := newFakeLedger()
	bus := &fakeEventBus{}

	catalog.addCourse(42, "Диабет 2 типа")

	c, err := contract.New(500, "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	require.NoError(t, contracts.Create(context.Background(), c))

	handler := NewProcessOrderHandler(contracts, catalog, ledger, &fakeIDGenerator{}, bus)
	return handler, contracts, ledger, bus
}

func TestProcessOrder_Enroll(t *testing.T) {
	handler, _, ledger, bus := newOrderFixture(t)

	result, err := handler.Handle(context.Background(), ProcessOrderCommand{
		ContractID: 500,
		Order:      "add_course_42",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeEnrolled, result.Outcome)
	assert.Equal(t, int64(42), result.CourseID)

	enrolled, err := ledger.IsEnrolled(context.Background(), 500, 42)
	require.NoError(t, err)
	assert.True(t, enrolled)

	assert.Len(t, bus.published(shared.EventEnrollmentCreated), 1)
}

func TestProcessOrder_EnrollUnenrollEnroll_PointsReset(t *testing.T) {
	handler, _, ledger, _ := newOrderFixture(t)
	ctx := context.Background()

	_, err := handler.Handle(ctx, ProcessOrderCommand{ContractID: 500, Order: "add_course_42"})
	require.NoError(t, err)

	// Earn some points on the enrollment.
	_, err = ledger.AddPoints(ctx, 500, 42, 7)
	require.NoError(t, err)

	_, err = handler.Handle(ctx, ProcessOrderCommand{ContractID: 500, Order: "remove_course_42"})
	require.NoError(t, err)

	_, err = handler.Handle(ctx, ProcessOrderCommand{ContractID: 500, Order: "add_course_42"})
	require.NoError(t, err)

	e, err := ledger.Get(ctx, 500, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Points, "re-enrollment starts from zero")
}

func TestProcessOrder_RepeatEnrollKeepsPoints(t *testing.T) {
	handler, _, ledger, _ := newOrderFixture(t)
	ctx := context.Background()

	_, err := handler.Handle(ctx, ProcessOrderCommand{ContractID: 500, Order: "add_course_42"})
	require.NoError(t, err)
	_, err = ledger.AddPoints(ctx, 500, 42, 7)
	require.NoError(t, err)

	result, err := handler.Handle(ctx, ProcessOrderCommand{ContractID: 500, Order: "add_course_42"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, result.Outcome)

	e, err := ledger.Get(ctx, 500, 42)
	require.NoError(t, err)
	assert.Equal(t, 7, e.Points)
}

func TestProcessOrder_UnknownCourseIsSilent(t *testing.T) {
	handler, _, _, bus := newOrderFixture(t)

	result, err := handler.Handle(context.Background(), ProcessOrderCommand{
		ContractID: 500,
		Order:      "add_course_777",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoop, result.Outcome)
	assert.Empty(t, bus.published(shared.EventEnrollmentCreated))
}

func TestProcessOrder_DisconnectedContractStillAcceptsOrders(t *testing.T) {
	handler, contracts, ledger, _ := newOrderFixture(t)
	ctx := context.Background()

	c, err := contracts.GetByID(ctx, 500)
	require.NoError(t, err)
	c.Deactivate()
	require.NoError(t, contracts.Update(ctx, c))

	// The platform may re-enable a contract before the agent hears
	// about it: the order still lands on the mirror.
	result, err := handler.Handle(ctx, ProcessOrderCommand{
		ContractID: 500,
		Order:      "add_course_42",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnrolled, result.Outcome)

	enrolled, err := ledger.IsEnrolled(ctx, 500, 42)
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestProcessOrder_UnknownContractRejected(t *testing.T) {
	handler, _, _, _ := newOrderFixture(t)

	_, err := handler.Handle(context.Background(), ProcessOrderCommand{
		ContractID: 999,
		Order:      "add_course_42",
	})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProcessOrder_UnrecognizedDirective(t *testing.T) {
	handler, _, ledger, _ := newOrderFixture(t)

	for _, order := range []string{"hello", "add_course_abc", ""} {
		result, err := handler.Handle(context.Background(), ProcessOrderCommand{
			ContractID: 500,
			Order:      order,
		})
		require.NoError(t, err, "order: %q", order)
		assert.Equal(t, OutcomeUnrecognized, result.Outcome, "order: %q", order)
	}

	enrolled, err := ledger.IsEnrolled(context.Background(), 500, 42)
	require.NoError(t, err)
	assert.False(t, enrolled)
}

func TestProcessOrder_UnenrollWithoutEnrollment(t *testing.T) {
	handler, _, _, _ := newOrderFixture(t)

	result, err := handler.Handle(context.Background(), ProcessOrderCommand{
		ContractID: 500,
		Order:      "remove_course_42",
	})
	require.NoError(t, err)

	// Idempotent delete: recognized, nothing to remove.
	assert.Equal(t, OutcomeUnenrolled, result.Outcome)
}
