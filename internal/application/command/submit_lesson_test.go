package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/enrollment"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

func newSubmitFixture(t *testing.T) (*SubmitLessonHandler, *fakeLedger, *fakeEventBus) {
	t.Helper()

	catalog := newFakeCourseRepo()
	ledger := newFakeLedger()
	bus := &fakeEventBus{}

	handler := NewSubmitLessonHandler(
		catalog, ledger, ledger, &fakeIDGenerator{}, bus,
	)

	catalog.addCourse(1, "Гипертония")
	catalog.addLesson(&course.Lesson{
		ID:       10,
		CourseID: 1,
		Ordinal:  1,
		Title:    "Первый урок",
		Questions: []course.Question{
			{ID: 101, Text: "2+2?", Answer: "4", Points: 2},
			{ID: 102, Text: "Столица РФ?", Answer: "Москва", Points: 3},
		},
	})

	return handler, ledger, bus
}

func enrollContract(t *testing.T, ledger *fakeLedger, contractID int64, courseID int64) {
	t.Helper()
	e, err := enrollment.New("00000000-0000-4000-8000-0000000000ff", contract.ID(contractID), course.ID(courseID))
	require.NoError(t, err)
	require.NoError(t, ledger.Create(context.Background(), e))
}

func TestSubmitLesson_FirstSubmissionScores(t *testing.T) {
	handler, ledger, bus := newSubmitFixture(t)
	enrollContract(t, ledger, 500, 1)

	result, err := handler.Handle(context.Background(), SubmitLessonCommand{
		ContractID: 500,
		LessonID:   10,
		Answers:    map[string]string{"101": "4", "102": "москва"},
	})
	require.NoError(t, err)

	assert.True(t, result.First)
	assert.Equal(t, 5, result.Points)
	assert.Equal(t, 5, result.MaxPoints)
	assert.Equal(t, 5, result.TotalPoints)

	e, err := ledger.Get(context.Background(), 500, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, e.Points)

	assert.Len(t, bus.published(shared.EventLessonScored), 1)
}

func TestSubmitLesson_RepeatSubmissionIsNoop(t *testing.T) {
	handler, ledger, bus := newSubmitFixture(t)
	enrollContract(t, ledger, 500, 1)

	first, err := handler.Handle(context.Background(), SubmitLessonCommand{
		ContractID: 500,
		LessonID:   10,
		Answers:    map[string]string{"101": "4"},
	})
	require.NoError(t, err)
	assert.True(t, first.First)
	assert.Equal(t, 2, first.Points)

	// Second submission with better answers: claim already taken,
	// no points, no message.
	second, err := handler.Handle(context.Background(), SubmitLessonCommand{
		ContractID: 500,
		LessonID:   10,
		Answers:    map[string]string{"101": "4", "102": "Москва"},
	})
	require.NoError(t, err)
	assert.False(t, second.First)
	assert.Equal(t, 0, second.Points)

	e, err := ledger.Get(context.Background(), 500, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Points)

	assert.Len(t, bus.published(shared.EventLessonScored), 1)
}

func TestSubmitLesson_WithoutEnrollment(t *testing.T) {
	handler, _, bus := newSubmitFixture(t)

	_, err := handler.Handle(context.Background(), SubmitLessonCommand{
		ContractID: 500,
		LessonID:   10,
		Answers:    map[string]string{"101": "4"},
	})

	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, bus.published(shared.EventLessonScored))
}

func TestSubmitLesson_UnknownLesson(t *testing.T) {
	handler, ledger, _ := newSubmitFixture(t)
	enrollContract(t, ledger, 500, 1)

	_, err := handler.Handle(context.Background(), SubmitLessonCommand{
		ContractID: 500,
		LessonID:   999,
		Answers:    map[string]string{},
	})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSubmitLesson_ConcurrentSubmissionsScoreOnce(t *testing.T) {
	handler, ledger, bus := newSubmitFixture(t)
	enrollContract(t, ledger, 500, 1)

	const n = 32
	results := make(chan *SubmitLessonResult, n)
	errs := make(chan error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := handler.Handle(context.Background(), SubmitLessonCommand{
				ContractID: 500,
				LessonID:   10,
				Answers:    map[string]string{"101": "4", "102": "Москва"},
			})
			if err != nil {
				errs <- err
				return
			}
			results <- result
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	firsts := 0
	for result := range results {
		if result.First {
			firsts++
			assert.Equal(t, 5, result.Points)
			assert.Equal(t, 5, result.TotalPoints)
		} else {
			assert.Zero(t, result.Points)
		}
	}
	assert.Equal(t, 1, firsts, "exactly one concurrent submission claims the lesson")

	e, err := ledger.Get(context.Background(), 500, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, e.Points)

	assert.Len(t, bus.published(shared.EventLessonScored), 1)
}

func TestSubmitLesson_ZeroScoreStillClaims(t *testing.T) {
	handler, ledger, bus := newSubmitFixture(t)
	enrollContract(t, ledger, 500, 1)

	result, err := handler.Handle(context.Background(), SubmitLessonCommand{
		ContractID: 500,
		LessonID:   10,
		Answers:    map[string]string{"101": "5", "102": "Питер"},
	})
	require.NoError(t, err)

	assert.True(t, result.First)
	assert.Equal(t, 0, result.Points)
	assert.Equal(t, 5, result.MaxPoints)

	// The failed attempt still consumed the single completion slot.
	done, err := ledger.HasCompleted(context.Background(), 500, 10)
	require.NoError(t, err)
	assert.True(t, done)

	assert.Len(t, bus.published(shared.EventLessonScored), 1)
}
