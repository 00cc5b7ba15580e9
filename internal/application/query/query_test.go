package query

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/enrollment"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

// In-memory fixture shared by the query tests. Read models only need
// lookups, so the maps stay unguarded.

type fixture struct {
	contracts   map[contract.ID]*contract.Contract
	courses     map[course.ID]*course.Course
	lessons     map[course.LessonID]*course.Lesson
	enrollments map[contract.ID]map[course.ID]*enrollment.Enrollment
	completions map[contract.ID]map[course.LessonID]*enrollment.Completion
}

func newFixture() *fixture {
	return &fixture{
		contracts:   make(map[contract.ID]*contract.Contract),
		courses:     make(map[course.ID]*course.Course),
		lessons:     make(map[course.LessonID]*course.Lesson),
		enrollments: make(map[contract.ID]map[course.ID]*enrollment.Enrollment),
		completions: make(map[contract.ID]map[course.LessonID]*enrollment.Completion),
	}
}

func (f *fixture) addContract(t *testing.T, id contract.ID) {
	t.Helper()
	c, err := contract.New(id, "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	f.contracts[id] = c
}

func (f *fixture) enroll(contractID contract.ID, courseID course.ID, points int) {
	if f.enrollments[contractID] == nil {
		f.enrollments[contractID] = make(map[course.ID]*enrollment.Enrollment)
	}
	f.enrollments[contractID][courseID] = &enrollment.Enrollment{
		ID:         "00000000-0000-4000-8000-000000000001",
		ContractID: contractID,
		CourseID:   courseID,
		Points:     points,
		EnrolledAt: time.Now().UTC(),
	}
}

func (f *fixture) complete(contractID contract.ID, lessonID course.LessonID, points int) {
	if f.completions[contractID] == nil {
		f.completions[contractID] = make(map[course.LessonID]*enrollment.Completion)
	}
	f.completions[contractID][lessonID] = &enrollment.Completion{
		ID:          "00000000-0000-4000-8000-000000000002",
		ContractID:  contractID,
		LessonID:    lessonID,
		Points:      points,
		CompletedAt: time.Now().UTC(),
	}
}

// ── contract.Repository ──────────────────────────────────────────────────────

func (f *fixture) Create(ctx context.Context, c *contract.Contract) error { return nil }

func (f *fixture) GetByID(ctx context.Context, id contract.ID) (*contract.Contract, error) {
	c, ok := f.contracts[id]
	if !ok {
		return nil, contract.ErrNotFound
	}
	return c, nil
}

func (f *fixture) GetByAgentToken(ctx context.Context, token contract.AgentToken) (*contract.Contract, error) {
	for _, c := range f.contracts {
		if c.AgentToken == token {
			return c, nil
		}
	}
	return nil, contract.ErrNotFound
}

func (f *fixture) Update(ctx context.Context, c *contract.Contract) error { return nil }

func (f *fixture) ListActive(ctx context.Context) ([]contract.ID, error) {
	var ids []contract.ID
	for id, c := range f.contracts {
		if c.IsActive() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fixture) CountActive(ctx context.Context) (int, error) {
	ids, _ := f.ListActive(ctx)
	return len(ids), nil
}

func (f *fixture) Exists(ctx context.Context, id contract.ID) (bool, error) {
	_, ok := f.contracts[id]
	return ok, nil
}

// ── course.Repository ────────────────────────────────────────────────────────

type catalogView struct{ f *fixture }

func (v catalogView) GetByID(ctx context.Context, id course.ID) (*course.Course, error) {
	c, ok := v.f.courses[id]
	if !ok {
		return nil, course.ErrNotFound
	}
	return c, nil
}

func (v catalogView) List(ctx context.Context) ([]*course.Course, error) {
	var out []*course.Course
	for _, c := range v.f.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v catalogView) Exists(ctx context.Context, id course.ID) (bool, error) {
	_, ok := v.f.courses[id]
	return ok, nil
}

func (v catalogView) GetLesson(ctx context.Context, id course.LessonID) (*course.Lesson, error) {
	l, ok := v.f.lessons[id]
	if !ok {
		return nil, course.ErrLessonNotFound
	}
	return l, nil
}

func (v catalogView) ListLessons(ctx context.Context, courseID course.ID) ([]*course.Lesson, error) {
	var out []*course.Lesson
	for _, l := range v.f.lessons {
		if l.CourseID == courseID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (v catalogView) FirstLesson(ctx context.Context, courseID course.ID) (*course.Lesson, error) {
	lessons, _ := v.ListLessons(ctx, courseID)
	if len(lessons) == 0 {
		return nil, course.ErrLessonNotFound
	}
	return lessons[0], nil
}

// ── enrollment.Ledger (reads only) ───────────────────────────────────────────

type ledgerView struct{ f *fixture }

func (v ledgerView) Create(ctx context.Context, e *enrollment.Enrollment) error { return nil }

func (v ledgerView) Delete(ctx context.Context, contractID contract.ID, courseID course.ID) error {
	return nil
}

func (v ledgerView) DeleteByContract(ctx context.Context, contractID contract.ID) (int, error) {
	return 0, nil
}

func (v ledgerView) Get(ctx context.Context, contractID contract.ID, courseID course.ID) (*enrollment.Enrollment, error) {
	e, ok := v.f.enrollments[contractID][courseID]
	if !ok {
		return nil, enrollment.ErrNotFound
	}
	return e, nil
}

func (v ledgerView) ListByContract(ctx context.Context, contractID contract.ID) ([]*enrollment.Enrollment, error) {
	var out []*enrollment.Enrollment
	for _, e := range v.f.enrollments[contractID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

func (v ledgerView) IsEnrolled(ctx context.Context, contractID contract.ID, courseID course.ID) (bool, error) {
	_, ok := v.f.enrollments[contractID][courseID]
	return ok, nil
}

func (v ledgerView) AddPoints(ctx context.Context, contractID contract.ID, courseID course.ID, delta int) (int, error) {
	return 0, nil
}

// ── enrollment.CompletionLedger (reads only) ─────────────────────────────────

type completionsView struct{ f *fixture }

func (v completionsView) TryComplete(ctx context.Context, c *enrollment.Completion) (bool, error) {
	return false, nil
}

func (v completionsView) HasCompleted(ctx context.Context, contractID contract.ID, lessonID course.LessonID) (bool, error) {
	_, ok := v.f.completions[contractID][lessonID]
	return ok, nil
}

func (v completionsView) ListByContract(ctx context.Context, contractID contract.ID) ([]*enrollment.Completion, error) {
	var out []*enrollment.Completion
	for _, c := range v.f.completions[contractID] {
		out = append(out, c)
	}
	return out, nil
}

func (v completionsView) DeleteByContract(ctx context.Context, contractID contract.ID) (int, error) {
	return 0, nil
}

// ── seed data ────────────────────────────────────────────────────────────────

func seed(t *testing.T) *fixture {
	t.Helper()
	f := newFixture()

	f.addContract(t, 500)

	f.courses[1] = &course.Course{ID: 1, Title: "Гипертония", Description: "Контроль давления"}
	f.courses[2] = &course.Course{ID: 2, Title: "Диабет 2 типа"}

	f.lessons[10] = &course.Lesson{
		ID: 10, CourseID: 1, Ordinal: 1, Title: "Первый урок", Text: "Материал",
		Questions: []course.Question{
			{ID: 101, Text: "2+2?", Answer: "4", Points: 2},
			{ID: 102, Text: "Столица РФ?", Answer: "Москва", Points: 3},
		},
	}
	f.lessons[11] = &course.Lesson{ID: 11, CourseID: 1, Ordinal: 2, Title: "Второй урок"}
	f.lessons[20] = &course.Lesson{ID: 20, CourseID: 2, Ordinal: 1, Title: "Про сахар"}

	return f
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestGetAgentStatus(t *testing.T) {
	f := seed(t)
	f.addContract(t, 501)
	f.contracts[501].Deactivate()

	handler := NewGetAgentStatusHandler(f, catalogView{f})
	result, err := handler.Handle(context.Background(), GetAgentStatusQuery{})
	require.NoError(t, err)

	assert.True(t, result.IsTrackingData)
	assert.Equal(t, []int64{500}, result.TrackedContracts)
	assert.Equal(t, 2, result.CourseCount)
	assert.NotNil(t, result.SupportedScenarios)
}

func TestGetContractCourses_AnnotatesEnrollment(t *testing.T) {
	f := seed(t)
	f.enroll(500, 1, 5)

	handler := NewGetContractCoursesHandler(f, catalogView{f}, ledgerView{f})
	result, err := handler.Handle(context.Background(), GetContractCoursesQuery{ContractID: 500})
	require.NoError(t, err)

	require.Len(t, result.Courses, 2)

	first := result.Courses[0]
	assert.Equal(t, int64(1), first.ID)
	assert.True(t, first.Enrolled)
	assert.Equal(t, 5, first.Points)
	assert.Equal(t, "5 баллов", first.PointsFormatted)
	assert.Equal(t, 2, first.LessonCount)
	assert.Equal(t, "2 урока", first.LessonCountFormatted)

	second := result.Courses[1]
	assert.False(t, second.Enrolled)
	assert.Zero(t, second.Points)

	assert.Equal(t, 5, result.TotalPoints)
}

func TestGetContractCourses_EnrolledOnly(t *testing.T) {
	f := seed(t)
	f.enroll(500, 2, 0)

	handler := NewGetContractCoursesHandler(f, catalogView{f}, ledgerView{f})
	result, err := handler.Handle(context.Background(), GetContractCoursesQuery{
		ContractID:   500,
		EnrolledOnly: true,
	})
	require.NoError(t, err)

	require.Len(t, result.Courses, 1)
	assert.Equal(t, int64(2), result.Courses[0].ID)
}

func TestGetContractCourses_UnknownContract(t *testing.T) {
	f := seed(t)

	handler := NewGetContractCoursesHandler(f, catalogView{f}, ledgerView{f})
	_, err := handler.Handle(context.Background(), GetContractCoursesQuery{ContractID: 999})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetLesson_StripsAnswers(t *testing.T) {
	f := seed(t)
	f.enroll(500, 1, 0)

	handler := NewGetLessonHandler(catalogView{f}, ledgerView{f}, completionsView{f})
	result, err := handler.Handle(context.Background(), GetLessonQuery{ContractID: 500, LessonID: 10})
	require.NoError(t, err)

	assert.Equal(t, "Гипертония", result.CourseTitle)
	assert.Equal(t, 5, result.MaxPoints)
	assert.False(t, result.Completed)

	require.Len(t, result.Questions, 2)
	assert.Equal(t, int64(101), result.Questions[0].ID)
	assert.Equal(t, "2+2?", result.Questions[0].Text)
}

func TestGetLesson_CompletedMarker(t *testing.T) {
	f := seed(t)
	f.enroll(500, 1, 2)
	f.complete(500, 10, 2)

	handler := NewGetLessonHandler(catalogView{f}, ledgerView{f}, completionsView{f})
	result, err := handler.Handle(context.Background(), GetLessonQuery{ContractID: 500, LessonID: 10})
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Equal(t, 2, result.EarnedPoints)
}

func TestGetLesson_RequiresEnrollment(t *testing.T) {
	f := seed(t)

	handler := NewGetLessonHandler(catalogView{f}, ledgerView{f}, completionsView{f})
	_, err := handler.Handle(context.Background(), GetLessonQuery{ContractID: 500, LessonID: 10})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetCoursePreview(t *testing.T) {
	f := seed(t)

	handler := NewGetCoursePreviewHandler(catalogView{f})
	result, err := handler.Handle(context.Background(), GetCoursePreviewQuery{CourseID: 1})
	require.NoError(t, err)

	assert.Equal(t, "Гипертония", result.Title)
	require.Len(t, result.Lessons, 2)
	assert.Equal(t, "4", result.Lessons[0].Questions[0].Answer, "preview keeps reference answers")
	assert.Equal(t, 5, result.TotalMaxPoints)
	assert.Equal(t, "2 урока", result.LessonCountFormatted)
}

func TestGetCoursePreview_UnknownCourse(t *testing.T) {
	f := seed(t)

	handler := NewGetCoursePreviewHandler(catalogView{f})
	_, err := handler.Handle(context.Background(), GetCoursePreviewQuery{CourseID: 777})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}
