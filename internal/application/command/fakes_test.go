package command

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/enrollment"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

// In-memory fakes for the repository interfaces. They mirror the
// semantics the Postgres implementations guarantee (unique rows,
// idempotent deletes) closely enough for handler-level tests.

// ─────────────────────────────────────────────────────────────────────────────
// Contract repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeContractRepo struct {
	mu        sync.Mutex
	contracts map[contract.ID]*contract.Contract
}

func newFakeContractRepo() *fakeContractRepo {
	return &fakeContractRepo{contracts: make(map[contract.ID]*contract.Contract)}
}

func (r *fakeContractRepo) Create(ctx context.Context, c *contract.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contracts[c.ID]; ok {
		return shared.ErrContractExists
	}
	r.contracts[c.ID] = c.Clone()
	return nil
}

func (r *fakeContractRepo) GetByID(ctx context.Context, id contract.ID) (*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[id]
	if !ok {
		return nil, contract.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *fakeContractRepo) GetByAgentToken(ctx context.Context, token contract.AgentToken) (*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contracts {
		if c.AgentToken == token {
			return c.Clone(), nil
		}
	}
	return nil, contract.ErrNotFound
}

func (r *fakeContractRepo) Update(ctx context.Context, c *contract.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contracts[c.ID]; !ok {
		return contract.ErrNotFound
	}
	r.contracts[c.ID] = c.Clone()
	return nil
}

func (r *fakeContractRepo) ListActive(ctx context.Context) ([]contract.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []contract.ID
	for id, c := range r.contracts {
		if c.IsActive() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeContractRepo) CountActive(ctx context.Context) (int, error) {
	ids, _ := r.ListActive(ctx)
	return len(ids), nil
}

func (r *fakeContractRepo) Exists(ctx context.Context, id contract.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.contracts[id]
	return ok, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Course catalog
// ─────────────────────────────────────────────────────────────────────────────

type fakeCourseRepo struct {
	courses map[course.ID]*course.Course
	lessons map[course.LessonID]*course.Lesson
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{
		courses: make(map[course.ID]*course.Course),
		lessons: make(map[course.LessonID]*course.Lesson),
	}
}

func (r *fakeCourseRepo) addCourse(id course.ID, title string) {
	r.courses[id] = &course.Course{ID: id, Title: title}
}

func (r *fakeCourseRepo) addLesson(l *course.Lesson) {
	r.lessons[l.ID] = l
}

func (r *fakeCourseRepo) GetByID(ctx context.Context, id course.ID) (*course.Course, error) {
	c, ok := r.courses[id]
	if !ok {
		return nil, course.ErrNotFound
	}
	return c, nil
}

func (r *fakeCourseRepo) List(ctx context.Context) ([]*course.Course, error) {
	var out []*course.Course
	for _, c := range r.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCourseRepo) Exists(ctx context.Context, id course.ID) (bool, error) {
	_, ok := r.courses[id]
	return ok, nil
}

func (r *fakeCourseRepo) GetLesson(ctx context.Context, id course.LessonID) (*course.Lesson, error) {
	l, ok := r.lessons[id]
	if !ok {
		return nil, course.ErrLessonNotFound
	}
	return l, nil
}

func (r *fakeCourseRepo) ListLessons(ctx context.Context, courseID course.ID) ([]*course.Lesson, error) {
	var out []*course.Lesson
	for _, l := range r.lessons {
		if l.CourseID == courseID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (r *fakeCourseRepo) FirstLesson(ctx context.Context, courseID course.ID) (*course.Lesson, error) {
	lessons, _ := r.ListLessons(ctx, courseID)
	if len(lessons) == 0 {
		return nil, course.ErrLessonNotFound
	}
	return lessons[0], nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollment ledger + completion ledger + submission store
// ─────────────────────────────────────────────────────────────────────────────

type enrollmentKey struct {
	contractID contract.ID
	courseID   course.ID
}

type completionKey struct {
	contractID contract.ID
	lessonID   course.LessonID
}

type fakeLedger struct {
	mu          sync.Mutex
	enrollments map[enrollmentKey]*enrollment.Enrollment
	completions map[completionKey]*enrollment.Completion
	order       []enrollmentKey
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		enrollments: make(map[enrollmentKey]*enrollment.Enrollment),
		completions: make(map[completionKey]*enrollment.Completion),
	}
}

func (l *fakeLedger) Create(ctx context.Context, e *enrollment.Enrollment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := enrollmentKey{e.ContractID, e.CourseID}
	if _, ok := l.enrollments[key]; ok {
		return nil // idempotent
	}
	clone := *e
	l.enrollments[key] = &clone
	l.order = append(l.order, key)
	return nil
}

func (l *fakeLedger) Delete(ctx context.Context, contractID contract.ID, courseID course.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.enrollments, enrollmentKey{contractID, courseID})
	return nil
}

func (l *fakeLedger) DeleteByContract(ctx context.Context, contractID contract.ID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key := range l.enrollments {
		if key.contractID == contractID {
			delete(l.enrollments, key)
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) Get(ctx context.Context, contractID contract.ID, courseID course.ID) (*enrollment.Enrollment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.enrollments[enrollmentKey{contractID, courseID}]
	if !ok {
		return nil, enrollment.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (l *fakeLedger) ListByContract(ctx context.Context, contractID contract.ID) ([]*enrollment.Enrollment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*enrollment.Enrollment
	for _, key := range l.order {
		if key.contractID != contractID {
			continue
		}
		if e, ok := l.enrollments[key]; ok {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (l *fakeLedger) IsEnrolled(ctx context.Context, contractID contract.ID, courseID course.ID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.enrollments[enrollmentKey{contractID, courseID}]
	return ok, nil
}

func (l *fakeLedger) AddPoints(ctx context.Context, contractID contract.ID, courseID course.ID, delta int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addPointsLocked(contractID, courseID, delta)
}

func (l *fakeLedger) addPointsLocked(contractID contract.ID, courseID course.ID, delta int) (int, error) {
	if delta < 0 {
		return 0, enrollment.ErrNegativeDelta
	}
	e, ok := l.enrollments[enrollmentKey{contractID, courseID}]
	if !ok {
		return 0, enrollment.ErrNotFound
	}
	e.Points += delta
	return e.Points, nil
}

// TryComplete implements enrollment.CompletionLedger.
func (l *fakeLedger) TryComplete(ctx context.Context, c *enrollment.Completion) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tryCompleteLocked(c), nil
}

func (l *fakeLedger) tryCompleteLocked(c *enrollment.Completion) bool {
	key := completionKey{c.ContractID, c.LessonID}
	if _, ok := l.completions[key]; ok {
		return false
	}
	clone := *c
	l.completions[key] = &clone
	return true
}

func (l *fakeLedger) HasCompleted(ctx context.Context, contractID contract.ID, lessonID course.LessonID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.completions[completionKey{contractID, lessonID}]
	return ok, nil
}

func (l *fakeLedger) ListByContractCompletions(contractID contract.ID) []*enrollment.Completion {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*enrollment.Completion
	for _, c := range l.completions {
		if c.ContractID == contractID {
			out = append(out, c)
		}
	}
	return out
}

// CompleteAndAward implements enrollment.SubmissionStore: the claim and
// the award happen under one lock, mirroring the single transaction of
// the Postgres implementation.
func (l *fakeLedger) CompleteAndAward(ctx context.Context, c *enrollment.Completion, courseID course.ID) (enrollment.AwardResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.enrollments[enrollmentKey{c.ContractID, courseID}]; !ok {
		return enrollment.AwardResult{}, enrollment.ErrNotFound
	}

	if !l.tryCompleteLocked(c) {
		return enrollment.AwardResult{First: false}, nil
	}

	total, err := l.addPointsLocked(c.ContractID, courseID, c.Points)
	if err != nil {
		return enrollment.AwardResult{}, err
	}
	return enrollment.AwardResult{First: true, TotalPoints: total}, nil
}

// completionLedgerView adapts fakeLedger to enrollment.CompletionLedger.
type completionLedgerView struct {
	ledger *fakeLedger
}

func (v completionLedgerView) TryComplete(ctx context.Context, c *enrollment.Completion) (bool, error) {
	return v.ledger.TryComplete(ctx, c)
}

func (v completionLedgerView) HasCompleted(ctx context.Context, contractID contract.ID, lessonID course.LessonID) (bool, error) {
	return v.ledger.HasCompleted(ctx, contractID, lessonID)
}

func (v completionLedgerView) ListByContract(ctx context.Context, contractID contract.ID) ([]*enrollment.Completion, error) {
	return v.ledger.ListByContractCompletions(contractID), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Generators and event bus
// ─────────────────────────────────────────────────────────────────────────────

type fakeIDGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *fakeIDGenerator) GenerateID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", g.n)
}

type fakeTokenGenerator struct{}

func (fakeTokenGenerator) GenerateToken() (string, error) {
	return "0123456789abcdef0123456789abcdef", nil
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *fakeEventBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *fakeEventBus) published(eventType shared.EventType) []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []shared.Event
	for _, e := range b.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}
