package redis

import (
	"context"
	"time"

	"github.com/medsenger/education-agent/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED COURSE REPOSITORY
// Декоратор над course.Repository: читает из Redis, при промахе идёт
// в Postgres и прогревает кеш. Ошибки кеша не роняют запрос - каталог
// всегда доступен напрямую из базы.
// ══════════════════════════════════════════════════════════════════════════════

// CachedCourseRepository implements course.Repository with a Redis
// cache in front of another repository.
type CachedCourseRepository struct {
	inner course.Repository
	cache course.Cache
	ttl   time.Duration
}

// CachedRepoOption configures a CachedCourseRepository.
type CachedRepoOption func(*CachedCourseRepository)

// WithCatalogTTL overrides the default catalog cache TTL.
func WithCatalogTTL(ttl time.Duration) CachedRepoOption {
	return func(r *CachedCourseRepository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewCachedCourseRepository creates a new CachedCourseRepository.
func NewCachedCourseRepository(inner course.Repository, cache course.Cache, opts ...CachedRepoOption) *CachedCourseRepository {
	r := &CachedCourseRepository{inner: inner, cache: cache, ttl: TTLCatalogList}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetByID returns a course, preferring the cache.
func (r *CachedCourseRepository) GetByID(ctx context.Context, id course.ID) (*course.Course, error) {
	if cached, err := r.cache.GetCourse(ctx, id); err == nil {
		return cached, nil
	}

	c, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = r.cache.SetCourse(ctx, c, r.ttl)
	return c, nil
}

// List returns the catalog, preferring the cached list.
func (r *CachedCourseRepository) List(ctx context.Context) ([]*course.Course, error) {
	if cached, err := r.cache.GetCourseList(ctx); err == nil {
		return cached, nil
	}

	courses, err := r.inner.List(ctx)
	if err != nil {
		return nil, err
	}

	_ = r.cache.SetCourseList(ctx, courses, r.ttl)
	return courses, nil
}

// Exists checks course existence. Negative answers are not cached, so
// the check goes through GetByID's cache path first.
func (r *CachedCourseRepository) Exists(ctx context.Context, id course.ID) (bool, error) {
	if _, err := r.cache.GetCourse(ctx, id); err == nil {
		return true, nil
	}
	return r.inner.Exists(ctx, id)
}

// GetLesson returns a lesson with questions, preferring the cache.
func (r *CachedCourseRepository) GetLesson(ctx context.Context, id course.LessonID) (*course.Lesson, error) {
	if cached, err := r.cache.GetLesson(ctx, id); err == nil {
		return cached, nil
	}

	l, err := r.inner.GetLesson(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = r.cache.SetLesson(ctx, l, r.ttl)
	return l, nil
}

// ListLessons always hits the inner repository: per-course lesson
// lists are only needed on the settings and preview pages.
func (r *CachedCourseRepository) ListLessons(ctx context.Context, courseID course.ID) ([]*course.Lesson, error) {
	return r.inner.ListLessons(ctx, courseID)
}

// FirstLesson always hits the inner repository.
func (r *CachedCourseRepository) FirstLesson(ctx context.Context, courseID course.ID) (*course.Lesson, error) {
	return r.inner.FirstLesson(ctx, courseID)
}
