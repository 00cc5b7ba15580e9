package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medsenger/education-agent/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG CACHE
// Implements course.Cache on top of the generic Cache client. Courses,
// lessons and the course list are cached independently; Invalidate
// clears all three namespaces.
// ══════════════════════════════════════════════════════════════════════════════

const catalogListKey = PrefixCatalog + "courses"

// CatalogCache caches the course catalog in Redis.
type CatalogCache struct {
	cache *Cache
}

// NewCatalogCache creates a new CatalogCache.
func NewCatalogCache(cache *Cache) *CatalogCache {
	return &CatalogCache{cache: cache}
}

// GetCourse returns a cached course, or course.ErrNotFound on a miss.
func (c *CatalogCache) GetCourse(ctx context.Context, id course.ID) (*course.Course, error) {
	var cached course.Course
	err := c.cache.Get(ctx, courseKey(id), &cached)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, course.ErrNotFound
		}
		return nil, err
	}
	return &cached, nil
}

// SetCourse stores a course in the cache.
func (c *CatalogCache) SetCourse(ctx context.Context, crs *course.Course, ttl time.Duration) error {
	return c.cache.Set(ctx, courseKey(crs.ID), crs, ttl)
}

// GetLesson returns a cached lesson, or course.ErrLessonNotFound on a miss.
func (c *CatalogCache) GetLesson(ctx context.Context, id course.LessonID) (*course.Lesson, error) {
	var cached course.Lesson
	err := c.cache.Get(ctx, lessonKey(id), &cached)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, course.ErrLessonNotFound
		}
		return nil, err
	}
	return &cached, nil
}

// SetLesson stores a lesson with its questions in the cache.
func (c *CatalogCache) SetLesson(ctx context.Context, l *course.Lesson, ttl time.Duration) error {
	return c.cache.Set(ctx, lessonKey(l.ID), l, ttl)
}

// GetCourseList returns the cached course list, or course.ErrNotFound on a miss.
func (c *CatalogCache) GetCourseList(ctx context.Context) ([]*course.Course, error) {
	var cached []*course.Course
	err := c.cache.Get(ctx, catalogListKey, &cached)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, course.ErrNotFound
		}
		return nil, err
	}
	return cached, nil
}

// SetCourseList stores the full course list in the cache.
func (c *CatalogCache) SetCourseList(ctx context.Context, courses []*course.Course, ttl time.Duration) error {
	return c.cache.Set(ctx, catalogListKey, courses, ttl)
}

// Invalidate clears all catalog keys.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if err := c.cache.DeleteByPattern(ctx, PrefixCourse+"*"); err != nil {
		return err
	}
	if err := c.cache.DeleteByPattern(ctx, PrefixLesson+"*"); err != nil {
		return err
	}
	return c.cache.Delete(ctx, catalogListKey)
}

func courseKey(id course.ID) string {
	return fmt.Sprintf("%s%d", PrefixCourse, id.Int64())
}

func lessonKey(id course.LessonID) string {
	return fmt.Sprintf("%s%d", PrefixLesson, id.Int64())
}
