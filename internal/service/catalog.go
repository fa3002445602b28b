package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"coursehub/internal/models"
	"coursehub/internal/redisclient"
	"coursehub/internal/util"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	cacheKeyAllCourses      = "all"
	cacheKeyFeaturedCourses = "featured"
)

// CatalogStore is the slice of the store the catalog service needs.
type CatalogStore interface {
	GetCourses(ctx context.Context) ([]models.Course, error)
	GetFeaturedCourses(ctx context.Context) ([]models.Course, error)
	GetCourseByID(ctx context.Context, id string) (*models.Course, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, course *models.Course) error
	DeleteCourse(ctx context.Context, id string) error
	CreateLesson(ctx context.Context, lesson *models.Lesson) error
	UpdateLesson(ctx context.Context, lesson *models.Lesson) (bool, error)
	DeleteLesson(ctx context.Context, courseID, lessonID string) (bool, error)
	HasCourse(ctx context.Context, accountID, courseID string) (bool, error)
}

// CatalogService handles course browsing and admin mutations. Reads go
// through Redis with a database fallback; mutations invalidate the cache.
type CatalogService struct {
	store    CatalogStore
	redis    *redisclient.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service. redis may be nil, in
// which case every read falls through to the database.
func NewCatalogService(store CatalogStore, redis *redisclient.Client, cacheTTL time.Duration) *CatalogService {
	return &CatalogService{
		store:    store,
		redis:    redis,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ListCourses returns all courses, newest first
func (s *CatalogService) ListCourses(ctx context.Context) ([]models.Course, error) {
	return s.cachedCourses(ctx, cacheKeyAllCourses, s.store.GetCourses)
}

// FeaturedCourses returns the featured subset, newest first
func (s *CatalogService) FeaturedCourses(ctx context.Context) ([]models.Course, error) {
	return s.cachedCourses(ctx, cacheKeyFeaturedCourses, s.store.GetFeaturedCourses)
}

func (s *CatalogService) cachedCourses(ctx context.Context, key string, load func(context.Context) ([]models.Course, error)) ([]models.Course, error) {
	if s.redis != nil {
		data, found, err := s.redis.GetCatalogCache(ctx, key)
		if err != nil {
			s.logger.Warn("Catalog cache read failed, falling back to DB",
				zap.String("key", key), zap.Error(err))
		} else if found {
			var courses []models.Course
			if err := json.Unmarshal(data, &courses); err == nil {
				util.CatalogCacheHitsTotal.Inc()
				return courses, nil
			}
		}
	}

	util.CatalogCacheMissesTotal.Inc()
	courses, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(courses); err == nil {
			if err := s.redis.SetCatalogCache(ctx, key, data, s.cacheTTL); err != nil {
				s.logger.Warn("Catalog cache write failed", zap.Error(err))
			}
		}
	}
	return courses, nil
}

// GetCourse returns one course with lessons re-sorted by their explicit
// order index. Lesson bodies and video references are withheld unless the
// viewer owns the course or is an admin; title, description and duration
// stay visible as the public syllabus.
func (s *CatalogService) GetCourse(ctx context.Context, id string, viewer *models.Account) (*models.Course, error) {
	course, err := s.store.GetCourseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	SortLessons(course.Lessons)

	entitled, err := s.viewerEntitled(ctx, viewer, course.ID)
	if err != nil {
		return nil, err
	}
	if !entitled {
		for i := range course.Lessons {
			course.Lessons[i].Content = ""
			course.Lessons[i].VideoURL = ""
		}
	}

	return course, nil
}

func (s *CatalogService) viewerEntitled(ctx context.Context, viewer *models.Account, courseID string) (bool, error) {
	if viewer == nil {
		return false, nil
	}
	if viewer.IsAdmin() || viewer.Owns(courseID) {
		return true, nil
	}

	// Entitlement may have landed after the viewer's account was resolved;
	// the cache sees reconciler grants immediately.
	if s.redis != nil {
		if ok, err := s.redis.IsEntitled(ctx, viewer.ID, courseID); err == nil && ok {
			return true, nil
		}
	}
	return s.store.HasCourse(ctx, viewer.ID, courseID)
}

// SortLessons orders lessons for display. The order index is neither
// contiguous nor unique, so creation time breaks ties.
func SortLessons(lessons []models.Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		if lessons[i].OrderIndex != lessons[j].OrderIndex {
			return lessons[i].OrderIndex < lessons[j].OrderIndex
		}
		return lessons[i].CreatedAt.Before(lessons[j].CreatedAt)
	})
}

// CourseInput carries admin-supplied course fields
type CourseInput struct {
	Title           string   `json:"title" binding:"required"`
	Description     string   `json:"description"`
	LongDescription string   `json:"long_description"`
	Price           int64    `json:"price" binding:"min=0"`
	ImageURL        string   `json:"image_url"`
	Category        string   `json:"category"`
	Features        []string `json:"features"`
	IsFeatured      bool     `json:"is_featured"`
}

// CreateCourse inserts a new course
func (s *CatalogService) CreateCourse(ctx context.Context, input *CourseInput) (*models.Course, error) {
	course := &models.Course{
		ID:              uuid.New().String(),
		Title:           input.Title,
		Description:     input.Description,
		LongDescription: input.LongDescription,
		Price:           input.Price,
		ImageURL:        input.ImageURL,
		Category:        input.Category,
		Features:        pq.StringArray(input.Features),
		IsFeatured:      input.IsFeatured,
	}

	if err := s.store.CreateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	s.invalidateCache(ctx)
	s.logger.Info("Course created", zap.String("course_id", course.ID), zap.String("title", course.Title))
	return course, nil
}

// UpdateCourse updates an existing course
func (s *CatalogService) UpdateCourse(ctx context.Context, id string, input *CourseInput) (*models.Course, error) {
	existing, err := s.store.GetCourseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrCourseNotFound
	}

	existing.Title = input.Title
	existing.Description = input.Description
	existing.LongDescription = input.LongDescription
	existing.Price = input.Price
	existing.ImageURL = input.ImageURL
	existing.Category = input.Category
	existing.Features = pq.StringArray(input.Features)
	existing.IsFeatured = input.IsFeatured

	if err := s.store.UpdateCourse(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update course: %w", err)
	}

	s.invalidateCache(ctx)
	return existing, nil
}

// DeleteCourse removes a course and its lessons
func (s *CatalogService) DeleteCourse(ctx context.Context, id string) error {
	existing, err := s.store.GetCourseByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrCourseNotFound
	}

	if err := s.store.DeleteCourse(ctx, id); err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}

	s.invalidateCache(ctx)
	s.logger.Info("Course deleted", zap.String("course_id", id))
	return nil
}

// LessonInput carries admin-supplied lesson fields
type LessonInput struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url"`
	DurationMinutes int    `json:"duration_minutes" binding:"min=0"`
	OrderIndex      int    `json:"order_index"`
}

// AddLesson appends a lesson to a course. The lesson gets its own row, so
// two admins adding lessons concurrently cannot lose each other's writes.
func (s *CatalogService) AddLesson(ctx context.Context, courseID string, input *LessonInput) (*models.Lesson, error) {
	course, err := s.store.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	lesson := &models.Lesson{
		ID:              uuid.New().String(),
		CourseID:        courseID,
		Title:           input.Title,
		Description:     input.Description,
		Content:         input.Content,
		VideoURL:        input.VideoURL,
		DurationMinutes: input.DurationMinutes,
		OrderIndex:      input.OrderIndex,
	}

	if err := s.store.CreateLesson(ctx, lesson); err != nil {
		return nil, fmt.Errorf("failed to create lesson: %w", err)
	}

	s.invalidateCache(ctx)
	return lesson, nil
}

// UpdateLesson updates a single lesson atomically
func (s *CatalogService) UpdateLesson(ctx context.Context, courseID, lessonID string, input *LessonInput) (*models.Lesson, error) {
	lesson := &models.Lesson{
		ID:              lessonID,
		CourseID:        courseID,
		Title:           input.Title,
		Description:     input.Description,
		Content:         input.Content,
		VideoURL:        input.VideoURL,
		DurationMinutes: input.DurationMinutes,
		OrderIndex:      input.OrderIndex,
	}

	found, err := s.store.UpdateLesson(ctx, lesson)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrLessonNotFound
	}

	s.invalidateCache(ctx)
	return lesson, nil
}

// DeleteLesson removes a single lesson
func (s *CatalogService) DeleteLesson(ctx context.Context, courseID, lessonID string) error {
	found, err := s.store.DeleteLesson(ctx, courseID, lessonID)
	if err != nil {
		return err
	}
	if !found {
		return ErrLessonNotFound
	}

	s.invalidateCache(ctx)
	return nil
}

func (s *CatalogService) invalidateCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.InvalidateCatalogCache(ctx, cacheKeyAllCourses, cacheKeyFeaturedCourses); err != nil {
		s.logger.Warn("Catalog cache invalidation failed", zap.Error(err))
	}
}
