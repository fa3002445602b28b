package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogStore struct {
	course *models.Course
	owned  map[string]bool
}

func (f *fakeCatalogStore) GetCourses(context.Context) ([]models.Course, error) {
	if f.course == nil {
		return nil, nil
	}
	return []models.Course{*f.course}, nil
}

func (f *fakeCatalogStore) GetFeaturedCourses(context.Context) ([]models.Course, error) {
	return nil, nil
}

func (f *fakeCatalogStore) GetCourseByID(_ context.Context, id string) (*models.Course, error) {
	if f.course == nil || f.course.ID != id {
		return nil, nil
	}
	cp := *f.course
	cp.Lessons = append([]models.Lesson(nil), f.course.Lessons...)
	return &cp, nil
}

func (f *fakeCatalogStore) CreateCourse(_ context.Context, c *models.Course) error {
	f.course = c
	return nil
}

func (f *fakeCatalogStore) UpdateCourse(_ context.Context, c *models.Course) error {
	f.course = c
	return nil
}

func (f *fakeCatalogStore) DeleteCourse(context.Context, string) error {
	f.course = nil
	return nil
}

func (f *fakeCatalogStore) CreateLesson(_ context.Context, l *models.Lesson) error {
	f.course.Lessons = append(f.course.Lessons, *l)
	return nil
}

func (f *fakeCatalogStore) UpdateLesson(_ context.Context, l *models.Lesson) (bool, error) {
	for i := range f.course.Lessons {
		if f.course.Lessons[i].ID == l.ID {
			f.course.Lessons[i] = *l
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCatalogStore) DeleteLesson(_ context.Context, _, lessonID string) (bool, error) {
	for i := range f.course.Lessons {
		if f.course.Lessons[i].ID == lessonID {
			f.course.Lessons = append(f.course.Lessons[:i], f.course.Lessons[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCatalogStore) HasCourse(_ context.Context, _, courseID string) (bool, error) {
	return f.owned[courseID], nil
}

func gatedCourse() *models.Course {
	return &models.Course{
		ID:    "c1",
		Title: "Go Basics",
		Price: 4900,
		Lessons: []models.Lesson{
			{ID: "l1", CourseID: "c1", Title: "Hello", Content: "body", VideoURL: "https://v/1", OrderIndex: 1},
			{ID: "l2", CourseID: "c1", Title: "Types", Content: "body", VideoURL: "https://v/2", OrderIndex: 2},
		},
	}
}

func TestSortLessons(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lessons := []models.Lesson{
		{ID: "l3", OrderIndex: 10, CreatedAt: base},
		{ID: "l1", OrderIndex: 1, CreatedAt: base},
		{ID: "l4", OrderIndex: 10, CreatedAt: base.Add(-time.Hour)},
		{ID: "l2", OrderIndex: 5, CreatedAt: base},
	}

	SortLessons(lessons)

	// Indexes are neither contiguous nor unique; ties break by creation time.
	ids := []string{lessons[0].ID, lessons[1].ID, lessons[2].ID, lessons[3].ID}
	assert.Equal(t, []string{"l1", "l2", "l4", "l3"}, ids)
}

func TestGetCourseWithholdsLessonBodiesFromAnonymous(t *testing.T) {
	store := &fakeCatalogStore{course: gatedCourse()}
	s := NewCatalogService(store, nil, time.Minute)

	course, err := s.GetCourse(context.Background(), "c1", nil)

	require.NoError(t, err)
	require.Len(t, course.Lessons, 2)
	for _, l := range course.Lessons {
		assert.Empty(t, l.Content)
		assert.Empty(t, l.VideoURL)
		assert.NotEmpty(t, l.Title, "syllabus stays visible")
	}
}

func TestGetCourseShowsLessonBodiesToOwner(t *testing.T) {
	store := &fakeCatalogStore{course: gatedCourse()}
	s := NewCatalogService(store, nil, time.Minute)

	owner := &models.Account{ID: "a1", Role: models.RoleUser, PurchasedCourses: []string{"c1"}}
	course, err := s.GetCourse(context.Background(), "c1", owner)

	require.NoError(t, err)
	assert.Equal(t, "body", course.Lessons[0].Content)
	assert.Equal(t, "https://v/1", course.Lessons[0].VideoURL)
}

func TestGetCourseFallsBackToStoreForFreshEntitlement(t *testing.T) {
	// The entitlement landed after the account snapshot was taken.
	store := &fakeCatalogStore{course: gatedCourse(), owned: map[string]bool{"c1": true}}
	s := NewCatalogService(store, nil, time.Minute)

	buyer := &models.Account{ID: "a1", Role: models.RoleUser}
	course, err := s.GetCourse(context.Background(), "c1", buyer)

	require.NoError(t, err)
	assert.Equal(t, "body", course.Lessons[0].Content)
}

func TestGetCourseShowsLessonBodiesToAdmin(t *testing.T) {
	store := &fakeCatalogStore{course: gatedCourse()}
	s := NewCatalogService(store, nil, time.Minute)

	admin := &models.Account{ID: "a9", Role: models.RoleAdmin}
	course, err := s.GetCourse(context.Background(), "c1", admin)

	require.NoError(t, err)
	assert.Equal(t, "body", course.Lessons[0].Content)
}

func TestGetCourseNotFound(t *testing.T) {
	s := NewCatalogService(&fakeCatalogStore{}, nil, time.Minute)

	_, err := s.GetCourse(context.Background(), "missing", nil)

	assert.True(t, errors.Is(err, ErrCourseNotFound))
}

func TestUpdateLessonNotFound(t *testing.T) {
	store := &fakeCatalogStore{course: gatedCourse()}
	s := NewCatalogService(store, nil, time.Minute)

	_, err := s.UpdateLesson(context.Background(), "c1", "missing", &LessonInput{Title: "x"})

	assert.True(t, errors.Is(err, ErrLessonNotFound))
}

func TestDeleteLessonRemovesSingleRow(t *testing.T) {
	store := &fakeCatalogStore{course: gatedCourse()}
	s := NewCatalogService(store, nil, time.Minute)

	require.NoError(t, s.DeleteLesson(context.Background(), "c1", "l1"))
	require.Len(t, store.course.Lessons, 1)
	assert.Equal(t, "l2", store.course.Lessons[0].ID)

	err := s.DeleteLesson(context.Background(), "c1", "l1")
	assert.True(t, errors.Is(err, ErrLessonNotFound))
}
