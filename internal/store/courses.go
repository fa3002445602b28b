package store

import (
	"context"
	"database/sql"
	"fmt"

	"coursehub/internal/models"
)

// GetCourses retrieves all courses, newest first. Lessons are not loaded.
func (s *Store) GetCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := s.db.SelectContext(ctx, &courses,
		"SELECT * FROM courses ORDER BY created_at DESC")
	return courses, err
}

// GetFeaturedCourses retrieves the featured subset, newest first.
func (s *Store) GetFeaturedCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := s.db.SelectContext(ctx, &courses,
		"SELECT * FROM courses WHERE is_featured = true ORDER BY created_at DESC")
	return courses, err
}

// GetCourseByID retrieves a course with its lessons. Absence is a normal
// result, reported as (nil, nil).
func (s *Store) GetCourseByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	err := s.db.GetContext(ctx, &course, "SELECT * FROM courses WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lessons, err := s.GetLessonsByCourseID(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Lessons = lessons

	return &course, nil
}

// CreateCourse inserts a new course
func (s *Store) CreateCourse(ctx context.Context, course *models.Course) error {
	query := `
		INSERT INTO courses (id, title, description, long_description, price, image_url, category, features, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	return s.db.GetContext(ctx, &course.CreatedAt, query,
		course.ID, course.Title, course.Description, course.LongDescription,
		course.Price, course.ImageURL, course.Category, course.Features, course.IsFeatured)
}

// UpdateCourse updates mutable course fields
func (s *Store) UpdateCourse(ctx context.Context, course *models.Course) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE courses
		SET title = $1, description = $2, long_description = $3, price = $4,
		    image_url = $5, category = $6, features = $7, is_featured = $8
		WHERE id = $9`,
		course.Title, course.Description, course.LongDescription, course.Price,
		course.ImageURL, course.Category, course.Features, course.IsFeatured, course.ID)
	return err
}

// DeleteCourse deletes a course; lessons cascade
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	return err
}

// GetLessonsByCourseID retrieves lessons ordered by their explicit index.
// The index is neither contiguous nor unique, so created_at breaks ties.
func (s *Store) GetLessonsByCourseID(ctx context.Context, courseID string) ([]models.Lesson, error) {
	var lessons []models.Lesson
	err := s.db.SelectContext(ctx, &lessons,
		"SELECT * FROM lessons WHERE course_id = $1 ORDER BY order_index, created_at", courseID)
	return lessons, err
}

// LessonInCourse reports whether a lesson exists under the given course.
func (s *Store) LessonInCourse(ctx context.Context, courseID, lessonID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM lessons WHERE id = $1 AND course_id = $2)",
		lessonID, courseID)
	return exists, err
}

// CreateLesson inserts a lesson row. Lessons live in their own table so
// concurrent admin edits never overwrite each other's changes.
func (s *Store) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	query := `
		INSERT INTO lessons (id, course_id, title, description, content, video_url, duration_minutes, order_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	return s.db.GetContext(ctx, &lesson.CreatedAt, query,
		lesson.ID, lesson.CourseID, lesson.Title, lesson.Description,
		lesson.Content, lesson.VideoURL, lesson.DurationMinutes, lesson.OrderIndex)
}

// UpdateLesson updates a single lesson row atomically. Returns false if
// no lesson matched the (course, lesson) pair.
func (s *Store) UpdateLesson(ctx context.Context, lesson *models.Lesson) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE lessons
		SET title = $1, description = $2, content = $3, video_url = $4,
		    duration_minutes = $5, order_index = $6
		WHERE id = $7 AND course_id = $8`,
		lesson.Title, lesson.Description, lesson.Content, lesson.VideoURL,
		lesson.DurationMinutes, lesson.OrderIndex, lesson.ID, lesson.CourseID)
	if err != nil {
		return false, fmt.Errorf("failed to update lesson: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DeleteLesson removes a single lesson row. Returns false if absent.
func (s *Store) DeleteLesson(ctx context.Context, courseID, lessonID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM lessons WHERE id = $1 AND course_id = $2", lessonID, courseID)
	if err != nil {
		return false, fmt.Errorf("failed to delete lesson: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
