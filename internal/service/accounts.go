package service

import (
	"context"
	"fmt"
	"time"

	"coursehub/internal/models"
	"coursehub/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountStore is the slice of the store the account service needs.
type AccountStore interface {
	GetOrCreateAccount(ctx context.Context, id, authUID, email, displayName string) (*models.Account, error)
	GetPurchasesByAccountID(ctx context.Context, accountID string) ([]models.Purchase, error)
	HasCourse(ctx context.Context, accountID, courseID string) (bool, error)
	LessonInCourse(ctx context.Context, courseID, lessonID string) (bool, error)
	MarkLessonComplete(ctx context.Context, progress *models.LessonProgress) (bool, error)
	GetLessonProgress(ctx context.Context, accountID, courseID string) ([]models.LessonProgress, error)
}

// LessonPublisher publishes lesson completion events post-write.
type LessonPublisher interface {
	PublishLessonCompleted(ctx context.Context, event *models.LessonCompletedEvent) error
}

// AccountService resolves authenticated identities and their entitlements.
type AccountService struct {
	store     AccountStore
	publisher LessonPublisher
	logger    *zap.Logger
}

// NewAccountService creates a new account service. publisher may be nil;
// events are a post-write convenience, never part of the result.
func NewAccountService(store AccountStore, publisher LessonPublisher) *AccountService {
	return &AccountService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Resolve maps an auth identity to its account, lazily creating a
// default user-role record with an empty entitlement set on first sight.
func (s *AccountService) Resolve(ctx context.Context, authUID, email, displayName string) (*models.Account, error) {
	if authUID == "" {
		return nil, fmt.Errorf("%w: auth uid is required", ErrValidation)
	}
	return s.store.GetOrCreateAccount(ctx, uuid.New().String(), authUID, email, displayName)
}

// AccountView is the dashboard read: account, entitlement set, history.
// Entitlement is eventually consistent relative to the buyer's redirect;
// clients poll this instead of trusting the success URL.
type AccountView struct {
	Account   *models.Account   `json:"account"`
	Purchases []models.Purchase `json:"purchases"`
}

// View assembles the dashboard read for an account
func (s *AccountService) View(ctx context.Context, account *models.Account) (*AccountView, error) {
	purchases, err := s.store.GetPurchasesByAccountID(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}

	return &AccountView{
		Account:   account,
		Purchases: purchases,
	}, nil
}

// CompleteLesson writes a durable completion record. Requires the account
// to own the course (admins may complete anything) and the lesson to
// actually belong to that course. Re-completing is a no-op.
func (s *AccountService) CompleteLesson(ctx context.Context, account *models.Account, courseID, lessonID string) error {
	if courseID == "" || lessonID == "" {
		return fmt.Errorf("%w: course_id and lesson_id are required", ErrValidation)
	}

	if !account.IsAdmin() && !account.Owns(courseID) {
		owns, err := s.store.HasCourse(ctx, account.ID, courseID)
		if err != nil {
			return err
		}
		if !owns {
			return fmt.Errorf("%w: course %s not owned", ErrForbidden, courseID)
		}
	}

	// The course id is client-supplied; ownership of course A must not
	// let progress rows claim lessons from course B.
	inCourse, err := s.store.LessonInCourse(ctx, courseID, lessonID)
	if err != nil {
		return err
	}
	if !inCourse {
		return fmt.Errorf("%w: lesson %s not in course %s", ErrLessonNotFound, lessonID, courseID)
	}

	created, err := s.store.MarkLessonComplete(ctx, &models.LessonProgress{
		AccountID: account.ID,
		CourseID:  courseID,
		LessonID:  lessonID,
	})
	if err != nil {
		return fmt.Errorf("failed to record lesson completion: %w", err)
	}
	if !created {
		return nil
	}

	util.LessonsCompletedTotal.Inc()
	s.logger.Info("Lesson completed",
		zap.String("account_id", account.ID),
		zap.String("course_id", courseID),
		zap.String("lesson_id", lessonID))

	if s.publisher != nil {
		event := &models.LessonCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeLessonCompleted,
				Timestamp: time.Now(),
			},
			AccountID: account.ID,
			CourseID:  courseID,
			LessonID:  lessonID,
		}
		if err := s.publisher.PublishLessonCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish LessonCompleted event", zap.Error(err))
		}
	}
	return nil
}

// Progress returns the completion records for one account and course
func (s *AccountService) Progress(ctx context.Context, account *models.Account, courseID string) ([]models.LessonProgress, error) {
	return s.store.GetLessonProgress(ctx, account.ID, courseID)
}
