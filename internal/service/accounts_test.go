package service

import (
	"context"
	"errors"
	"testing"

	"coursehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccountStore struct {
	accounts  map[string]*models.Account // keyed by auth uid
	owned     map[string]bool
	lessons   map[string]string // lesson id -> course id
	completed []models.LessonProgress
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		accounts: make(map[string]*models.Account),
		owned:    make(map[string]bool),
		lessons:  map[string]string{"l1": "c1"},
	}
}

func (f *fakeAccountStore) GetOrCreateAccount(_ context.Context, id, authUID, email, displayName string) (*models.Account, error) {
	if existing, ok := f.accounts[authUID]; ok {
		return existing, nil
	}
	account := &models.Account{
		ID:               id,
		AuthUID:          authUID,
		Email:            email,
		DisplayName:      displayName,
		Role:             models.RoleUser,
		PurchasedCourses: []string{},
	}
	f.accounts[authUID] = account
	return account, nil
}

func (f *fakeAccountStore) GetPurchasesByAccountID(context.Context, string) ([]models.Purchase, error) {
	return nil, nil
}

func (f *fakeAccountStore) HasCourse(_ context.Context, _, courseID string) (bool, error) {
	return f.owned[courseID], nil
}

func (f *fakeAccountStore) LessonInCourse(_ context.Context, courseID, lessonID string) (bool, error) {
	return f.lessons[lessonID] == courseID, nil
}

func (f *fakeAccountStore) MarkLessonComplete(_ context.Context, p *models.LessonProgress) (bool, error) {
	for _, existing := range f.completed {
		if existing.AccountID == p.AccountID && existing.LessonID == p.LessonID {
			return false, nil
		}
	}
	f.completed = append(f.completed, *p)
	return true, nil
}

func (f *fakeAccountStore) GetLessonProgress(_ context.Context, accountID, courseID string) ([]models.LessonProgress, error) {
	var out []models.LessonProgress
	for _, p := range f.completed {
		if p.AccountID == accountID && p.CourseID == courseID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeLessonPublisher struct {
	events []*models.LessonCompletedEvent
}

func (f *fakeLessonPublisher) PublishLessonCompleted(_ context.Context, event *models.LessonCompletedEvent) error {
	f.events = append(f.events, event)
	return nil
}

func TestResolveLazilyCreatesAccount(t *testing.T) {
	store := newFakeAccountStore()
	s := NewAccountService(store, nil)

	account, err := s.Resolve(context.Background(), "uid-1", "u@example.com", "U")

	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, account.Role, "first sight creates a default user-role record")
	assert.Empty(t, account.PurchasedCourses)

	again, err := s.Resolve(context.Background(), "uid-1", "u@example.com", "U")
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID, "same identity resolves to the same account")
}

func TestResolveRequiresUID(t *testing.T) {
	s := NewAccountService(newFakeAccountStore(), nil)

	_, err := s.Resolve(context.Background(), "", "u@example.com", "U")

	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCompleteLessonRequiresOwnership(t *testing.T) {
	store := newFakeAccountStore()
	s := NewAccountService(store, nil)
	account := &models.Account{ID: "a1", Role: models.RoleUser}

	err := s.CompleteLesson(context.Background(), account, "c1", "l1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Empty(t, store.completed)
}

func TestCompleteLessonIsIdempotent(t *testing.T) {
	store := newFakeAccountStore()
	store.owned["c1"] = true
	s := NewAccountService(store, nil)
	account := &models.Account{ID: "a1", Role: models.RoleUser}

	require.NoError(t, s.CompleteLesson(context.Background(), account, "c1", "l1"))
	require.NoError(t, s.CompleteLesson(context.Background(), account, "c1", "l1"))

	progress, err := s.Progress(context.Background(), account, "c1")
	require.NoError(t, err)
	assert.Len(t, progress, 1, "re-completing is a no-op")
}

func TestCompleteLessonRejectsLessonFromAnotherCourse(t *testing.T) {
	store := newFakeAccountStore()
	store.owned["c1"] = true
	store.lessons["l2"] = "c2"
	s := NewAccountService(store, nil)
	account := &models.Account{ID: "a1", Role: models.RoleUser}

	err := s.CompleteLesson(context.Background(), account, "c1", "l2")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLessonNotFound), "owning course c1 must not record progress against c2's lessons")
	assert.Empty(t, store.completed)
}

func TestCompleteLessonPublishesEventOnce(t *testing.T) {
	store := newFakeAccountStore()
	store.owned["c1"] = true
	publisher := &fakeLessonPublisher{}
	s := NewAccountService(store, publisher)
	account := &models.Account{ID: "a1", Role: models.RoleUser}

	require.NoError(t, s.CompleteLesson(context.Background(), account, "c1", "l1"))
	require.NoError(t, s.CompleteLesson(context.Background(), account, "c1", "l1"))

	require.Len(t, publisher.events, 1, "re-completing must not re-emit the event")
	event := publisher.events[0]
	assert.Equal(t, models.EventTypeLessonCompleted, event.EventType)
	assert.Equal(t, "a1", event.AccountID)
	assert.Equal(t, "c1", event.CourseID)
	assert.Equal(t, "l1", event.LessonID)
	assert.NotEmpty(t, event.EventID)
}

func TestCompleteLessonAdminBypassesOwnership(t *testing.T) {
	store := newFakeAccountStore()
	s := NewAccountService(store, nil)
	admin := &models.Account{ID: "a9", Role: models.RoleAdmin}

	err := s.CompleteLesson(context.Background(), admin, "c1", "l1")

	assert.NoError(t, err)
}
