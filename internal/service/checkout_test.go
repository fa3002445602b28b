package service

import (
	"context"
	"errors"
	"testing"

	"coursehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionCourseNotFound(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	s := NewCheckoutService(store, provider, "https://example.com")

	_, err := s.CreateSession(context.Background(), &CreateSessionRequest{
		CourseID:  "missing",
		AccountID: "a1",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCourseNotFound))
	assert.Empty(t, provider.created, "no provider call for an absent course")
}

func TestCreateSessionValidation(t *testing.T) {
	s := NewCheckoutService(newFakeStore(), &fakeProvider{}, "https://example.com")

	_, err := s.CreateSession(context.Background(), &CreateSessionRequest{CourseID: "c1"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCreateSessionCarriesCorrelationMetadata(t *testing.T) {
	course := &models.Course{
		ID:          "c1",
		Title:       "Go Basics",
		Description: "an introduction",
		Price:       4900,
	}
	store := newFakeStore(course)
	provider := &fakeProvider{}
	s := NewCheckoutService(store, provider, "https://example.com")

	resp, err := s.CreateSession(context.Background(), &CreateSessionRequest{
		CourseID:     "c1",
		AccountID:    "a1",
		AccountEmail: "buyer@example.com",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.URL)

	require.Len(t, provider.created, 1)
	params := provider.created[0]
	assert.Equal(t, "c1", params.CourseID, "metadata is the only confirmation correlation channel")
	assert.Equal(t, "a1", params.AccountID)
	assert.Equal(t, "buyer@example.com", params.CustomerEmail)
	assert.Equal(t, "Go Basics", params.Name)
	assert.Equal(t, int64(4900), params.UnitAmount)
	assert.Equal(t, "https://example.com/dashboard?success=true&courseId=c1", params.SuccessURL)
	assert.Equal(t, "https://example.com/course/c1?canceled=true", params.CancelURL)
}

func TestCreateSessionProviderError(t *testing.T) {
	course := &models.Course{ID: "c1", Price: 4900}
	provider := &fakeProvider{createErr: errors.New("rate limited")}
	s := NewCheckoutService(newFakeStore(course), provider, "https://example.com")

	_, err := s.CreateSession(context.Background(), &CreateSessionRequest{
		CourseID:  "c1",
		AccountID: "a1",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable),
		"provider failure must be distinguishable from not-found so callers can retry")
	assert.False(t, errors.Is(err, ErrCourseNotFound))
}
