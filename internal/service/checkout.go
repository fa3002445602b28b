package service

import (
	"context"
	"fmt"

	"coursehub/internal/models"
	"coursehub/internal/payments"
	"coursehub/internal/util"

	"go.uber.org/zap"
)

// CheckoutStore is the slice of the store the initiator needs.
type CheckoutStore interface {
	GetCourseByID(ctx context.Context, id string) (*models.Course, error)
}

// CheckoutService opens hosted payment sessions for course purchases.
type CheckoutService struct {
	store    CheckoutStore
	provider payments.Provider
	baseURL  string
	logger   *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(store CheckoutStore, provider payments.Provider, publicBaseURL string) *CheckoutService {
	return &CheckoutService{
		store:    store,
		provider: provider,
		baseURL:  publicBaseURL,
		logger:   util.GetLogger(),
	}
}

// CreateSessionRequest represents a request to start a purchase
type CreateSessionRequest struct {
	CourseID     string `json:"course_id" binding:"required"`
	AccountID    string `json:"-"`
	AccountEmail string `json:"-"`
}

// CreateSessionResponse carries the provider handle the buyer is redirected with
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateSession looks up the course and opens a hosted checkout session
// carrying (courseId, accountId) as opaque metadata. Nothing is written
// locally: the purchase is intended here and committed only when the
// provider's completed-session webhook is reconciled.
func (s *CheckoutService) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateSession")
	defer span.End()

	if req.CourseID == "" || req.AccountID == "" {
		return nil, fmt.Errorf("%w: course_id and account are required", ErrValidation)
	}

	course, err := s.store.GetCourseByID(ctx, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	session, err := s.provider.CreateCheckoutSession(ctx, &payments.CheckoutParams{
		CourseID:      course.ID,
		AccountID:     req.AccountID,
		CustomerEmail: req.AccountEmail,
		Name:          course.Title,
		Description:   course.Description,
		UnitAmount:    course.Price,
		SuccessURL:    fmt.Sprintf("%s/dashboard?success=true&courseId=%s", s.baseURL, course.ID),
		CancelURL:     fmt.Sprintf("%s/course/%s?canceled=true", s.baseURL, course.ID),
	})
	if err != nil {
		util.CheckoutSessionsFailedTotal.WithLabelValues("provider_error").Inc()
		s.logger.Error("Checkout session creation failed",
			zap.String("course_id", course.ID),
			zap.String("account_id", req.AccountID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	util.CheckoutSessionsCreatedTotal.Inc()
	s.logger.Info("Checkout session created",
		zap.String("session_id", session.ID),
		zap.String("course_id", course.ID),
		zap.String("account_id", req.AccountID),
		zap.Int64("amount", course.Price))

	return &CreateSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}
