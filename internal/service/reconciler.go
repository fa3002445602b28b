package service

import (
	"context"
	"fmt"
	"time"

	"coursehub/internal/models"
	"coursehub/internal/payments"
	"coursehub/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcileStore is the slice of the store the reconciler needs.
type ReconcileStore interface {
	GetCourseByID(ctx context.Context, id string) (*models.Course, error)
	RecordPurchase(ctx context.Context, purchase *models.Purchase) (bool, error)
}

// PurchasePublisher publishes post-commit purchase events.
type PurchasePublisher interface {
	PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error
}

// EntitlementCache is warmed after a grant so catalog reads see the new
// entitlement without a database round trip.
type EntitlementCache interface {
	AddEntitlement(ctx context.Context, accountID, courseID string) error
	MarkSessionSeen(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
}

// Reconciler converts verified payment confirmations into durable
// entitlement state.
type Reconciler struct {
	store     ReconcileStore
	provider  payments.Provider
	publisher PurchasePublisher
	cache     EntitlementCache
	logger    *zap.Logger
}

// NewReconciler creates a new webhook reconciler. publisher and cache may
// be nil; both are post-commit conveniences, never part of the ack decision.
func NewReconciler(store ReconcileStore, provider payments.Provider, publisher PurchasePublisher, cache EntitlementCache) *Reconciler {
	return &Reconciler{
		store:     store,
		provider:  provider,
		publisher: publisher,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// ProcessWebhook verifies the raw payload's signature before trusting any
// of it, then reconciles completed-session events. Unknown-but-valid event
// types return nil so the endpoint acknowledges them; the provider retries
// on anything else.
func (r *Reconciler) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.ProcessWebhook")
	defer span.End()

	event, err := r.provider.ParseEvent(payload, signature)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		r.logger.Warn("Webhook rejected", zap.Error(err))
		return err
	}

	if event.Session == nil {
		util.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		r.logger.Debug("Ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		return nil
	}

	if err := r.reconcile(ctx, event.Session); err != nil {
		util.WebhookEventsTotal.WithLabelValues(event.Type, "failed").Inc()
		return err
	}

	util.WebhookEventsTotal.WithLabelValues(event.Type, "processed").Inc()
	return nil
}

// reconcile appends the purchase audit record and unions the entitlement
// in one transaction, keyed for idempotency by the provider session id.
// Success is reported only after both writes are durable.
func (r *Reconciler) reconcile(ctx context.Context, session *payments.CompletedSession) error {
	start := time.Now()
	defer func() {
		util.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	if session.CourseID == "" || session.AccountID == "" {
		r.logger.Error("Completed session without correlation metadata",
			zap.String("session_id", session.SessionID))
		return fmt.Errorf("%w: session %s", ErrMissingMetadata, session.SessionID)
	}

	if r.cache != nil {
		if first, err := r.cache.MarkSessionSeen(ctx, session.SessionID, 48*time.Hour); err == nil && !first {
			r.logger.Info("Redelivered webhook for session",
				zap.String("session_id", session.SessionID))
		}
	}

	coursePrice := session.AmountTotal
	course, err := r.store.GetCourseByID(ctx, session.CourseID)
	if err != nil {
		return fmt.Errorf("failed to load course for price check: %w", err)
	}
	if course != nil {
		coursePrice = course.Price
		if course.Price != session.AmountTotal {
			util.ReconcileAmountMismatchTotal.Inc()
			r.logger.Warn("Charged amount differs from catalog price",
				zap.String("session_id", session.SessionID),
				zap.String("course_id", session.CourseID),
				zap.Int64("charged", session.AmountTotal),
				zap.Int64("catalog_price", course.Price))
		}
	} else {
		// Course deleted between checkout and confirmation. The buyer
		// paid; grant anyway and keep the audit trail.
		r.logger.Warn("Reconciling purchase for missing course",
			zap.String("session_id", session.SessionID),
			zap.String("course_id", session.CourseID))
	}

	purchase := &models.Purchase{
		ID:                uuid.New().String(),
		AccountID:         session.AccountID,
		CourseID:          session.CourseID,
		ProviderSessionID: session.SessionID,
		Amount:            session.AmountTotal,
		CoursePrice:       coursePrice,
	}

	created, err := r.store.RecordPurchase(ctx, purchase)
	if err != nil {
		r.logger.Error("Failed to record purchase",
			zap.String("session_id", session.SessionID),
			zap.Error(err))
		return fmt.Errorf("failed to record purchase: %w", err)
	}

	if !created {
		util.PurchasesDuplicateTotal.Inc()
		r.logger.Info("Duplicate delivery absorbed",
			zap.String("session_id", session.SessionID))
		return nil
	}

	util.PurchasesReconciledTotal.Inc()
	r.logger.Info("Purchase reconciled",
		zap.String("purchase_id", purchase.ID),
		zap.String("session_id", session.SessionID),
		zap.String("account_id", session.AccountID),
		zap.String("course_id", session.CourseID),
		zap.Int64("amount", session.AmountTotal))

	r.afterCommit(ctx, purchase)
	return nil
}

// afterCommit runs best-effort side effects. Failures are logged, never
// returned: the grant is already durable and must stay acknowledged.
func (r *Reconciler) afterCommit(ctx context.Context, purchase *models.Purchase) {
	if r.cache != nil {
		if err := r.cache.AddEntitlement(ctx, purchase.AccountID, purchase.CourseID); err != nil {
			r.logger.Warn("Failed to warm entitlement cache", zap.Error(err))
		}
	}

	if r.publisher != nil {
		event := &models.PurchaseCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePurchaseCompleted,
				Timestamp: time.Now(),
			},
			PurchaseID:        purchase.ID,
			AccountID:         purchase.AccountID,
			CourseID:          purchase.CourseID,
			ProviderSessionID: purchase.ProviderSessionID,
			Amount:            purchase.Amount,
		}
		if err := r.publisher.PublishPurchaseCompleted(ctx, event); err != nil {
			r.logger.Error("Failed to publish PurchaseCompleted event", zap.Error(err))
		}
	}
}
