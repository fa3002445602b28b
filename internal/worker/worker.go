package worker

import (
	"context"
	"log"

	"coursehub/internal/broker"
	"coursehub/internal/models"
	"coursehub/internal/redisclient"
	"coursehub/internal/store"
)

// EntitlementWorker consumes purchase events and keeps the cached
// entitlement sets warm so catalog reads see new grants immediately.
// It also writes the receipt line that downstream ops dashboards tail.
type EntitlementWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	redis        *redisclient.Client
}

// NewEntitlementWorker creates a new entitlement worker
func NewEntitlementWorker(consumer *broker.Consumer, st *store.Store, redis *redisclient.Client) *EntitlementWorker {
	w := &EntitlementWorker{
		consumer: consumer,
		store:    st,
		redis:    redis,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPurchaseCompleted(w.handlePurchaseCompleted)
	eventHandler.OnLessonCompleted(w.handleLessonCompleted)
	w.eventHandler = eventHandler

	return w
}

func (w *EntitlementWorker) handlePurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	log.Printf("Receipt: purchase=%s account=%s course=%s amount=%d session=%s",
		event.PurchaseID, event.AccountID, event.CourseID, event.Amount, event.ProviderSessionID)

	account, err := w.store.GetAccountByID(ctx, event.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		log.Printf("Purchase event for unknown account: %s", event.AccountID)
		return nil
	}

	if w.redis != nil {
		if err := w.redis.WarmEntitlements(ctx, account.ID, account.PurchasedCourses); err != nil {
			log.Printf("Failed to warm entitlements for account %s: %v", account.ID, err)
		}
	}
	return nil
}

func (w *EntitlementWorker) handleLessonCompleted(ctx context.Context, event *models.LessonCompletedEvent) error {
	log.Printf("Progress: account=%s course=%s lesson=%s",
		event.AccountID, event.CourseID, event.LessonID)
	return nil
}

// Start starts the worker
func (w *EntitlementWorker) Start(ctx context.Context) error {
	log.Println("Starting entitlement worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *EntitlementWorker) Stop() error {
	log.Println("Stopping entitlement worker...")
	return w.consumer.Close()
}
