package models

import "time"

// Event types
const (
	EventTypePurchaseCompleted = "PURCHASE_COMPLETED"
	EventTypeLessonCompleted   = "LESSON_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PurchaseCompletedEvent is published after a webhook reconciliation
// durably granted an entitlement. It is emitted post-commit, so
// consumers may see it at most once per purchase but never for a
// purchase that was not recorded.
type PurchaseCompletedEvent struct {
	BaseEvent
	PurchaseID        string `json:"purchase_id"`
	AccountID         string `json:"account_id"`
	CourseID          string `json:"course_id"`
	ProviderSessionID string `json:"provider_session_id"`
	Amount            int64  `json:"amount"`
}

// LessonCompletedEvent is published when an account marks a lesson done.
type LessonCompletedEvent struct {
	BaseEvent
	AccountID string `json:"account_id"`
	CourseID  string `json:"course_id"`
	LessonID  string `json:"lesson_id"`
}
