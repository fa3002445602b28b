package models

import (
	"time"

	"github.com/lib/pq"
)

// Course represents a sellable course in the catalog
type Course struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	LongDescription string         `db:"long_description" json:"long_description,omitempty"`
	Price           int64          `db:"price" json:"price"` // minor currency units
	ImageURL        string         `db:"image_url" json:"image_url,omitempty"`
	Category        string         `db:"category" json:"category"`
	Features        pq.StringArray `db:"features" json:"features"`
	IsFeatured      bool           `db:"is_featured" json:"is_featured"`
	Lessons         []Lesson       `db:"-" json:"lessons,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// Lesson belongs to exactly one course. OrderIndex is not guaranteed
// contiguous or unique; readers must sort by it before display.
type Lesson struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	Content         string    `db:"content" json:"content,omitempty"`
	VideoURL        string    `db:"video_url" json:"video_url,omitempty"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	OrderIndex      int       `db:"order_index" json:"order_index"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Account roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is keyed 1:1 to an auth identity and created lazily on
// first sight of a new identity.
type Account struct {
	ID               string    `db:"id" json:"id"`
	AuthUID          string    `db:"auth_uid" json:"auth_uid"`
	Email            string    `db:"email" json:"email"`
	DisplayName      string    `db:"display_name" json:"display_name,omitempty"`
	Role             string    `db:"role" json:"role"`
	PurchasedCourses []string  `db:"-" json:"purchased_courses"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// IsAdmin reports whether the account carries the admin role flag.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns reports whether the account's entitlement set contains courseID.
func (a *Account) Owns(courseID string) bool {
	for _, id := range a.PurchasedCourses {
		if id == courseID {
			return true
		}
	}
	return false
}

// Purchase is an append-only audit record, unique per provider
// checkout session. Amount is what the provider actually charged;
// CoursePrice is the catalog price at reconciliation time so a
// mismatch is detectable after the fact.
type Purchase struct {
	ID                string    `db:"id" json:"id"`
	AccountID         string    `db:"account_id" json:"account_id"`
	CourseID          string    `db:"course_id" json:"course_id"`
	ProviderSessionID string    `db:"provider_session_id" json:"provider_session_id"`
	Amount            int64     `db:"amount" json:"amount"`
	CoursePrice       int64     `db:"course_price" json:"course_price"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// LessonProgress is a durable per-account completion record.
type LessonProgress struct {
	AccountID   string    `db:"account_id" json:"account_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	LessonID    string    `db:"lesson_id" json:"lesson_id"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}
