package store

import (
	"context"
	"database/sql"
	"fmt"

	"coursehub/internal/models"
)

// GetOrCreateAccount resolves an account by auth identity, lazily
// inserting a default user-role record on first sight of a new UID.
// The insert races safely: ON CONFLICT makes the loser read the winner's row.
func (s *Store) GetOrCreateAccount(ctx context.Context, id, authUID, email, displayName string) (*models.Account, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, auth_uid, email, display_name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (auth_uid) DO NOTHING`,
		id, authUID, email, displayName, models.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}

	var account models.Account
	err = s.db.GetContext(ctx, &account, "SELECT * FROM accounts WHERE auth_uid = $1", authUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := s.loadEntitlements(ctx, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByID retrieves an account with its entitlement set.
// Absence is a normal result, reported as (nil, nil).
func (s *Store) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, "SELECT * FROM accounts WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadEntitlements(ctx, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) loadEntitlements(ctx context.Context, account *models.Account) error {
	account.PurchasedCourses = []string{}
	err := s.db.SelectContext(ctx, &account.PurchasedCourses,
		"SELECT course_id FROM account_courses WHERE account_id = $1 ORDER BY granted_at", account.ID)
	if err != nil {
		return fmt.Errorf("failed to load entitlements: %w", err)
	}
	return nil
}

// HasCourse reports membership in the account's purchased-course set.
func (s *Store) HasCourse(ctx context.Context, accountID, courseID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM account_courses WHERE account_id = $1 AND course_id = $2)",
		accountID, courseID)
	return exists, err
}

// RecordPurchase appends the purchase audit record and unions the course
// into the account's entitlement set in one transaction. Both statements
// are conditional inserts, so redelivering the same provider session is a
// no-op: the call reports created=false and commits without a second row.
func (s *Store) RecordPurchase(ctx context.Context, purchase *models.Purchase) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (id, account_id, course_id, provider_session_id, amount, course_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_session_id) DO NOTHING`,
		purchase.ID, purchase.AccountID, purchase.CourseID,
		purchase.ProviderSessionID, purchase.Amount, purchase.CoursePrice)
	if err != nil {
		return false, fmt.Errorf("failed to insert purchase: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	created := rows > 0

	_, err = tx.ExecContext(ctx, `
		INSERT INTO account_courses (account_id, course_id)
		VALUES ($1, $2)
		ON CONFLICT (account_id, course_id) DO NOTHING`,
		purchase.AccountID, purchase.CourseID)
	if err != nil {
		return false, fmt.Errorf("failed to grant entitlement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit purchase: %w", err)
	}
	return created, nil
}

// GetPurchasesByAccountID retrieves the purchase history for an account
func (s *Store) GetPurchasesByAccountID(ctx context.Context, accountID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := s.db.SelectContext(ctx, &purchases,
		"SELECT * FROM purchases WHERE account_id = $1 ORDER BY created_at DESC", accountID)
	return purchases, err
}

// GetPurchaseBySessionID retrieves the purchase for a provider session, if any.
func (s *Store) GetPurchaseBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.GetContext(ctx, &purchase,
		"SELECT * FROM purchases WHERE provider_session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// MarkLessonComplete upserts a durable completion record. Completing an
// already-completed lesson is a no-op; the return reports whether this
// call wrote the record.
func (s *Store) MarkLessonComplete(ctx context.Context, progress *models.LessonProgress) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO lesson_progress (account_id, course_id, lesson_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, lesson_id) DO NOTHING`,
		progress.AccountID, progress.CourseID, progress.LessonID)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetLessonProgress retrieves completion records for one account and course
func (s *Store) GetLessonProgress(ctx context.Context, accountID, courseID string) ([]models.LessonProgress, error) {
	var progress []models.LessonProgress
	err := s.db.SelectContext(ctx, &progress,
		"SELECT * FROM lesson_progress WHERE account_id = $1 AND course_id = $2 ORDER BY completed_at",
		accountID, courseID)
	return progress, err
}
