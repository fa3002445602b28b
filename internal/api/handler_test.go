package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coursehub/internal/models"
	"coursehub/internal/payments"
	"coursehub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore backs every service interface the routed handlers touch.
type stubStore struct {
	courses      map[string]*models.Course
	accounts     map[string]*models.Account
	purchases    map[string]*models.Purchase
	entitlements map[string]map[string]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		courses:      make(map[string]*models.Course),
		accounts:     make(map[string]*models.Account),
		purchases:    make(map[string]*models.Purchase),
		entitlements: make(map[string]map[string]bool),
	}
}

func (s *stubStore) GetCourses(context.Context) ([]models.Course, error) { return nil, nil }
func (s *stubStore) GetFeaturedCourses(context.Context) ([]models.Course, error) {
	return nil, nil
}
func (s *stubStore) GetCourseByID(_ context.Context, id string) (*models.Course, error) {
	return s.courses[id], nil
}
func (s *stubStore) CreateCourse(_ context.Context, c *models.Course) error {
	s.courses[c.ID] = c
	return nil
}
func (s *stubStore) UpdateCourse(_ context.Context, c *models.Course) error {
	s.courses[c.ID] = c
	return nil
}
func (s *stubStore) DeleteCourse(_ context.Context, id string) error {
	delete(s.courses, id)
	return nil
}
func (s *stubStore) CreateLesson(context.Context, *models.Lesson) error { return nil }
func (s *stubStore) UpdateLesson(context.Context, *models.Lesson) (bool, error) {
	return false, nil
}
func (s *stubStore) DeleteLesson(context.Context, string, string) (bool, error) {
	return false, nil
}
func (s *stubStore) HasCourse(_ context.Context, accountID, courseID string) (bool, error) {
	return s.entitlements[accountID][courseID], nil
}

func (s *stubStore) GetOrCreateAccount(_ context.Context, id, authUID, email, displayName string) (*models.Account, error) {
	if existing, ok := s.accounts[authUID]; ok {
		return existing, nil
	}
	account := &models.Account{
		ID: id, AuthUID: authUID, Email: email, DisplayName: displayName,
		Role: models.RoleUser, PurchasedCourses: []string{},
	}
	s.accounts[authUID] = account
	return account, nil
}
func (s *stubStore) GetPurchasesByAccountID(context.Context, string) ([]models.Purchase, error) {
	return nil, nil
}
func (s *stubStore) LessonInCourse(context.Context, string, string) (bool, error) {
	return true, nil
}
func (s *stubStore) MarkLessonComplete(context.Context, *models.LessonProgress) (bool, error) {
	return true, nil
}
func (s *stubStore) GetLessonProgress(context.Context, string, string) ([]models.LessonProgress, error) {
	return nil, nil
}

func (s *stubStore) RecordPurchase(_ context.Context, p *models.Purchase) (bool, error) {
	created := false
	if _, exists := s.purchases[p.ProviderSessionID]; !exists {
		cp := *p
		s.purchases[p.ProviderSessionID] = &cp
		created = true
	}
	if s.entitlements[p.AccountID] == nil {
		s.entitlements[p.AccountID] = make(map[string]bool)
	}
	s.entitlements[p.AccountID][p.CourseID] = true
	return created, nil
}

// stubProvider accepts one signature and replays a canned event.
type stubProvider struct {
	signature string
	event     *payments.Event
	sessions  int
}

func (p *stubProvider) CreateCheckoutSession(_ context.Context, _ *payments.CheckoutParams) (*payments.CheckoutSession, error) {
	p.sessions++
	return &payments.CheckoutSession{
		ID:  fmt.Sprintf("cs_%d", p.sessions),
		URL: "https://checkout.example.com/pay",
	}, nil
}

func (p *stubProvider) ParseEvent(_ []byte, signature string) (*payments.Event, error) {
	if signature != p.signature {
		return nil, payments.ErrBadSignature
	}
	return p.event, nil
}

func newTestRouter(store *stubStore, provider *stubProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)

	catalog := service.NewCatalogService(store, nil, time.Minute)
	accounts := service.NewAccountService(store, nil)
	checkout := service.NewCheckoutService(store, provider, "https://example.com")
	reconciler := service.NewReconciler(store, provider, nil, nil)

	router := gin.New()
	NewHandler(catalog, accounts, checkout, reconciler).SetupRoutes(router)
	return router
}

func postWebhook(router *gin.Engine, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func completedEvent(sessionID, courseID, accountID string, amount int64) *payments.Event {
	return &payments.Event{
		ID:   "evt_1",
		Type: "checkout.session.completed",
		Session: &payments.CompletedSession{
			SessionID:   sessionID,
			CourseID:    courseID,
			AccountID:   accountID,
			AmountTotal: amount,
		},
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{signature: "good", event: completedEvent("cs_1", "c1", "a1", 4900)}
	router := newTestRouter(store, provider)

	w := postWebhook(router, `{"type":"checkout.session.completed"}`, "forged")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.purchases, "rejected event produces no state change")
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{signature: "good", event: completedEvent("cs_1", "c1", "a1", 4900)}
	router := newTestRouter(store, provider)

	w := postWebhook(router, `{}`, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookAcknowledgesUnknownEventType(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{signature: "good", event: &payments.Event{ID: "evt_9", Type: "customer.created"}}
	router := newTestRouter(store, provider)

	w := postWebhook(router, `{}`, "good")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received":true`)
	assert.Empty(t, store.purchases)
}

func TestWebhookRejectsMissingMetadata(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{signature: "good", event: completedEvent("cs_1", "", "", 4900)}
	router := newTestRouter(store, provider)

	w := postWebhook(router, `{}`, "good")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.purchases)
}

func TestWebhookReconcilesAndAbsorbsRedelivery(t *testing.T) {
	store := newStubStore()
	store.courses["c1"] = &models.Course{ID: "c1", Price: 4900}
	provider := &stubProvider{signature: "good", event: completedEvent("cs_1", "c1", "a1", 4900)}
	router := newTestRouter(store, provider)

	first := postWebhook(router, `{}`, "good")
	require.Equal(t, http.StatusOK, first.Code)

	second := postWebhook(router, `{}`, "good")
	require.Equal(t, http.StatusOK, second.Code, "redelivery is acknowledged")

	assert.Len(t, store.purchases, 1)
	assert.Len(t, store.entitlements["a1"], 1)
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	router := newTestRouter(newStubStore(), &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout",
		bytes.NewBufferString(`{"course_id":"c1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckoutCourseNotFound(t *testing.T) {
	router := newTestRouter(newStubStore(), &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout",
		bytes.NewBufferString(`{"course_id":"missing"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-UID", "uid-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutReturnsSession(t *testing.T) {
	store := newStubStore()
	store.courses["c1"] = &models.Course{ID: "c1", Title: "Go Basics", Price: 4900}
	router := newTestRouter(store, &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout",
		bytes.NewBufferString(`{"course_id":"c1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-UID", "uid-1")
	req.Header.Set("X-Auth-Email", "buyer@example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp service.CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.URL)
}

func TestAdminRoutesForbiddenForUserRole(t *testing.T) {
	router := newTestRouter(newStubStore(), &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/courses",
		bytes.NewBufferString(`{"title":"New","price":100}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-UID", "uid-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminCanCreateCourse(t *testing.T) {
	store := newStubStore()
	store.accounts["admin-uid"] = &models.Account{
		ID: "a9", AuthUID: "admin-uid", Role: models.RoleAdmin, PurchasedCourses: []string{},
	}
	router := newTestRouter(store, &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/courses",
		bytes.NewBufferString(`{"title":"New Course","price":4900,"category":"go"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-UID", "admin-uid")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, store.courses, 1)
}
