package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"coursehub/internal/models"
	"coursehub/internal/payments"
	"coursehub/internal/service"
	"coursehub/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const accountContextKey = "account"

// Handler contains HTTP handlers
type Handler struct {
	catalog    *service.CatalogService
	accounts   *service.AccountService
	checkout   *service.CheckoutService
	reconciler *service.Reconciler
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog *service.CatalogService,
	accounts *service.AccountService,
	checkout *service.CheckoutService,
	reconciler *service.Reconciler,
) *Handler {
	return &Handler{
		catalog:    catalog,
		accounts:   accounts,
		checkout:   checkout,
		reconciler: reconciler,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/courses", h.optionalIdentity(), h.listCourses)
		v1.GET("/courses/featured", h.featuredCourses)
		v1.GET("/courses/:id", h.optionalIdentity(), h.getCourse)

		v1.POST("/webhook", h.handleWebhook)

		authed := v1.Group("", h.requireIdentity())
		{
			authed.POST("/checkout", h.createCheckoutSession)
			authed.GET("/accounts/me", h.getMe)
			authed.POST("/lessons/:id/complete", h.completeLesson)
			authed.GET("/courses/:id/progress", h.getProgress)
		}

		admin := v1.Group("/admin", h.requireIdentity(), h.requireAdmin())
		{
			admin.POST("/courses", h.createCourse)
			admin.PUT("/courses/:id", h.updateCourse)
			admin.DELETE("/courses/:id", h.deleteCourse)
			admin.POST("/courses/:id/lessons", h.addLesson)
			admin.PUT("/courses/:id/lessons/:lessonID", h.updateLesson)
			admin.DELETE("/courses/:id/lessons/:lessonID", h.deleteLesson)
		}
	}
}

// requireIdentity resolves the auth headers injected by the gateway into
// an account, lazily creating it on first sight.
func (h *Handler) requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader("X-Auth-UID")
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		account, err := h.accounts.Resolve(c.Request.Context(), uid,
			c.GetHeader("X-Auth-Email"), c.GetHeader("X-Auth-Name"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}

		c.Set(accountContextKey, account)
		c.Next()
	}
}

// optionalIdentity resolves the account when headers are present but lets
// anonymous requests through.
func (h *Handler) optionalIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader("X-Auth-UID")
		if uid == "" {
			c.Next()
			return
		}

		account, err := h.accounts.Resolve(c.Request.Context(), uid,
			c.GetHeader("X-Auth-Email"), c.GetHeader("X-Auth-Name"))
		if err == nil {
			c.Set(accountContextKey, account)
		}
		c.Next()
	}
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := currentAccount(c)
		if account == nil || !account.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func currentAccount(c *gin.Context) *models.Account {
	if v, ok := c.Get(accountContextKey); ok {
		if account, ok := v.(*models.Account); ok {
			return account
		}
	}
	return nil
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listCourses handles the catalog listing
func (h *Handler) listCourses(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// featuredCourses handles the featured subset
func (h *Handler) featuredCourses(c *gin.Context) {
	courses, err := h.catalog.FeaturedCourses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// getCourse handles course detail with entitlement-gated lesson bodies
func (h *Handler) getCourse(c *gin.Context) {
	course, err := h.catalog.GetCourse(c.Request.Context(), c.Param("id"), currentAccount(c))
	if err != nil {
		if errors.Is(err, service.ErrCourseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, course)
}

// createCheckoutSession handles purchase initiation
func (h *Handler) createCheckoutSession(c *gin.Context) {
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	account := currentAccount(c)
	req.AccountID = account.ID
	req.AccountEmail = account.Email

	resp, err := h.checkout.CreateSession(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		case errors.Is(err, service.ErrCourseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		case errors.Is(err, service.ErrProviderUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleWebhook receives provider callbacks. The exact signed bytes are
// read before any parsing; gin's binding would re-encode them and break
// signature verification.
func (h *Handler) handleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")

	if err := h.reconciler.ProcessWebhook(c.Request.Context(), payload, signature); err != nil {
		switch {
		case errors.Is(err, payments.ErrBadSignature):
			// Security failure: the provider should not retry this.
			c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
		case errors.Is(err, service.ErrMissingMetadata):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session metadata"})
		default:
			// Durable-write failure: non-2xx triggers provider redelivery.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// getMe handles the dashboard read
func (h *Handler) getMe(c *gin.Context) {
	view, err := h.accounts.View(c.Request.Context(), currentAccount(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, view)
}

type completeLessonRequest struct {
	CourseID string `json:"course_id" binding:"required"`
}

// completeLesson records a durable lesson completion
func (h *Handler) completeLesson(c *gin.Context) {
	var req completeLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	err := h.accounts.CompleteLesson(c.Request.Context(), currentAccount(c), req.CourseID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Course not purchased"})
		case errors.Is(err, service.ErrLessonNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Lesson not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"completed": true})
}

// getProgress returns completion records for a course
func (h *Handler) getProgress(c *gin.Context) {
	progress, err := h.accounts.Progress(c.Request.Context(), currentAccount(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

// createCourse handles admin course creation
func (h *Handler) createCourse(c *gin.Context) {
	var input service.CourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	course, err := h.catalog.CreateCourse(c.Request.Context(), &input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create course"})
		return
	}
	c.JSON(http.StatusCreated, course)
}

// updateCourse handles admin course updates
func (h *Handler) updateCourse(c *gin.Context) {
	var input service.CourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	course, err := h.catalog.UpdateCourse(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		if errors.Is(err, service.ErrCourseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update course"})
		return
	}
	c.JSON(http.StatusOK, course)
}

// deleteCourse handles admin course deletion
func (h *Handler) deleteCourse(c *gin.Context) {
	if err := h.catalog.DeleteCourse(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrCourseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete course"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// addLesson handles admin lesson creation
func (h *Handler) addLesson(c *gin.Context) {
	var input service.LessonInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	lesson, err := h.catalog.AddLesson(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		if errors.Is(err, service.ErrCourseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add lesson"})
		return
	}
	c.JSON(http.StatusCreated, lesson)
}

// updateLesson handles admin lesson updates
func (h *Handler) updateLesson(c *gin.Context) {
	var input service.LessonInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	lesson, err := h.catalog.UpdateLesson(c.Request.Context(), c.Param("id"), c.Param("lessonID"), &input)
	if err != nil {
		if errors.Is(err, service.ErrLessonNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lesson not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update lesson"})
		return
	}
	c.JSON(http.StatusOK, lesson)
}

// deleteLesson handles admin lesson deletion
func (h *Handler) deleteLesson(c *gin.Context) {
	if err := h.catalog.DeleteLesson(c.Request.Context(), c.Param("id"), c.Param("lessonID")); err != nil {
		if errors.Is(err, service.ErrLessonNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lesson not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete lesson"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
