package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/locallink-app/locallink/backend/internal/auth"
	"github.com/locallink-app/locallink/backend/internal/catalog"
	"github.com/locallink-app/locallink/backend/internal/directory"
	"github.com/locallink-app/locallink/backend/internal/fault"
	"github.com/locallink-app/locallink/backend/internal/metrics"
	"github.com/locallink-app/locallink/backend/internal/roles"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	claimsContextKey = "locallink_claims"
	tokenContextKey  = "locallink_bearer_token"

	scopeServicesWrite = "services:write"
	scopeAdminRead     = "admin:read"
)

var (
	errMissingTokenVerifier = errors.New("token verifier dependency required")
	errMissingGuard         = errors.New("authorization guard dependency required")
	errMissingCatalogStore  = errors.New("catalog store dependency required")
	errMissingDirectory     = errors.New("directory client dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenVerifier validates a bearer token and extracts identity claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Claims, error)
}

// AccessGuard admits or rejects an authenticated request per operation.
type AccessGuard interface {
	RequireScopes(claims auth.Claims, required ...string) error
	AuthorizeRecord(ctx context.Context, claims auth.Claims, id catalog.RecordID, required ...string) (catalog.Record, error)
}

// CatalogStore persists service listing records.
type CatalogStore interface {
	Create(ctx context.Context, input catalog.NewRecord) (catalog.Record, error)
	Get(ctx context.Context, id catalog.RecordID) (catalog.Record, error)
	Update(ctx context.Context, id catalog.RecordID, patch catalog.Patch) (catalog.Record, error)
	Delete(ctx context.Context, id catalog.RecordID) error
	ListAll(ctx context.Context) ([]catalog.Record, error)
	ListByOwner(ctx context.Context, owner catalog.OwnerIdentity) ([]catalog.Record, error)
}

// DirectoryClient reads and patches user data in the identity directory.
type DirectoryClient interface {
	Me(ctx context.Context, bearerToken string) (json.RawMessage, error)
	UpdateMe(ctx context.Context, bearerToken string, update directory.ProfileUpdate) (json.RawMessage, error)
	ListUsers(ctx context.Context, bearerToken string) ([]directory.User, error)
}

// RateLimitConfig tunes the token-bucket limiter on the public listing route.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type Dependencies struct {
	TokenVerifier TokenVerifier
	Guard         AccessGuard
	Catalog       CatalogStore
	Directory     DirectoryClient
	RateLimit     RateLimitConfig
	Logger        *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenVerifier == nil {
		return nil, errMissingTokenVerifier
	}
	if deps.Guard == nil {
		return nil, errMissingGuard
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalogStore
	}
	if deps.Directory == nil {
		return nil, errMissingDirectory
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestMetrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:  deps.TokenVerifier,
		guard:     deps.Guard,
		catalog:   deps.Catalog,
		directory: deps.Directory,
		logger:    logger,
	}

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	publicServices := router.Group("/")
	if deps.RateLimit.Enabled {
		publicServices.Use(rateLimitMiddleware(deps.RateLimit.RPS, deps.RateLimit.Burst))
	}
	publicServices.GET("/services", handler.handleListServices)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/profile", handler.handleGetProfile)
	protected.PATCH("/profile", handler.handlePatchProfile)
	protected.GET("/my-services", handler.handleListOwnServices)
	protected.POST("/services", handler.handleCreateService)
	protected.PUT("/services/:id", handler.handleUpdateService)
	protected.DELETE("/services/:id", handler.handleDeleteService)
	protected.GET("/admin-data", handler.handleAdminData)

	return router, nil
}

type httpHandler struct {
	verifier  TokenVerifier
	guard     AccessGuard
	catalog   CatalogStore
	directory DirectoryClient
	logger    *zap.Logger
}

// authorizeRequest verifies the bearer token before any handler logic runs.
// Verified claims and the raw token (for directory pass-through) are stashed
// on the request context.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorEnvelope("Unauthorized", errInvalidAuthorization.Error()))
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorEnvelope("Unauthorized", errInvalidAuthorization.Error()))
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		h.logger.Info("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorEnvelope("Unauthorized", "invalid or expired token"))
		return
	}

	c.Set(claimsContextKey, claims)
	c.Set(tokenContextKey, token)
	c.Next()
}

func (h *httpHandler) requestClaims(c *gin.Context) auth.Claims {
	value, _ := c.Get(claimsContextKey)
	claims, _ := value.(auth.Claims)
	return claims
}

func (h *httpHandler) requestToken(c *gin.Context) string {
	return c.GetString(tokenContextKey)
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	profile, err := h.directory.Me(c.Request.Context(), h.requestToken(c))
	if err != nil {
		h.writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}

type profilePatchPayload struct {
	GivenName   string `json:"givenName"`
	FamilyName  string `json:"familyName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

func (h *httpHandler) handlePatchProfile(c *gin.Context) {
	var request profilePatchPayload
	if err := bindStrict(c, &request); err != nil {
		h.writeFault(c, err)
		return
	}

	updated, err := h.directory.UpdateMe(c.Request.Context(), h.requestToken(c), directory.ProfileUpdate{
		GivenName:   request.GivenName,
		FamilyName:  request.FamilyName,
		Email:       request.Email,
		PhoneNumber: request.PhoneNumber,
	})
	if err != nil {
		h.writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "data": updated})
}

func (h *httpHandler) handleListServices(c *gin.Context) {
	records, err := h.catalog.ListAll(c.Request.Context())
	if err != nil {
		h.writeFault(c, err)
		return
	}
	if records == nil {
		records = []catalog.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *httpHandler) handleListOwnServices(c *gin.Context) {
	claims := h.requestClaims(c)
	if err := h.guard.RequireScopes(claims, scopeServicesWrite); err != nil {
		h.writeFault(c, err)
		return
	}

	owner, err := catalog.NewOwnerIdentity(claims.Subject)
	if err != nil {
		h.writeFault(c, fault.Store("invalid subject identity", err))
		return
	}
	records, err := h.catalog.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		h.writeFault(c, err)
		return
	}
	if records == nil {
		records = []catalog.Record{}
	}
	c.JSON(http.StatusOK, records)
}

type createServicePayload struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

func (h *httpHandler) handleCreateService(c *gin.Context) {
	claims := h.requestClaims(c)
	if err := h.guard.RequireScopes(claims, scopeServicesWrite); err != nil {
		h.writeFault(c, err)
		return
	}

	var request createServicePayload
	if err := bindStrict(c, &request); err != nil {
		h.writeFault(c, err)
		return
	}

	owner, err := catalog.NewOwnerIdentity(claims.Subject)
	if err != nil {
		h.writeFault(c, fault.Store("invalid subject identity", err))
		return
	}
	record, err := h.catalog.Create(c.Request.Context(), catalog.NewRecord{
		OwnerIdentity: owner,
		Name:          request.Name,
		Description:   request.Description,
		Price:         request.Price,
	})
	if err != nil {
		h.writeFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

type updateServicePayload struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
}

func (h *httpHandler) handleUpdateService(c *gin.Context) {
	claims := h.requestClaims(c)
	recordID, err := catalog.NewRecordID(c.Param("id"))
	if err != nil {
		h.writeFault(c, fault.Validation("Invalid service id"))
		return
	}

	var request updateServicePayload
	if err := bindStrict(c, &request); err != nil {
		h.writeFault(c, err)
		return
	}

	if _, err := h.guard.AuthorizeRecord(c.Request.Context(), claims, recordID, scopeServicesWrite); err != nil {
		h.writeFault(c, err)
		return
	}

	record, err := h.catalog.Update(c.Request.Context(), recordID, catalog.Patch{
		Name:        request.Name,
		Description: request.Description,
		Price:       request.Price,
	})
	if err != nil {
		h.writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) handleDeleteService(c *gin.Context) {
	claims := h.requestClaims(c)
	recordID, err := catalog.NewRecordID(c.Param("id"))
	if err != nil {
		h.writeFault(c, fault.Validation("Invalid service id"))
		return
	}

	if _, err := h.guard.AuthorizeRecord(c.Request.Context(), claims, recordID, scopeServicesWrite); err != nil {
		h.writeFault(c, err)
		return
	}

	if err := h.catalog.Delete(c.Request.Context(), recordID); err != nil {
		h.writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Service deleted successfully"})
}

func (h *httpHandler) handleAdminData(c *gin.Context) {
	claims := h.requestClaims(c)
	if err := h.guard.RequireScopes(claims, scopeAdminRead); err != nil {
		h.writeFault(c, err)
		return
	}

	// No partial results: customers and providers are presented together, so a
	// failed listing fails the whole aggregation.
	users, err := h.directory.ListUsers(c.Request.Context(), h.requestToken(c))
	if err != nil {
		h.writeFault(c, err)
		return
	}
	records, err := h.catalog.ListAll(c.Request.Context())
	if err != nil {
		h.writeFault(c, err)
		return
	}

	c.JSON(http.StatusOK, roles.Aggregate(users, records))
}

// bindStrict decodes a JSON body rejecting unknown fields, so misshapen
// payloads fail at the boundary instead of propagating silently.
func bindStrict(c *gin.Context, dst any) error {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fault.Validation("Invalid request body")
	}
	return nil
}

func errorEnvelope(message string, detail any) gin.H {
	return gin.H{"message": message, "error": detail}
}

// writeFault converts a classified error into the response envelope. Upstream
// bodies pass through as-is when they are valid JSON.
func (h *httpHandler) writeFault(c *gin.Context, err error) {
	classified := fault.As(err)
	if classified == nil {
		h.logger.Error("unclassified handler error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorEnvelope("Server error", "internal error"))
		return
	}

	switch classified.Kind() {
	case fault.KindStore:
		h.logger.Error("store failure", zap.Error(classified))
	case fault.KindUpstream:
		h.logger.Warn("upstream failure", zap.Int("status", classified.HTTPStatus()), zap.Error(classified))
	}

	detail := any(classified.Reason())
	if classified.Kind() == fault.KindUpstream {
		if body := classified.UpstreamBody(); len(body) > 0 {
			if json.Valid(body) {
				detail = json.RawMessage(body)
			} else {
				detail = string(body)
			}
		} else {
			detail = classified.Message()
		}
	} else if classified.Reason() == "" {
		detail = classified.Message()
	}

	c.JSON(classified.HTTPStatus(), errorEnvelope(classified.Message(), detail))
}

// requestMetrics counts handled requests by matched route, method, and status.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
