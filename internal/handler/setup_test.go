package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"billing/internal/cache"
	"billing/internal/export"
	"billing/internal/invalidation"
	"billing/internal/middleware"
	"billing/internal/model"
	"billing/internal/repository"
	"billing/internal/service"
	"billing/internal/testutil"
	"billing/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("handler-secret")

type apiEnv struct {
	router  *gin.Engine
	adminID string
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.RegisterBindings())

	db := testutil.OpenDB(t)
	store := cache.NewMemoryStore()
	bus := invalidation.NewBus(store, nil, nil)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	opts := service.Options{Currency: "SAR", CacheTTL: time.Minute, Now: func() time.Time { return now }}

	invoiceRepo := repository.NewInvoiceRepository(db)
	taxRuleRepo := repository.NewTaxRuleRepository(db)
	retainerRepo := repository.NewRetainerRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	invoiceService := service.NewInvoiceService(invoiceRepo, taxRuleRepo, retainerRepo, auditRepo, txManager, store, bus, opts)
	retainerService := service.NewRetainerService(retainerRepo, auditRepo, txManager, store, bus, opts)
	taxService := service.NewTaxService(taxRuleRepo, auditRepo, store, bus, opts)
	statisticsService := service.NewStatisticsService(repository.NewStatisticsRepository(db), store, opts)
	auditService := service.NewAuditService(auditRepo, store, opts)
	userService := service.NewUserService(repository.NewUserRepository(db), testSecret, time.Hour)

	admin, err := userService.CreateUser(context.Background(), service.CreateUserRequest{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "secret123",
		Role:     model.RoleAdmin,
	})
	require.NoError(t, err)

	userHandler := NewUserHandler(userService, time.Hour, false)

	r := gin.New()
	api := r.Group("/api")
	userHandler.RegisterPublicRoutes(api)
	protected := api.Group("")
	protected.Use(middleware.Authenticate(testSecret))
	{
		userHandler.RegisterRoutes(protected)
		NewInvoiceHandler(invoiceService, statisticsService, export.Company{Name: "Billing Co", VATNumber: "300000000000003"}).RegisterRoutes(protected)
		NewStatisticsHandler(statisticsService).RegisterRoutes(protected)
		NewRetainerHandler(retainerService).RegisterRoutes(protected)
		NewTaxHandler(taxService).RegisterRoutes(protected)
		NewAuditHandler(auditService).RegisterRoutes(protected)
	}

	return &apiEnv{router: r, adminID: admin.ID.String()}
}

func (e *apiEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

// do sends body as JSON with a bearer token for role; an empty role sends no token.
func (e *apiEnv) do(t *testing.T, method, path, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, e.adminID, role))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Details    json.RawMessage `json:"details"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func draftBody() map[string]interface{} {
	return map[string]interface{}{
		"client_id":      "client-1",
		"client_name":    "Acme Trading",
		"issue_date":     "2026-01-10",
		"discount_type":  "percentage",
		"discount_value": "10",
		"items": []map[string]interface{}{
			{"type": "time", "description": "Consulting", "quantity": "5", "unit_price": "100"},
		},
	}
}
