package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"billing/internal/cache"
	"billing/internal/invalidation"
	"billing/internal/model"
	"billing/internal/repository"
	"billing/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *recordingPublisher) Publish(message []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type testEnv struct {
	db         *gorm.DB
	store      *cache.MemoryStore
	publisher  *recordingPublisher
	invoices   InvoiceService
	retainers  RetainerService
	taxes      TaxService
	audit      AuditService
	statistics StatisticsService
	users      UserService
	adminID    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	store := cache.NewMemoryStore()
	publisher := &recordingPublisher{}
	bus := invalidation.NewBus(store, publisher, nil)
	opts := Options{Currency: "SAR", CacheTTL: time.Minute, Now: func() time.Time { return testNow }}

	invoiceRepo := repository.NewInvoiceRepository(db)
	taxRuleRepo := repository.NewTaxRuleRepository(db)
	retainerRepo := repository.NewRetainerRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	txManager := repository.NewTransactionManager(db)

	env := &testEnv{
		db:         db,
		store:      store,
		publisher:  publisher,
		invoices:   NewInvoiceService(invoiceRepo, taxRuleRepo, retainerRepo, auditRepo, txManager, store, bus, opts),
		retainers:  NewRetainerService(retainerRepo, auditRepo, txManager, store, bus, opts),
		taxes:      NewTaxService(taxRuleRepo, auditRepo, store, bus, opts),
		audit:      NewAuditService(auditRepo, store, opts),
		statistics: NewStatisticsService(repository.NewStatisticsRepository(db), store, opts),
		users:      NewUserService(userRepo, []byte("test-secret"), time.Hour),
	}

	admin, err := env.users.CreateUser(context.Background(), CreateUserRequest{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "secret123",
		Role:     model.RoleAdmin,
	})
	require.NoError(t, err)
	env.adminID = admin.ID.String()
	return env
}

// consultingDraft is five hours at 100 with a 10% invoice discount:
// taxable 450, VAT 67.50, total 517.50.
func consultingDraft() InvoiceDraftRequest {
	return InvoiceDraftRequest{
		ClientID:      "client-1",
		ClientName:    "Acme Trading",
		IssueDate:     "2026-01-10",
		DiscountType:  "percentage",
		DiscountValue: "10",
		Items: []LineItemRequest{
			{Type: "time", Description: "Consulting", Quantity: "5", UnitPrice: "100"},
			{Type: "comment", Description: "Work performed on site"},
		},
	}
}

func (e *testEnv) createRetainer(t *testing.T, amount string) RetainerResponse {
	t.Helper()
	r, err := e.retainers.CreateRetainer(context.Background(), CreateRetainerRequest{
		ClientID:      "client-1",
		InitialAmount: amount,
	}, e.adminID)
	require.NoError(t, err)
	return r
}
