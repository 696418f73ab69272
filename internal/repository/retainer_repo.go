package repository

import (
	"context"

	"billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RetainerListFilter struct {
	ClientID string
	Status   string
	Page     int
	Limit    int
}

type RetainerRepository interface {
	Create(ctx context.Context, retainer *model.Retainer) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Retainer, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Retainer, error)
	List(ctx context.Context, filter RetainerListFilter) ([]model.Retainer, int64, error)
	Update(ctx context.Context, retainer *model.Retainer) error
	AddTransaction(ctx context.Context, tx *model.RetainerTransaction) error
	ListTransactions(ctx context.Context, retainerID uuid.UUID) ([]model.RetainerTransaction, error)
	FindInvoiceConsumption(ctx context.Context, retainerID, invoiceID uuid.UUID) ([]model.RetainerTransaction, error)
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
}

type retainerRepository struct {
	db *gorm.DB
}

func NewRetainerRepository(db *gorm.DB) RetainerRepository {
	return &retainerRepository{db: db}
}

func (r *retainerRepository) Create(ctx context.Context, retainer *model.Retainer) error {
	return GetDB(ctx, r.db).Create(retainer).Error
}

func (r *retainerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Retainer, error) {
	var retainer model.Retainer
	if err := GetDB(ctx, r.db).First(&retainer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &retainer, nil
}

// FindByIDForUpdate row-locks the retainer for the rest of the transaction.
func (r *retainerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Retainer, error) {
	var retainer model.Retainer
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&retainer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &retainer, nil
}

func (r *retainerRepository) List(ctx context.Context, filter RetainerListFilter) ([]model.Retainer, int64, error) {
	var retainers []model.Retainer
	var total int64

	build := func() *gorm.DB {
		q := GetDB(ctx, r.db).Model(&model.Retainer{})
		if filter.ClientID != "" {
			q = q.Where("client_id = ?", filter.ClientID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q
	}

	if err := build().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (filter.Page - 1) * filter.Limit
	if err := build().Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&retainers).Error; err != nil {
		return nil, 0, err
	}
	return retainers, total, nil
}

func (r *retainerRepository) Update(ctx context.Context, retainer *model.Retainer) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(retainer).Error
}

func (r *retainerRepository) AddTransaction(ctx context.Context, tx *model.RetainerTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *retainerRepository) ListTransactions(ctx context.Context, retainerID uuid.UUID) ([]model.RetainerTransaction, error) {
	var txs []model.RetainerTransaction
	if err := GetDB(ctx, r.db).Where("retainer_id = ?", retainerID).Order("created_at asc").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// FindInvoiceConsumption returns the consumption and release movements linking a retainer to an invoice.
func (r *retainerRepository) FindInvoiceConsumption(ctx context.Context, retainerID, invoiceID uuid.UUID) ([]model.RetainerTransaction, error) {
	var txs []model.RetainerTransaction
	err := GetDB(ctx, r.db).
		Where("retainer_id = ? AND invoice_id = ? AND type IN ?", retainerID, invoiceID, []string{model.RetainerTxConsumption, model.RetainerTxRelease}).
		Order("created_at asc").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *retainerRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Retainer{}).Where("retainer_no LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
