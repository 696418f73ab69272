package repository

import (
	"context"
	"fmt"
	"time"

	"billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaxRuleRepository stores dated VAT rates. Validity ranges are inclusive
// calendar days; a nil EffectiveTo leaves the rule open-ended.
type TaxRuleRepository interface {
	Create(ctx context.Context, rule *model.TaxRule) error
	Update(ctx context.Context, rule *model.TaxRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TaxRule, error)
	ListAll(ctx context.Context) ([]model.TaxRule, error)
	FindActiveVAT(ctx context.Context, issueDate time.Time) (*model.TaxRule, error)
	HasOverlap(ctx context.Context, rule *model.TaxRule) (bool, error)
}

type taxRuleRepository struct {
	db *gorm.DB
}

func NewTaxRuleRepository(db *gorm.DB) TaxRuleRepository {
	return &taxRuleRepository{db: db}
}

func (r *taxRuleRepository) Create(ctx context.Context, rule *model.TaxRule) error {
	normalizeRuleDates(rule)
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *taxRuleRepository) Update(ctx context.Context, rule *model.TaxRule) error {
	normalizeRuleDates(rule)
	return GetDB(ctx, r.db).Save(rule).Error
}

// Delete removes a rule; a missing id reports gorm.ErrRecordNotFound.
func (r *taxRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.TaxRule{})
	if res.Error != nil {
		return fmt.Errorf("delete tax rule %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *taxRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TaxRule, error) {
	var rule model.TaxRule
	if err := GetDB(ctx, r.db).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListAll returns every rule, newest validity window first.
func (r *taxRuleRepository) ListAll(ctx context.Context) ([]model.TaxRule, error) {
	var rules []model.TaxRule
	if err := GetDB(ctx, r.db).
		Order("tax_type asc").
		Order("effective_from desc").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list tax rules: %w", err)
	}
	return rules, nil
}

// FindActiveVAT returns the VAT_STANDARD rule covering issueDate.
func (r *taxRuleRepository) FindActiveVAT(ctx context.Context, issueDate time.Time) (*model.TaxRule, error) {
	d := calendarDay(issueDate)
	var rule model.TaxRule
	if err := GetDB(ctx, r.db).
		Where("tax_type = ?", model.TaxTypeVATStandard).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)", d, d).
		Order("effective_from desc").
		First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// HasOverlap reports whether another rule of the same type shares a day with
// rule's validity window. The rule itself is ignored when it already has an id.
func (r *taxRuleRepository) HasOverlap(ctx context.Context, rule *model.TaxRule) (bool, error) {
	from := calendarDay(rule.EffectiveFrom)
	query := GetDB(ctx, r.db).Model(&model.TaxRule{}).
		Where("tax_type = ?", rule.TaxType).
		Where("(effective_to IS NULL OR effective_to >= ?)", from)
	if rule.ID != uuid.Nil {
		query = query.Where("id <> ?", rule.ID)
	}
	if rule.EffectiveTo != nil {
		query = query.Where("effective_from <= ?", calendarDay(*rule.EffectiveTo))
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check tax rule overlap: %w", err)
	}
	return count > 0, nil
}

func normalizeRuleDates(rule *model.TaxRule) {
	rule.EffectiveFrom = calendarDay(rule.EffectiveFrom)
	if rule.EffectiveTo != nil {
		to := calendarDay(*rule.EffectiveTo)
		rule.EffectiveTo = &to
	}
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
