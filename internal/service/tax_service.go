package service

import (
	"context"
	"fmt"
	"time"

	"billing/internal/cache"
	"billing/internal/calculator"
	"billing/internal/invalidation"
	"billing/internal/model"
	"billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type TaxRuleRequest struct {
	TaxType       string `json:"tax_type" binding:"required,oneof=VAT_STANDARD"`
	Rate          string `json:"rate" binding:"required"`           // Decimal fraction, e.g. "0.15"
	EffectiveFrom string `json:"effective_from" binding:"required"` // YYYY-MM-DD
	EffectiveTo   string `json:"effective_to"`                      // YYYY-MM-DD, nullable
	Description   string `json:"description"`
}

type TaxRuleResponse struct {
	ID            string  `json:"id"`
	TaxType       string  `json:"tax_type"`
	Rate          string  `json:"rate"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
	Description   string  `json:"description"`
	CreatedAt     string  `json:"created_at"`
}

// ActiveTaxRateResponse is the VAT rate applied to invoices issued on Date.
// RuleID is empty when the default rate applies.
type ActiveTaxRateResponse struct {
	TaxType string `json:"tax_type"`
	Rate    string `json:"rate"`
	RuleID  string `json:"rule_id,omitempty"`
	Date    string `json:"date"`
	Default bool   `json:"default"`
}

// --- Interface ---

type TaxService interface {
	GetTaxRules(ctx context.Context) ([]TaxRuleResponse, error)
	CreateTaxRule(ctx context.Context, req TaxRuleRequest, userID string) (TaxRuleResponse, error)
	UpdateTaxRule(ctx context.Context, id string, req TaxRuleRequest, userID string) (TaxRuleResponse, error)
	DeleteTaxRule(ctx context.Context, id string, userID string) error
	GetActiveVATRate(ctx context.Context, date time.Time) (ActiveTaxRateResponse, error)
}

type taxService struct {
	taxRuleRepo repository.TaxRuleRepository
	auditRepo   repository.AuditRepository
	store       cache.Store
	bus         *invalidation.Bus
	opts        Options
}

func NewTaxService(taxRuleRepo repository.TaxRuleRepository, auditRepo repository.AuditRepository, store cache.Store, bus *invalidation.Bus, opts Options) TaxService {
	return &taxService{
		taxRuleRepo: taxRuleRepo,
		auditRepo:   auditRepo,
		store:       store,
		bus:         bus,
		opts:        opts.withDefaults(),
	}
}

// --- Implementation ---

func (s *taxService) GetTaxRules(ctx context.Context) ([]TaxRuleResponse, error) {
	return cached(ctx, s.store, invalidation.TaxRuleListKey(), s.opts.CacheTTL, func() ([]TaxRuleResponse, error) {
		rules, err := s.taxRuleRepo.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tax rules: %w", err)
		}
		res := make([]TaxRuleResponse, 0, len(rules))
		for _, r := range rules {
			res = append(res, toTaxRuleResponse(r))
		}
		return res, nil
	})
}

func (s *taxService) CreateTaxRule(ctx context.Context, req TaxRuleRequest, userID string) (TaxRuleResponse, error) {
	rate, effectiveFrom, effectiveTo, err := parseTaxRuleFields(req.Rate, req.EffectiveFrom, req.EffectiveTo)
	if err != nil {
		return TaxRuleResponse{}, err
	}

	rule := model.TaxRule{
		TaxType:       req.TaxType,
		Rate:          rate,
		EffectiveFrom: effectiveFrom,
		EffectiveTo:   effectiveTo,
		Description:   req.Description,
	}
	if err := s.checkOverlap(ctx, &rule); err != nil {
		return TaxRuleResponse{}, err
	}

	if err := s.taxRuleRepo.Create(ctx, &rule); err != nil {
		return TaxRuleResponse{}, fmt.Errorf("failed to create tax rule: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionCreateTaxRule, rule.ID.String(), req.TaxType+" "+rate.StringFixed(4), req)
	invalidate(ctx, s.bus, map[string][]string{invalidation.ResourceTaxRules: nil})

	return toTaxRuleResponse(rule), nil
}

func (s *taxService) UpdateTaxRule(ctx context.Context, id string, req TaxRuleRequest, userID string) (TaxRuleResponse, error) {
	ruleID, err := parseID(id, "tax rule")
	if err != nil {
		return TaxRuleResponse{}, err
	}

	rule, err := s.findRule(ctx, ruleID)
	if err != nil {
		return TaxRuleResponse{}, err
	}

	rate, effectiveFrom, effectiveTo, err := parseTaxRuleFields(req.Rate, req.EffectiveFrom, req.EffectiveTo)
	if err != nil {
		return TaxRuleResponse{}, err
	}

	rule.TaxType = req.TaxType
	rule.Rate = rate
	rule.EffectiveFrom = effectiveFrom
	rule.EffectiveTo = effectiveTo
	rule.Description = req.Description
	if err := s.checkOverlap(ctx, rule); err != nil {
		return TaxRuleResponse{}, err
	}

	if err := s.taxRuleRepo.Update(ctx, rule); err != nil {
		return TaxRuleResponse{}, fmt.Errorf("failed to update tax rule: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionUpdateTaxRule, rule.ID.String(), req.TaxType+" "+rate.StringFixed(4), req)
	invalidate(ctx, s.bus, map[string][]string{invalidation.ResourceTaxRules: nil})

	return toTaxRuleResponse(*rule), nil
}

func (s *taxService) DeleteTaxRule(ctx context.Context, id string, userID string) error {
	ruleID, err := parseID(id, "tax rule")
	if err != nil {
		return err
	}

	rule, err := s.findRule(ctx, ruleID)
	if err != nil {
		return err
	}

	if err := s.taxRuleRepo.Delete(ctx, ruleID); err != nil {
		if repository.IsNotFound(err) {
			return notFound("tax rule")
		}
		return fmt.Errorf("failed to delete tax rule: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionDeleteTaxRule, rule.ID.String(), rule.TaxType+" "+rule.Rate.StringFixed(4), map[string]string{"deleted_id": id})
	invalidate(ctx, s.bus, map[string][]string{invalidation.ResourceTaxRules: nil})

	return nil
}

// GetActiveVATRate returns the VAT_STANDARD rule active on date, or the default 15%.
func (s *taxService) GetActiveVATRate(ctx context.Context, date time.Time) (ActiveTaxRateResponse, error) {
	day := formatDate(date)
	return cached(ctx, s.store, invalidation.ActiveVATKey(day), s.opts.CacheTTL, func() (ActiveTaxRateResponse, error) {
		rate, rule, err := activeVATRate(ctx, s.taxRuleRepo, date)
		if err != nil {
			return ActiveTaxRateResponse{}, err
		}
		res := ActiveTaxRateResponse{
			TaxType: model.TaxTypeVATStandard,
			Rate:    rate.StringFixed(4),
			Date:    day,
			Default: rule == nil,
		}
		if rule != nil {
			res.RuleID = rule.ID.String()
		}
		return res, nil
	})
}

// activeVATRate resolves the rate for an issue date. A nil rule means the default applies.
func activeVATRate(ctx context.Context, repo repository.TaxRuleRepository, date time.Time) (decimal.Decimal, *model.TaxRule, error) {
	rule, err := repo.FindActiveVAT(ctx, date)
	if err != nil {
		if repository.IsNotFound(err) {
			return calculator.DefaultVATRate, nil, nil
		}
		return decimal.Zero, nil, fmt.Errorf("failed to query tax rule: %w", err)
	}
	return rule.Rate, rule, nil
}

// --- Helpers ---

func (s *taxService) findRule(ctx context.Context, id uuid.UUID) (*model.TaxRule, error) {
	rule, err := s.taxRuleRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("tax rule")
		}
		return nil, fmt.Errorf("failed to fetch tax rule: %w", err)
	}
	return rule, nil
}

func parseTaxRuleFields(rateStr, fromStr, toStr string) (decimal.Decimal, time.Time, *time.Time, error) {
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return decimal.Zero, time.Time{}, nil, invalidInput("invalid rate value")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, time.Time{}, nil, invalidInput("rate must be a fraction between 0 and 1")
	}

	effectiveFrom, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return decimal.Zero, time.Time{}, nil, invalidInput("invalid effective_from date format (expected YYYY-MM-DD)")
	}

	var effectiveTo *time.Time
	if toStr != "" {
		t, err := time.Parse(dateLayout, toStr)
		if err != nil {
			return decimal.Zero, time.Time{}, nil, invalidInput("invalid effective_to date format (expected YYYY-MM-DD)")
		}
		if t.Before(effectiveFrom) {
			return decimal.Zero, time.Time{}, nil, invalidInput("effective_to cannot be before effective_from")
		}
		effectiveTo = &t
	}

	return rate, effectiveFrom, effectiveTo, nil
}

func (s *taxService) checkOverlap(ctx context.Context, rule *model.TaxRule) error {
	overlaps, err := s.taxRuleRepo.HasOverlap(ctx, rule)
	if err != nil {
		return fmt.Errorf("failed to check overlap: %w", err)
	}
	if overlaps {
		return fmt.Errorf("%w: a tax rule for '%s' already exists with overlapping effective dates", ErrConflict, rule.TaxType)
	}
	return nil
}

func toTaxRuleResponse(r model.TaxRule) TaxRuleResponse {
	resp := TaxRuleResponse{
		ID:            r.ID.String(),
		TaxType:       r.TaxType,
		Rate:          r.Rate.StringFixed(4),
		EffectiveFrom: formatDate(r.EffectiveFrom),
		Description:   r.Description,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.EffectiveTo != nil {
		s := formatDate(*r.EffectiveTo)
		resp.EffectiveTo = &s
	}
	return resp
}
