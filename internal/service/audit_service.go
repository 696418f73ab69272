package service

import (
	"context"
	"fmt"

	"billing/internal/cache"
	"billing/internal/invalidation"
	"billing/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

// AuditLogFilter narrows the trail to one entity or action.
type AuditLogFilter struct {
	EntityID string
	Action   string
	Page     int
	Limit    int
}

type auditPage struct {
	Items []AuditLogResponse `json:"items"`
	Total int64              `json:"total"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, filter AuditLogFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo  repository.AuditRepository
	store cache.Store
	opts  Options
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, store cache.Store, opts Options) AuditService {
	return &auditService{repo: repo, store: store, opts: opts.withDefaults()}
}

// GetAuditLogs returns newest-first audit entries with the acting user's name
func (s *auditService) GetAuditLogs(ctx context.Context, filter AuditLogFilter) ([]AuditLogResponse, int64, error) {
	key := invalidation.AuditLogListKey(queryKey(
		"entity", filter.EntityID, "action", filter.Action,
		"page", fmt.Sprint(filter.Page), "limit", fmt.Sprint(filter.Limit),
	))
	res, err := cached(ctx, s.store, key, s.opts.CacheTTL, func() (auditPage, error) {
		logs, total, err := s.repo.List(ctx, repository.AuditListFilter{
			EntityID: filter.EntityID,
			Action:   filter.Action,
			Page:     filter.Page,
			Limit:    filter.Limit,
		})
		if err != nil {
			return auditPage{}, fmt.Errorf("failed to fetch audit logs: %w", err)
		}

		items := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			username := "System"
			userID := ""
			if l.User != nil {
				username = l.User.Username
			}
			if l.UserID != nil {
				userID = l.UserID.String()
			}

			items = append(items, AuditLogResponse{
				ID:         l.ID.String(),
				UserID:     userID,
				Username:   username,
				Action:     l.Action,
				EntityID:   l.EntityID,
				EntityName: l.EntityName,
				Details:    string(l.Details),
				CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return auditPage{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Items, res.Total, nil
}
