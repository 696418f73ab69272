package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"billing/internal/cache"
	"billing/internal/invalidation"
	"billing/internal/model"
	"billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const dateLayout = "2006-01-02"

// Options carries the settings shared by every service.
type Options struct {
	Currency string
	CacheTTL time.Duration
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Currency == "" {
		o.Currency = "SAR"
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func parseID(id, what string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, invalidInput("invalid %s id", what)
	}
	return parsed, nil
}

// parseAmount parses a positive money amount.
func parseAmount(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalidInput("invalid %s", field)
	}
	if !d.IsPositive() {
		return decimal.Zero, invalidInput("%s must be positive", field)
	}
	return d.Round(2), nil
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func documentNo(ctx context.Context, prefix string, now time.Time, count func(context.Context, string) (int64, error)) (string, error) {
	p := prefix + "-" + now.Format("20060102") + "-"
	n, err := count(ctx, p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", p, n+1), nil
}

// writeAuditLog records who did what. Failures are logged, never returned.
func writeAuditLog(ctx context.Context, repo repository.AuditRepository, userID, action, entityID, entityName string, details interface{}) {
	detailsJSON, _ := json.Marshal(details)

	entry := model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    datatypes.JSON(detailsJSON),
	}
	if parsed, err := uuid.Parse(userID); err == nil {
		entry.UserID = &parsed
	}

	if err := repo.Log(ctx, &entry); err != nil {
		log.Printf("audit: failed to record %s on %s: %v", action, entityID, err)
	}
}

// invalidate runs after a committed mutation, so a failure only means
// clients see stale data until the TTL passes.
func invalidate(ctx context.Context, bus *invalidation.Bus, targets map[string][]string) {
	if bus == nil {
		return
	}
	targets[invalidation.ResourceAuditLogs] = nil
	if err := bus.InvalidateMany(ctx, targets); err != nil {
		log.Printf("cache invalidation failed: %v", err)
	}
}

// cached reads key from store into out, or calls load, stores and returns its result.
func cached[T any](ctx context.Context, store cache.Store, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if store != nil {
		if raw, err := store.Get(ctx, key); err == nil {
			var out T
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
		}
	}

	out, err := load()
	if err != nil {
		return out, err
	}

	if store != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := store.Set(ctx, key, raw, ttl); err != nil {
				log.Printf("cache: failed to store %s: %v", key, err)
			}
		}
	}
	return out, nil
}

func queryKey(pairs ...string) string {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			v.Set(pairs[i], pairs[i+1])
		}
	}
	if len(v) == 0 {
		return "all"
	}
	return v.Encode()
}
