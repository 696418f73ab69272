// Package invalidation maps semantic resource names to the cache keys that
// hold their rendered payloads, and fans an invalidation out to the server
// cache and to connected browsers.
package invalidation

import "strings"

// Resource names accepted by Bus.Invalidate.
const (
	ResourceInvoices     = "invoices"
	ResourceInvoice      = "invoice"
	ResourceInvoiceStats = "invoiceStats"
	ResourceRetainers    = "retainers"
	ResourceRetainer     = "retainer"
	ResourceTaxRules     = "taxRules"
	ResourceAuditLogs    = "auditLogs"
)

// KeyFunc returns the keys and glob patterns a resource covers. ids narrows
// the result to specific records; without ids every record is covered.
type KeyFunc func(ids []string) []string

// Registry is the static resource -> key builder table.
type Registry map[string]KeyFunc

// Cache key builders shared by services that read through the cache.
func InvoiceDetailKey(id string) string  { return "invoices:detail:" + id }
func InvoiceListKey(query string) string { return "invoices:list:" + query }
func InvoiceStatsKey(query string) string {
	return "invoices:stats:" + query
}
func RetainerDetailKey(id string) string  { return "retainers:detail:" + id }
func RetainerHistoryKey(id string) string { return "retainers:history:" + id }
func RetainerListKey(query string) string { return "retainers:list:" + query }
func TaxRuleListKey() string              { return "taxRules:list" }
func ActiveVATKey(date string) string     { return "taxRules:active:" + date }
func AuditLogListKey(query string) string { return "auditLogs:list:" + query }

// DefaultRegistry covers every cached read the API serves. Mutating one record
// also stales the lists and summaries it appears in.
func DefaultRegistry() Registry {
	return Registry{
		ResourceInvoices: func([]string) []string {
			return []string{InvoiceListKey("*"), InvoiceStatsKey("*")}
		},
		ResourceInvoice: func(ids []string) []string {
			keys := perID(ids, InvoiceDetailKey)
			return append(keys, InvoiceListKey("*"), InvoiceStatsKey("*"))
		},
		ResourceInvoiceStats: func([]string) []string {
			return []string{InvoiceStatsKey("*")}
		},
		ResourceRetainers: func([]string) []string {
			return []string{RetainerListKey("*")}
		},
		ResourceRetainer: func(ids []string) []string {
			keys := perID(ids, RetainerDetailKey)
			keys = append(keys, perID(ids, RetainerHistoryKey)...)
			return append(keys, RetainerListKey("*"))
		},
		ResourceTaxRules: func([]string) []string {
			return []string{TaxRuleListKey(), ActiveVATKey("*")}
		},
		ResourceAuditLogs: func([]string) []string {
			return []string{AuditLogListKey("*")}
		},
	}
}

func perID(ids []string, build func(string) string) []string {
	if len(ids) == 0 {
		return []string{build("*")}
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, build(id))
	}
	return keys
}

func isPattern(key string) bool {
	return strings.ContainsAny(key, "*?[")
}
