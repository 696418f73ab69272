package calculator

import (
	"strings"
	"testing"
	"time"

	"github.com/divan/num2words"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(qty, price string) LineItem {
	item := NewLineItem(LineTypeFlatFee, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	item.Quantity = d(qty)
	item.UnitPrice = d(price)
	return item
}

func TestLineItemPercentageDiscount(t *testing.T) {
	item := line("2", "100")
	item.DiscountType = DiscountPercentage
	item.DiscountValue = d("10")
	item.Recompute()

	if !item.LineTotal.Equal(d("180")) {
		t.Fatalf("LineTotal = %s, want 180", item.LineTotal)
	}
}

func TestLineItemFixedDiscount(t *testing.T) {
	item := line("3", "50")
	item.DiscountType = DiscountFixed
	item.DiscountValue = d("20")

	got := item.Amounts()
	if !got.Gross.Equal(d("150")) || !got.Discount.Equal(d("20")) || !got.Total.Equal(d("130")) {
		t.Fatalf("Amounts = %+v, want gross 150 discount 20 total 130", got)
	}
}

func TestInformationalLinesContributeNothing(t *testing.T) {
	for _, lt := range []string{LineTypeComment, LineTypeSubtotal} {
		item := line("4", "25")
		item.Type = lt
		item.Recompute()
		if !item.LineTotal.IsZero() {
			t.Errorf("%s line total = %s, want 0", lt, item.LineTotal)
		}
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name            string
		in              Input
		wantSubtotal    string
		wantInvDiscount string
		wantTaxable     string
		wantVAT         string
		wantTotal       string
		wantBalance     string
	}{
		{
			name:            "two lines no discounts",
			in:              Input{Items: []LineItem{line("1", "200"), line("1", "300")}},
			wantSubtotal:    "500",
			wantInvDiscount: "0",
			wantTaxable:     "500",
			wantVAT:         "75",
			wantTotal:       "575",
			wantBalance:     "575",
		},
		{
			name: "invoice percentage discount",
			in: Input{
				Items:         []LineItem{line("1", "200"), line("1", "300")},
				DiscountType:  DiscountPercentage,
				DiscountValue: d("10"),
			},
			wantSubtotal:    "500",
			wantInvDiscount: "50",
			wantTaxable:     "450",
			wantVAT:         "67.5",
			wantTotal:       "517.5",
			wantBalance:     "517.5",
		},
		{
			name: "retainer applied",
			in: Input{
				Items:             []LineItem{line("1", "200"), line("1", "300")},
				DiscountType:      DiscountPercentage,
				DiscountValue:     d("10"),
				RetainerRequested: d("100"),
				RetainerAvailable: d("1000"),
			},
			wantSubtotal:    "500",
			wantInvDiscount: "50",
			wantTaxable:     "450",
			wantVAT:         "67.5",
			wantTotal:       "517.5",
			wantBalance:     "417.5",
		},
		{
			name: "fixed invoice discount after item discount",
			in: Input{
				Items: func() []LineItem {
					a := line("2", "100")
					a.DiscountType = DiscountPercentage
					a.DiscountValue = d("10")
					return []LineItem{a}
				}(),
				DiscountType:  DiscountFixed,
				DiscountValue: d("30"),
			},
			wantSubtotal:    "200",
			wantInvDiscount: "30",
			wantTaxable:     "150",
			wantVAT:         "22.5",
			wantTotal:       "172.5",
			wantBalance:     "172.5",
		},
		{
			name:            "empty draft",
			in:              Input{},
			wantSubtotal:    "0",
			wantInvDiscount: "0",
			wantTaxable:     "0",
			wantVAT:         "0",
			wantTotal:       "0",
			wantBalance:     "0",
		},
		{
			name:            "vat rounds half away from zero",
			in:              Input{Items: []LineItem{line("1", "0.1")}},
			wantSubtotal:    "0.1",
			wantInvDiscount: "0",
			wantTaxable:     "0.1",
			wantVAT:         "0.02",
			wantTotal:       "0.12",
			wantBalance:     "0.12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.in)
			check := func(field string, got decimal.Decimal, want string) {
				t.Helper()
				if !got.Equal(d(want)) {
					t.Errorf("%s = %s, want %s", field, got, want)
				}
			}
			check("Subtotal", got.Subtotal, tt.wantSubtotal)
			check("InvoiceDiscount", got.InvoiceDiscount, tt.wantInvDiscount)
			check("TaxableAmount", got.TaxableAmount, tt.wantTaxable)
			check("VATAmount", got.VATAmount, tt.wantVAT)
			check("Total", got.Total, tt.wantTotal)
			check("BalanceDue", got.BalanceDue, tt.wantBalance)
			if !got.TotalDiscount.Equal(got.ItemDiscounts.Add(got.InvoiceDiscount)) {
				t.Errorf("TotalDiscount %s != item %s + invoice %s", got.TotalDiscount, got.ItemDiscounts, got.InvoiceDiscount)
			}
		})
	}
}

func TestCalculateDoesNotMutateInput(t *testing.T) {
	items := []LineItem{line("2", "100")}
	Calculate(Input{Items: items})
	if !items[0].LineTotal.IsZero() {
		t.Fatalf("input line total mutated to %s", items[0].LineTotal)
	}
}

func TestCalculateCustomVATRate(t *testing.T) {
	zero := decimal.Zero
	got := Calculate(Input{Items: []LineItem{line("1", "100")}, VATRate: &zero})
	if !got.VATAmount.IsZero() || !got.Total.Equal(d("100")) {
		t.Fatalf("zero-rated: vat %s total %s", got.VATAmount, got.Total)
	}
}

func TestNegativeQuantityIsNotRejected(t *testing.T) {
	got := Calculate(Input{Items: []LineItem{line("-1", "100")}})
	if !got.Items[0].LineTotal.Equal(d("-100")) {
		t.Fatalf("LineTotal = %s, want -100", got.Items[0].LineTotal)
	}
	if !got.Total.Equal(d("-115")) {
		t.Fatalf("Total = %s, want -115", got.Total)
	}
	if !got.BalanceDue.IsZero() {
		t.Fatalf("BalanceDue = %s, want 0", got.BalanceDue)
	}
}

func TestApplyRetainer(t *testing.T) {
	tests := []struct {
		name                        string
		total, requested, available string
		want                        string
	}{
		{"within limits", "517.5", "100", "500", "100"},
		{"capped by balance", "517.5", "300", "250", "250"},
		{"capped by total", "517.5", "900", "1000", "517.5"},
		{"negative request", "517.5", "-5", "1000", "0"},
		{"nothing available", "517.5", "50", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyRetainer(d(tt.total), d(tt.requested), d(tt.available))
			if !got.Equal(d(tt.want)) {
				t.Fatalf("ApplyRetainer = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountInWords(t *testing.T) {
	got := AmountInWords(d("517.50"), "")
	want := num2words.Convert(517) + " riyals and " + num2words.Convert(50) + " halalas"
	if got != want {
		t.Fatalf("AmountInWords = %q, want %q", got, want)
	}

	whole := AmountInWords(d("575"), "USD")
	if whole != num2words.Convert(575)+" dollars" {
		t.Fatalf("whole amount = %q", whole)
	}

	if neg := AmountInWords(d("-3"), "SAR"); !strings.HasPrefix(neg, "minus ") {
		t.Fatalf("negative amount = %q", neg)
	}
}
