package calculator

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency enum constants
const (
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"
)

const (
	MinInstallments = 2
	MaxInstallments = 12
)

var (
	ErrInvalidInstallmentCount = errors.New("installment count out of range")
	ErrInvalidFrequency        = errors.New("unknown installment frequency")
)

// Installment is one entry of a payment plan.
type Installment struct {
	Sequence int             `json:"sequence"`
	DueDate  time.Time       `json:"due_date"`
	Amount   decimal.Decimal `json:"amount"`
}

// ValidFrequency reports whether f is a supported cadence.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// Schedule splits balanceDue evenly over count installments. Amounts are
// truncated to cents and the leftover cents go on the final installment, so
// the entries always sum to balanceDue. The first installment is due on start.
func Schedule(balanceDue decimal.Decimal, count int, frequency string, start time.Time) ([]Installment, error) {
	if count < MinInstallments || count > MaxInstallments {
		return nil, fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidInstallmentCount, count, MinInstallments, MaxInstallments)
	}
	if !ValidFrequency(frequency) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, frequency)
	}

	balance := roundMoney(balanceDue)
	each := balance.Div(decimal.NewFromInt(int64(count))).Truncate(MoneyPlaces)
	last := balance.Sub(each.Mul(decimal.NewFromInt(int64(count - 1))))

	out := make([]Installment, 0, count)
	for i := 0; i < count; i++ {
		amount := each
		if i == count-1 {
			amount = last
		}
		out = append(out, Installment{
			Sequence: i + 1,
			DueDate:  dueDate(start, frequency, i),
			Amount:   amount,
		})
	}
	return out, nil
}

func dueDate(start time.Time, frequency string, i int) time.Time {
	switch frequency {
	case FrequencyWeekly:
		return start.AddDate(0, 0, 7*i)
	case FrequencyBiweekly:
		return start.AddDate(0, 0, 14*i)
	default:
		return AddMonthsClamped(start, i)
	}
}

// AddMonthsClamped adds n calendar months to t, pinning the day to the last
// day of the target month when it would overflow (Jan 31 + 1 month = Feb 28).
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
