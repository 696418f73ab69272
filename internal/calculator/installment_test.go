package calculator

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestScheduleMonthlyEvenSplit(t *testing.T) {
	start := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	got, err := Schedule(d("300"), 3, FrequencyMonthly, start)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	wantDates := []time.Time{
		start,
		time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
	}
	for i, inst := range got {
		if !inst.Amount.Equal(d("100")) {
			t.Errorf("installment %d amount = %s, want 100", i+1, inst.Amount)
		}
		if !inst.DueDate.Equal(wantDates[i]) {
			t.Errorf("installment %d due = %s, want %s", i+1, inst.DueDate, wantDates[i])
		}
		if inst.Sequence != i+1 {
			t.Errorf("installment %d sequence = %d", i+1, inst.Sequence)
		}
	}
}

func TestScheduleRemainderOnLastInstallment(t *testing.T) {
	got, err := Schedule(d("100"), 3, FrequencyWeekly, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	want := []string{"33.33", "33.33", "33.34"}
	sum := decimal.Zero
	for i, inst := range got {
		if !inst.Amount.Equal(d(want[i])) {
			t.Errorf("installment %d = %s, want %s", i+1, inst.Amount, want[i])
		}
		sum = sum.Add(inst.Amount)
	}
	if !sum.Equal(d("100")) {
		t.Fatalf("sum = %s, want 100", sum)
	}
}

func TestScheduleCadence(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		frequency string
		second    time.Time
	}{
		{FrequencyWeekly, time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)},
		{FrequencyBiweekly, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyMonthly, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			got, err := Schedule(d("50"), 2, tt.frequency, start)
			if err != nil {
				t.Fatalf("Schedule: %v", err)
			}
			if !got[1].DueDate.Equal(tt.second) {
				t.Fatalf("second due = %s, want %s", got[1].DueDate, tt.second)
			}
		})
	}
}

func TestScheduleMonthEndClamping(t *testing.T) {
	got, err := Schedule(d("90"), 3, FrequencyMonthly, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	want := []time.Time{
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if !got[i].DueDate.Equal(want[i]) {
			t.Errorf("due %d = %s, want %s", i+1, got[i].DueDate, want[i])
		}
	}
}

func TestScheduleRejectsBadInput(t *testing.T) {
	start := time.Now()
	if _, err := Schedule(d("10"), 1, FrequencyWeekly, start); !errors.Is(err, ErrInvalidInstallmentCount) {
		t.Errorf("count 1: err = %v", err)
	}
	if _, err := Schedule(d("10"), 13, FrequencyWeekly, start); !errors.Is(err, ErrInvalidInstallmentCount) {
		t.Errorf("count 13: err = %v", err)
	}
	if _, err := Schedule(d("10"), 2, "daily", start); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("daily: err = %v", err)
	}
}
