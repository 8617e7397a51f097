package services

import (
	"context"
	"testing"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/storage"
	"budgetwatch/internal/storage/memory"
)

// pausingStore runs afterTx once, right after the next transaction returns.
type pausingStore struct {
	storage.Store
	afterTx func()
}

func (p *pausingStore) WithinTx(ctx context.Context, fn func(storage.Tx) error) error {
	err := p.Store.WithinTx(ctx, fn)
	if hook := p.afterTx; hook != nil {
		p.afterTx = nil
		hook()
	}
	return err
}

func TestMonthlyReport_WriteDuringBuildIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	paused := &pausingStore{Store: store}
	reports := NewReportService(paused, 16, time.Minute, nil, testLogger())
	expenses := NewExpenseService(store, &fakeDispatcher{}, testLogger(), WithReportInvalidator(reports))
	jan := core.Period{Year: 2024, Month: 1}

	paused.afterTx = func() {
		_, err := expenses.RecordExpense(ctx, core.Expense{
			UserID: 1, Category: "Food", Amount: core.Money{Cents: 5000}, Date: core.NewDate(2024, 1, 5),
		})
		if err != nil {
			t.Errorf("RecordExpense: %v", err)
		}
	}

	first, err := reports.MonthlyReport(ctx, 1, jan)
	if err != nil {
		t.Fatal(err)
	}
	if first.Total.Cents != 0 {
		t.Fatalf("first report total = %d, want 0", first.Total.Cents)
	}

	second, err := reports.MonthlyReport(ctx, 1, jan)
	if err != nil {
		t.Fatal(err)
	}
	if second.Total.Cents != 5000 || len(second.ByCategory) != 1 {
		t.Fatalf("second report = %+v, want total 5000 with one category", second)
	}
}

func TestMonthlyReport_CachedUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jan := core.Period{Year: 2024, Month: 1}

	f.addExpense(t, 1, "Food", 1000, core.NewDate(2024, 1, 5))
	if _, err := f.reports.MonthlyReport(ctx, 1, jan); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reports.MonthlyReport(ctx, 1, jan); err != nil {
		t.Fatal(err)
	}
	if st := f.reports.Cache().Stats(); st.Hits != 1 || st.Size != 1 {
		t.Fatalf("cache stats = %+v, want one hit and one entry", st)
	}

	f.addExpense(t, 1, "Food", 500, core.NewDate(2024, 1, 6))
	r, err := f.reports.MonthlyReport(ctx, 1, jan)
	if err != nil {
		t.Fatal(err)
	}
	if r.Total.Cents != 1500 {
		t.Fatalf("total after write = %d, want 1500", r.Total.Cents)
	}
}

func TestMonthlyReport_ZeroTTLDisablesCache(t *testing.T) {
	ctx := context.Background()
	reports := NewReportService(memory.New(), 16, 0, nil, testLogger())

	for i := 0; i < 2; i++ {
		if _, err := reports.MonthlyReport(ctx, 1, core.Period{Year: 2024, Month: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if st := reports.Cache().Stats(); st.Size != 0 || st.Hits != 0 {
		t.Fatalf("cache used with zero TTL: %+v", st)
	}
}
