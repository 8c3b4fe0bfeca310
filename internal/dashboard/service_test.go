package dashboard

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type mockRepo struct {
	dayBuckets    map[string]SalesPoint
	dayCalls      int
	weekBuckets   map[string]SalesPoint
	weekCalls     int
	monthBuckets  map[string]SalesPoint
	monthCalls    int
	creators      []CreatorTotal
	creatorCalls  int
	categories    []CategoryTotal
	categoryCalls int
	overview      Overview
	overviewCalls int
}

func (m *mockRepo) SalesByDay(ctx context.Context, from, to time.Time) (map[string]SalesPoint, error) {
	m.dayCalls++
	return m.dayBuckets, nil
}

func (m *mockRepo) SalesByWeek(ctx context.Context, from, to time.Time) (map[string]SalesPoint, error) {
	m.weekCalls++
	return m.weekBuckets, nil
}

func (m *mockRepo) SalesByMonth(ctx context.Context, from, to time.Time) (map[string]SalesPoint, error) {
	m.monthCalls++
	return m.monthBuckets, nil
}

func (m *mockRepo) TotalsByCreator(ctx context.Context, from, to time.Time) ([]CreatorTotal, error) {
	m.creatorCalls++
	return m.creators, nil
}

func (m *mockRepo) TotalsByCategory(ctx context.Context, from, to time.Time) ([]CategoryTotal, error) {
	m.categoryCalls++
	return m.categories, nil
}

func (m *mockRepo) OverviewTotals(ctx context.Context, from, to time.Time) (Overview, error) {
	m.overviewCalls++
	return m.overview, nil
}

func newTestService(t *testing.T, repo RepositoryPort) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(repo, cache)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestDailySalesZeroFills(t *testing.T) {
	repo := &mockRepo{
		dayBuckets: map[string]SalesPoint{
			"2025-02-03": {Boxes: 40, Revenue: decimal.NewFromInt(1000), Received: decimal.NewFromInt(800)},
			"2025-02-15": {Boxes: 10, Revenue: decimal.NewFromInt(250), Received: decimal.NewFromInt(250)},
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	ctx := context.Background()
	series, err := svc.DailySales(ctx, 2025, time.February)
	if err != nil {
		t.Fatalf("daily sales error: %v", err)
	}
	if len(series) != 28 {
		t.Fatalf("expected 28 points for February 2025, got %d", len(series))
	}
	if series[0].Label != "2025-02-01" || series[27].Label != "2025-02-28" {
		t.Fatalf("unexpected label bounds %q..%q", series[0].Label, series[27].Label)
	}
	if series[2].Boxes != 40 {
		t.Fatalf("expected 40 boxes on 2025-02-03, got %d", series[2].Boxes)
	}
	if series[1].Boxes != 0 || !series[1].Revenue.IsZero() {
		t.Fatalf("expected zero-filled point, got %#v", series[1])
	}
}

func TestDailySalesLeapFebruary(t *testing.T) {
	repo := &mockRepo{}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	series, err := svc.DailySales(context.Background(), 2024, time.February)
	if err != nil {
		t.Fatalf("daily sales error: %v", err)
	}
	if len(series) != 29 {
		t.Fatalf("expected 29 points for February 2024, got %d", len(series))
	}
}

func TestDailySalesCachesUntilBump(t *testing.T) {
	repo := &mockRepo{
		dayBuckets: map[string]SalesPoint{
			"2025-03-01": {Boxes: 5, Revenue: decimal.NewFromInt(125), Received: decimal.NewFromInt(125)},
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	ctx := context.Background()
	if _, err := svc.DailySales(ctx, 2025, time.March); err != nil {
		t.Fatalf("first load error: %v", err)
	}
	if repo.dayCalls != 1 {
		t.Fatalf("expected 1 repo call, got %d", repo.dayCalls)
	}

	// Second call should hit cache.
	if _, err := svc.DailySales(ctx, 2025, time.March); err != nil {
		t.Fatalf("cached load error: %v", err)
	}
	if repo.dayCalls != 1 {
		t.Fatalf("expected cached result, repo called %d times", repo.dayCalls)
	}

	// Bumping the cache should trigger reload.
	if err := svc.cache.Bump(ctx); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	repo.dayBuckets["2025-03-01"] = SalesPoint{Boxes: 9, Revenue: decimal.NewFromInt(225), Received: decimal.NewFromInt(225)}
	series, err := svc.DailySales(ctx, 2025, time.March)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if repo.dayCalls != 2 {
		t.Fatalf("expected repo to refresh, calls %d", repo.dayCalls)
	}
	if series[0].Boxes != 9 {
		t.Fatalf("expected refreshed value 9 got %d", series[0].Boxes)
	}
}

func TestMonthlySalesTwelvePoints(t *testing.T) {
	repo := &mockRepo{
		monthBuckets: map[string]SalesPoint{
			"2025-06": {Boxes: 120, Revenue: decimal.NewFromInt(3000), Received: decimal.NewFromInt(2800)},
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	series, err := svc.MonthlySales(context.Background(), 2025)
	if err != nil {
		t.Fatalf("monthly sales error: %v", err)
	}
	if len(series) != 12 {
		t.Fatalf("expected 12 points, got %d", len(series))
	}
	if series[5].Label != "2025-06" || series[5].Boxes != 120 {
		t.Fatalf("unexpected June point %#v", series[5])
	}
	if series[0].Boxes != 0 {
		t.Fatalf("expected zero-filled January, got %#v", series[0])
	}
}

func TestWeeklySalesSortsLabels(t *testing.T) {
	repo := &mockRepo{
		weekBuckets: map[string]SalesPoint{
			"2025-W10": {Label: "2025-W10", Boxes: 30},
			"2025-W02": {Label: "2025-W02", Boxes: 12},
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	series, err := svc.WeeklySales(context.Background(), 2025)
	if err != nil {
		t.Fatalf("weekly sales error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series))
	}
	if series[0].Label != "2025-W02" || series[1].Label != "2025-W10" {
		t.Fatalf("labels out of order: %q, %q", series[0].Label, series[1].Label)
	}
}

func TestOverviewStampsMonth(t *testing.T) {
	repo := &mockRepo{
		overview: Overview{
			Revenue:             decimal.NewFromInt(5000),
			Received:            decimal.NewFromInt(4200),
			BoxesSold:           200,
			PendingRequisitions: 3,
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	overview, err := svc.Overview(context.Background(), 2025, time.July)
	if err != nil {
		t.Fatalf("overview error: %v", err)
	}
	if overview.Month != "2025-07" {
		t.Fatalf("expected month 2025-07, got %q", overview.Month)
	}
	if !overview.Revenue.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected revenue %s", overview.Revenue)
	}
}

func TestPeriodValidation(t *testing.T) {
	repo := &mockRepo{}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	ctx := context.Background()
	if _, err := svc.DailySales(ctx, 1999, time.January); err != ErrInvalidPeriod {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if _, err := svc.MonthlySales(ctx, 2300); err != ErrInvalidPeriod {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if repo.dayCalls != 0 || repo.monthCalls != 0 {
		t.Fatalf("repo should not be queried on invalid period")
	}
}

func TestWarmupPopulatesCurrentMonth(t *testing.T) {
	repo := &mockRepo{}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	if err := svc.Warmup(context.Background()); err != nil {
		t.Fatalf("warmup error: %v", err)
	}
	if repo.overviewCalls != 1 || repo.dayCalls != 1 || repo.monthCalls != 1 ||
		repo.creatorCalls != 1 || repo.categoryCalls != 1 {
		t.Fatalf("expected one load each, got ov=%d day=%d month=%d cr=%d cat=%d",
			repo.overviewCalls, repo.dayCalls, repo.monthCalls, repo.creatorCalls, repo.categoryCalls)
	}
}
