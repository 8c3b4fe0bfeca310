package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	SalesByDay(ctx context.Context, from, to time.Time) (map[string]SalesPoint, error)
	SalesByWeek(ctx context.Context, from, to time.Time) (map[string]SalesPoint, error)
	SalesByMonth(ctx context.Context, from, to time.Time) (map[string]SalesPoint, error)
	TotalsByCreator(ctx context.Context, from, to time.Time) ([]CreatorTotal, error)
	TotalsByCategory(ctx context.Context, from, to time.Time) ([]CategoryTotal, error)
	OverviewTotals(ctx context.Context, from, to time.Time) (Overview, error)
}

// Service builds chart-ready dashboard series. Results are cached under the
// versioned Redis cache and concurrent identical loads are collapsed through
// singleflight, so a burst of dashboard opens costs one query set.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// DailySales returns one point per calendar day of the month, zero-filled
// for days without sales.
func (s *Service) DailySales(ctx context.Context, year int, month time.Month) ([]SalesPoint, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	var out []SalesPoint
	key := fmt.Sprintf("daily:%04d-%02d", year, month)
	err := s.fetch(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		buckets, err := s.repo.SalesByDay(ctx, from, to)
		if err != nil {
			return nil, err
		}
		days := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
		series := make([]SalesPoint, 0, days)
		for d := 1; d <= days; d++ {
			label := fmt.Sprintf("%04d-%02d-%02d", year, month, d)
			series = append(series, zeroFilled(buckets, label))
		}
		return series, nil
	})
	return out, err
}

// WeeklySales returns one point per ISO week overlapping the year.
func (s *Service) WeeklySales(ctx context.Context, year int) ([]SalesPoint, error) {
	if year < 2000 || year > 2200 {
		return nil, ErrInvalidPeriod
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	var out []SalesPoint
	key := fmt.Sprintf("weekly:%04d", year)
	err := s.fetch(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		buckets, err := s.repo.SalesByWeek(ctx, from, to)
		if err != nil {
			return nil, err
		}
		labels := make([]string, 0, len(buckets))
		for label := range buckets {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		series := make([]SalesPoint, 0, len(labels))
		for _, label := range labels {
			series = append(series, buckets[label])
		}
		return series, nil
	})
	return out, err
}

// MonthlySales returns twelve points for the year, zero-filled.
func (s *Service) MonthlySales(ctx context.Context, year int) ([]SalesPoint, error) {
	if year < 2000 || year > 2200 {
		return nil, ErrInvalidPeriod
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	var out []SalesPoint
	key := fmt.Sprintf("monthly:%04d", year)
	err := s.fetch(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		buckets, err := s.repo.SalesByMonth(ctx, from, to)
		if err != nil {
			return nil, err
		}
		series := make([]SalesPoint, 0, 12)
		for m := 1; m <= 12; m++ {
			label := fmt.Sprintf("%04d-%02d", year, m)
			series = append(series, zeroFilled(buckets, label))
		}
		return series, nil
	})
	return out, err
}

// TotalsByCreator aggregates the month's sales per recording user.
func (s *Service) TotalsByCreator(ctx context.Context, year int, month time.Month) ([]CreatorTotal, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	var out []CreatorTotal
	key := fmt.Sprintf("creators:%04d-%02d", year, month)
	err := s.fetch(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.TotalsByCreator(ctx, from, to)
	})
	return out, err
}

// TotalsByCategory aggregates the month's stock movement per category.
func (s *Service) TotalsByCategory(ctx context.Context, year int, month time.Month) ([]CategoryTotal, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	var out []CategoryTotal
	key := fmt.Sprintf("categories:%04d-%02d", year, month)
	err := s.fetch(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.TotalsByCategory(ctx, from, to)
	})
	return out, err
}

// Overview builds the month's headline card set.
func (s *Service) Overview(ctx context.Context, year int, month time.Month) (Overview, error) {
	if err := validatePeriod(year, month); err != nil {
		return Overview{}, err
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	var out Overview
	key := fmt.Sprintf("overview:%04d-%02d", year, month)
	err := s.fetch(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		o, err := s.repo.OverviewTotals(ctx, from, to)
		if err != nil {
			return nil, err
		}
		o.Month = fmt.Sprintf("%04d-%02d", year, month)
		return o, nil
	})
	return out, err
}

// Warmup pre-populates the current month's caches.
func (s *Service) Warmup(ctx context.Context) error {
	now := time.Now().UTC()
	if _, err := s.Overview(ctx, now.Year(), now.Month()); err != nil {
		return err
	}
	if _, err := s.DailySales(ctx, now.Year(), now.Month()); err != nil {
		return err
	}
	if _, err := s.MonthlySales(ctx, now.Year()); err != nil {
		return err
	}
	if _, err := s.TotalsByCreator(ctx, now.Year(), now.Month()); err != nil {
		return err
	}
	_, err := s.TotalsByCategory(ctx, now.Year(), now.Month())
	return err
}

func (s *Service) fetch(ctx context.Context, keySuffix string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	key, err := s.cache.BuildKey(ctx, "dashboard", keySuffix)
	if err != nil {
		return err
	}
	return s.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (interface{}, error) {
		value, err, _ := s.group.Do(key, func() (interface{}, error) {
			return loader(ctx)
		})
		return value, err
	})
}

func zeroFilled(buckets map[string]SalesPoint, label string) SalesPoint {
	if p, ok := buckets[label]; ok {
		p.Label = label
		return p
	}
	return SalesPoint{Label: label, Revenue: decimal.Zero, Received: decimal.Zero}
}

func validatePeriod(year int, month time.Month) error {
	if year < 2000 || year > 2200 || month < time.January || month > time.December {
		return ErrInvalidPeriod
	}
	return nil
}
