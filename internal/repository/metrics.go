package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"engage-rewards-service/internal/model"
)

// MetricsRepository stores per-country monthly ad revenue, the input
// to ambassador earnings projections. Rows are keyed by country and
// the first day of the month.
type MetricsRepository struct {
	pool *pgxpool.Pool
}

// NewMetricsRepository creates a new MetricsRepository instance.
func NewMetricsRepository(pool *pgxpool.Pool) *MetricsRepository {
	return &MetricsRepository{pool: pool}
}

// monthOf truncates an instant to the first day of its UTC month.
func monthOf(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// UpsertRevenue records (or replaces) a country's ad revenue for the
// month containing the given instant.
func (r *MetricsRepository) UpsertRevenue(ctx context.Context, country string, at time.Time, revenue float64) error {
	const query = `
		INSERT INTO country_metrics (country, month, ad_revenue, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (country, month) DO UPDATE
		SET ad_revenue = EXCLUDED.ad_revenue, updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, model.NormalizeCountry(country), monthOf(at), revenue)
	if err != nil {
		return fmt.Errorf("failed to upsert country revenue: %w", err)
	}
	return nil
}

// AddRevenue accumulates onto a country's monthly revenue, used by
// ingestion jobs that report deltas.
func (r *MetricsRepository) AddRevenue(ctx context.Context, country string, at time.Time, delta float64) error {
	const query = `
		INSERT INTO country_metrics (country, month, ad_revenue, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (country, month) DO UPDATE
		SET ad_revenue = country_metrics.ad_revenue + EXCLUDED.ad_revenue, updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, model.NormalizeCountry(country), monthOf(at), delta)
	if err != nil {
		return fmt.Errorf("failed to add country revenue: %w", err)
	}
	return nil
}

// MonthRevenue returns a country's ad revenue for the month containing
// the given instant. Missing rows read as zero.
func (r *MetricsRepository) MonthRevenue(ctx context.Context, country string, at time.Time) (float64, error) {
	const query = `SELECT ad_revenue FROM country_metrics WHERE country = $1 AND month = $2`

	var revenue float64
	err := r.pool.QueryRow(ctx, query, model.NormalizeCountry(country), monthOf(at)).Scan(&revenue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get country revenue: %w", err)
	}
	return revenue, nil
}

// ListMonth returns every country's revenue for the month containing
// the given instant, highest first.
func (r *MetricsRepository) ListMonth(ctx context.Context, at time.Time) ([]model.CountryMetric, error) {
	const query = `
		SELECT country, month, ad_revenue
		FROM country_metrics
		WHERE month = $1
		ORDER BY ad_revenue DESC, country ASC
	`

	rows, err := r.pool.Query(ctx, query, monthOf(at))
	if err != nil {
		return nil, fmt.Errorf("failed to list country revenue: %w", err)
	}
	defer rows.Close()

	var metrics []model.CountryMetric
	for rows.Next() {
		var m model.CountryMetric
		if err := rows.Scan(&m.Country, &m.Month, &m.AdRevenue); err != nil {
			return nil, fmt.Errorf("failed to scan country metric: %w", err)
		}
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating country metrics: %w", err)
	}
	return metrics, nil
}
