package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
)

const entityAnalytics = "analytics"

type analyticsRepository struct {
	db      *sql.DB
	metrics *metrics.StorageMetrics
	now     func() time.Time
}

// AnalyticsOption настраивает analyticsRepository.
type AnalyticsOption func(*analyticsRepository)

// WithAnalyticsNow подменяет источник текущего времени. Используется в тестах,
// где точка отсчёта недельных корзин должна быть детерминированной.
func WithAnalyticsNow(now func() time.Time) AnalyticsOption {
	return func(r *analyticsRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewAnalyticsRepository создаёт PostgreSQL-реализацию AnalyticsRepository.
func NewAnalyticsRepository(store *Store, opts ...AnalyticsOption) domain.AnalyticsRepository {
	r := &analyticsRepository{
		db:      store.DB(),
		metrics: metrics.NewStorageMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *analyticsRepository) DailyRevenue(start, end time.Time) ([]domain.RevenuePoint, error) {
	defer r.metrics.ObserveOp(entityAnalytics, "daily_revenue", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// generate_series даёт непрерывный ряд дней: дни без заказов
	// получают нулевую сумму через LEFT JOIN.
	rows, err := r.db.QueryContext(ctx, `
		SELECT series.day::date, COALESCE(daily.amount, 0)
		FROM generate_series($1::date, $2::date, '1 day') AS series(day)
		LEFT JOIN (
			SELECT order_date, SUM(total_amount) AS amount
			FROM orders
			WHERE order_date BETWEEN $1 AND $2
			GROUP BY order_date
		) daily ON daily.order_date = series.day
		ORDER BY series.day
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("daily revenue: %w", err)
	}
	defer rows.Close()

	return scanRevenuePoints(rows)
}

func (r *analyticsRepository) WeeklyRevenue(start, end time.Time) ([]domain.RevenuePoint, error) {
	defer r.metrics.ObserveOp(entityAnalytics, "weekly_revenue", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Начало первой корзины зависит от сегодняшнего дня недели в отчётном
	// часовом поясе, поэтому считается на стороне приложения.
	firstWeekStart := domain.FirstWeekStart(start, domain.ReportToday(r.now()))

	rows, err := r.db.QueryContext(ctx, `
		SELECT series.week::date, COALESCE(weekly.amount, 0)
		FROM generate_series($1::date, $2::date, '7 days') AS series(week)
		LEFT JOIN LATERAL (
			SELECT SUM(total_amount) AS amount
			FROM orders
			WHERE order_date >= series.week
			  AND order_date < series.week + INTERVAL '7 days'
		) weekly ON TRUE
		ORDER BY series.week
	`, firstWeekStart, end)
	if err != nil {
		return nil, fmt.Errorf("weekly revenue: %w", err)
	}
	defer rows.Close()

	return scanRevenuePoints(rows)
}

func (r *analyticsRepository) TopCustomers(start, end time.Time) ([]domain.CustomerRevenue, error) {
	defer r.metrics.ObserveOp(entityAnalytics, "top_customers", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Десять лучших клиентов плюс строка "Other" с остатком: сумма всех
	// строк результата равна общей выручке периода.
	rows, err := r.db.QueryContext(ctx, `
		WITH grouped AS (
			SELECT customer_id, customer_name, SUM(total_amount) AS amount
			FROM orders
			WHERE order_date BETWEEN $1 AND $2
			GROUP BY customer_id, customer_name
		),
		top AS (
			SELECT customer_id, customer_name, amount
			FROM grouped
			ORDER BY amount DESC, customer_id
			LIMIT $3
		)
		SELECT customer_id, customer_name, amount FROM top
		UNION ALL
		SELECT $4::bigint, $5::text,
		       COALESCE((SELECT SUM(amount) FROM grouped), 0)
		     - COALESCE((SELECT SUM(amount) FROM top), 0)
		ORDER BY amount DESC, customer_id
	`, start, end, domain.TopGroupLimit, domain.OtherCustomerID, domain.OtherCustomerName)
	if err != nil {
		return nil, fmt.Errorf("top customers: %w", err)
	}
	defer rows.Close()

	result := make([]domain.CustomerRevenue, 0, domain.TopGroupLimit+1)
	for rows.Next() {
		var cr domain.CustomerRevenue
		if err := rows.Scan(&cr.CustomerID, &cr.CustomerName, &cr.AmountMinor); err != nil {
			return nil, fmt.Errorf("scan customer revenue: %w", err)
		}
		result = append(result, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer revenue rows: %w", err)
	}

	return moveCustomerOtherLast(result), nil
}

func (r *analyticsRepository) TopProducts(start, end time.Time) ([]domain.ProductRevenue, error) {
	defer r.metrics.ObserveOp(entityAnalytics, "top_products", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Выручка товара считается по строкам позиций: цена * количество.
	rows, err := r.db.QueryContext(ctx, `
		WITH grouped AS (
			SELECT d.product_code, MIN(d.product_name) AS product_name,
			       SUM(d.unit_price * d.quantity) AS amount
			FROM order_details d
			JOIN orders o ON o.id = d.order_id
			WHERE o.order_date BETWEEN $1 AND $2
			GROUP BY d.product_code
		),
		top AS (
			SELECT product_code, product_name, amount
			FROM grouped
			ORDER BY amount DESC, product_code
			LIMIT $3
		)
		SELECT product_code, product_name, amount FROM top
		UNION ALL
		SELECT $4::text, ''::text,
		       COALESCE((SELECT SUM(amount) FROM grouped), 0)
		     - COALESCE((SELECT SUM(amount) FROM top), 0)
		ORDER BY amount DESC, product_code
	`, start, end, domain.TopGroupLimit, domain.OtherProductCode)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ProductRevenue, 0, domain.TopGroupLimit+1)
	for rows.Next() {
		var pr domain.ProductRevenue
		if err := rows.Scan(&pr.ProductCode, &pr.ProductName, &pr.AmountMinor); err != nil {
			return nil, fmt.Errorf("scan product revenue: %w", err)
		}
		result = append(result, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product revenue rows: %w", err)
	}

	return moveProductOtherLast(result), nil
}

func scanRevenuePoints(rows *sql.Rows) ([]domain.RevenuePoint, error) {
	points := make([]domain.RevenuePoint, 0)
	for rows.Next() {
		var p domain.RevenuePoint
		if err := rows.Scan(&p.Date, &p.AmountMinor); err != nil {
			return nil, fmt.Errorf("scan revenue point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revenue rows: %w", err)
	}

	return points, nil
}

// moveCustomerOtherLast переставляет синтетическую строку "Other" в конец:
// ORDER BY по сумме мог поставить её выше реальных клиентов.
func moveCustomerOtherLast(rows []domain.CustomerRevenue) []domain.CustomerRevenue {
	ordered := make([]domain.CustomerRevenue, 0, len(rows))
	var other *domain.CustomerRevenue
	for i := range rows {
		if rows[i].CustomerID == domain.OtherCustomerID {
			other = &rows[i]
			continue
		}
		ordered = append(ordered, rows[i])
	}
	if other != nil {
		ordered = append(ordered, *other)
	}
	return ordered
}

func moveProductOtherLast(rows []domain.ProductRevenue) []domain.ProductRevenue {
	ordered := make([]domain.ProductRevenue, 0, len(rows))
	var other *domain.ProductRevenue
	for i := range rows {
		if rows[i].ProductCode == domain.OtherProductCode {
			other = &rows[i]
			continue
		}
		ordered = append(ordered, rows[i])
	}
	if other != nil {
		ordered = append(ordered, *other)
	}
	return ordered
}

var _ domain.AnalyticsRepository = (*analyticsRepository)(nil)
