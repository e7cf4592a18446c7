package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// analyticsRepositoryInMemory считает отчёты поверх OrderRepository.
// Семантика повторяет PostgreSQL-реализацию: непрерывные временные ряды
// с нулевым заполнением и top-N со синтетической строкой "Other".
type analyticsRepositoryInMemory struct {
	orders domain.OrderRepository
	now    func() time.Time
}

// AnalyticsOption настраивает in-memory реализацию аналитики.
type AnalyticsOption func(*analyticsRepositoryInMemory)

// WithAnalyticsNow подменяет источник текущего времени для детерминированных тестов.
func WithAnalyticsNow(now func() time.Time) AnalyticsOption {
	return func(r *analyticsRepositoryInMemory) {
		if now != nil {
			r.now = now
		}
	}
}

// NewAnalyticsRepository возвращает реализацию аналитики поверх хранилища заказов.
func NewAnalyticsRepository(orders domain.OrderRepository, opts ...AnalyticsOption) domain.AnalyticsRepository {
	r := &analyticsRepositoryInMemory{orders: orders, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *analyticsRepositoryInMemory) DailyRevenue(start, end time.Time) ([]domain.RevenuePoint, error) {
	orders, err := r.orders.History(&start, &end, "")
	if err != nil {
		return nil, fmt.Errorf("load orders for daily revenue: %w", err)
	}

	byDay := make(map[time.Time]int64)
	for _, o := range orders {
		byDay[dayOf(o.OrderDate)] += o.TotalAmountMinor
	}

	points := make([]domain.RevenuePoint, 0)
	for day := dayOf(start); !day.After(dayOf(end)); day = day.AddDate(0, 0, 1) {
		points = append(points, domain.RevenuePoint{Date: day, AmountMinor: byDay[day]})
	}

	return points, nil
}

func (r *analyticsRepositoryInMemory) WeeklyRevenue(start, end time.Time) ([]domain.RevenuePoint, error) {
	firstWeekStart := domain.FirstWeekStart(start, domain.ReportToday(r.now()))

	weekEnd := dayOf(end)
	orders, err := r.orders.History(&firstWeekStart, nil, "")
	if err != nil {
		return nil, fmt.Errorf("load orders for weekly revenue: %w", err)
	}

	points := make([]domain.RevenuePoint, 0)
	for weekStart := dayOf(firstWeekStart); !weekStart.After(weekEnd); weekStart = weekStart.AddDate(0, 0, 7) {
		next := weekStart.AddDate(0, 0, 7)
		var amount int64
		for _, o := range orders {
			day := dayOf(o.OrderDate)
			if !day.Before(weekStart) && day.Before(next) {
				amount += o.TotalAmountMinor
			}
		}
		points = append(points, domain.RevenuePoint{Date: weekStart, AmountMinor: amount})
	}

	return points, nil
}

func (r *analyticsRepositoryInMemory) TopCustomers(start, end time.Time) ([]domain.CustomerRevenue, error) {
	orders, err := r.orders.History(&start, &end, "")
	if err != nil {
		return nil, fmt.Errorf("load orders for top customers: %w", err)
	}

	type key struct {
		id   int64
		name string
	}
	byCustomer := make(map[key]int64)
	var grandTotal int64
	for _, o := range orders {
		byCustomer[key{o.CustomerID, o.CustomerName}] += o.TotalAmountMinor
		grandTotal += o.TotalAmountMinor
	}

	grouped := make([]domain.CustomerRevenue, 0, len(byCustomer))
	for k, amount := range byCustomer {
		grouped = append(grouped, domain.CustomerRevenue{
			CustomerID:   k.id,
			CustomerName: k.name,
			AmountMinor:  amount,
		})
	}
	sort.Slice(grouped, func(i, j int) bool {
		if grouped[i].AmountMinor != grouped[j].AmountMinor {
			return grouped[i].AmountMinor > grouped[j].AmountMinor
		}
		return grouped[i].CustomerID < grouped[j].CustomerID
	})

	if len(grouped) > domain.TopGroupLimit {
		grouped = grouped[:domain.TopGroupLimit]
	}

	var topTotal int64
	for _, row := range grouped {
		topTotal += row.AmountMinor
	}

	// Остаток сворачивается в синтетическую строку; она присутствует всегда,
	// даже с нулевой суммой, чтобы сумма строк равнялась общей выручке.
	grouped = append(grouped, domain.CustomerRevenue{
		CustomerID:   domain.OtherCustomerID,
		CustomerName: domain.OtherCustomerName,
		AmountMinor:  grandTotal - topTotal,
	})

	return grouped, nil
}

func (r *analyticsRepositoryInMemory) TopProducts(start, end time.Time) ([]domain.ProductRevenue, error) {
	orders, err := r.orders.History(&start, &end, "")
	if err != nil {
		return nil, fmt.Errorf("load orders for top products: %w", err)
	}

	amounts := make(map[string]int64)
	names := make(map[string]string)
	var grandTotal int64
	for _, o := range orders {
		for _, d := range o.Details {
			amounts[d.ProductCode] += d.Amount()
			if name, ok := names[d.ProductCode]; !ok || d.ProductName < name {
				names[d.ProductCode] = d.ProductName
			}
			grandTotal += d.Amount()
		}
	}

	grouped := make([]domain.ProductRevenue, 0, len(amounts))
	for code, amount := range amounts {
		grouped = append(grouped, domain.ProductRevenue{
			ProductCode: code,
			ProductName: names[code],
			AmountMinor: amount,
		})
	}
	sort.Slice(grouped, func(i, j int) bool {
		if grouped[i].AmountMinor != grouped[j].AmountMinor {
			return grouped[i].AmountMinor > grouped[j].AmountMinor
		}
		return grouped[i].ProductCode < grouped[j].ProductCode
	})

	if len(grouped) > domain.TopGroupLimit {
		grouped = grouped[:domain.TopGroupLimit]
	}

	var topTotal int64
	for _, row := range grouped {
		topTotal += row.AmountMinor
	}

	grouped = append(grouped, domain.ProductRevenue{
		ProductCode: domain.OtherProductCode,
		ProductName: "",
		AmountMinor: grandTotal - topTotal,
	})

	return grouped, nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ domain.AnalyticsRepository = (*analyticsRepositoryInMemory)(nil)
