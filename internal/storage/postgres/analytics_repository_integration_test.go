package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

func seedRevenueOrder(t *testing.T, repo domain.OrderRepository, customerID int64, customerName, productCode string, orderDate time.Time, amount int64) {
	t.Helper()

	o := domain.Order{
		OrderDate:    orderDate,
		CustomerID:   customerID,
		CustomerName: customerName,
		Details: []domain.OrderDetail{
			{ProductCode: productCode, ProductName: productCode, UnitPriceMinor: amount, Quantity: 1},
		},
	}
	if err := repo.Create(&o); err != nil {
		t.Fatalf("seed order for %s: %v", customerName, err)
	}
}

func TestAnalyticsRepository_PostgresDailyRevenue(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	analytics := NewAnalyticsRepository(store)

	seedRevenueOrder(t, orders, 1, "Aoki Trading", "WID-100", date(2024, 3, 3), 60)
	seedRevenueOrder(t, orders, 1, "Aoki Trading", "GAD-200", date(2024, 3, 3), 40)

	points, err := analytics.DailyRevenue(date(2024, 3, 1), date(2024, 3, 5))
	if err != nil {
		t.Fatalf("daily revenue: %v", err)
	}

	wantAmounts := []int64{0, 0, 100, 0, 0}
	if len(points) != len(wantAmounts) {
		t.Fatalf("expected one point per day, got %d", len(points))
	}
	for i, want := range wantAmounts {
		if points[i].AmountMinor != want {
			t.Fatalf("day %d: got %d, want %d", i, points[i].AmountMinor, want)
		}
		wantDate := date(2024, 3, 1).AddDate(0, 0, i)
		if !points[i].Date.Equal(wantDate) {
			t.Fatalf("day %d: got date %v, want %v", i, points[i].Date, wantDate)
		}
	}
}

func TestAnalyticsRepository_PostgresWeeklyRevenue(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)

	// "Сегодня" — пятница: первая корзина начинается в субботу,
	// через шесть дней после воскресного начала периода.
	friday := time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC)
	analytics := NewAnalyticsRepository(store, WithAnalyticsNow(func() time.Time { return friday }))

	start := date(2023, 12, 31) // воскресенье
	end := date(2024, 1, 19)

	seedRevenueOrder(t, orders, 1, "Aoki Trading", "WID-100", date(2024, 1, 2), 999) // до первой корзины
	seedRevenueOrder(t, orders, 1, "Aoki Trading", "WID-100", date(2024, 1, 6), 100)
	seedRevenueOrder(t, orders, 1, "Aoki Trading", "WID-100", date(2024, 1, 8), 50)
	seedRevenueOrder(t, orders, 2, "Zenith Supply", "GAD-200", date(2024, 1, 14), 70)

	points, err := analytics.WeeklyRevenue(start, end)
	if err != nil {
		t.Fatalf("weekly revenue: %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("expected 2 weekly buckets, got %d: %+v", len(points), points)
	}
	firstBucket := date(2024, 1, 6)
	if !points[0].Date.Equal(firstBucket) || points[0].Date.Weekday() != time.Saturday {
		t.Fatalf("first bucket must start on Saturday %v, got %v", firstBucket, points[0].Date)
	}
	if points[0].AmountMinor != 150 {
		t.Fatalf("bucket 1: got %d, want 150", points[0].AmountMinor)
	}
	if points[1].AmountMinor != 70 {
		t.Fatalf("bucket 2: got %d, want 70", points[1].AmountMinor)
	}
}

func TestAnalyticsRepository_PostgresTopCustomers(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	analytics := NewAnalyticsRepository(store)

	var grandTotal int64
	for i := 1; i <= domain.TopGroupLimit+2; i++ {
		amount := int64(i * 100)
		grandTotal += amount
		seedRevenueOrder(t, orders, int64(i), fmt.Sprintf("Customer %02d", i), "WID-100", date(2024, 3, 5), amount)
	}

	rows, err := analytics.TopCustomers(date(2024, 3, 1), date(2024, 3, 31))
	if err != nil {
		t.Fatalf("top customers: %v", err)
	}

	if len(rows) != domain.TopGroupLimit+1 {
		t.Fatalf("expected top %d plus Other, got %d rows", domain.TopGroupLimit, len(rows))
	}

	var sum int64
	for _, row := range rows {
		sum += row.AmountMinor
	}
	if sum != grandTotal {
		t.Fatalf("rows must add up to the grand total: got %d, want %d", sum, grandTotal)
	}

	other := rows[len(rows)-1]
	if other.CustomerID != domain.OtherCustomerID || other.CustomerName != domain.OtherCustomerName {
		t.Fatalf("last row must be the synthetic Other row: %+v", other)
	}
	// Два клиента с наименьшей выручкой свёрнуты в Other.
	if other.AmountMinor != 100+200 {
		t.Fatalf("unexpected Other amount: %d", other.AmountMinor)
	}

	top := rows[:len(rows)-1]
	for i := 1; i < len(top); i++ {
		if top[i-1].AmountMinor < top[i].AmountMinor {
			t.Fatalf("top rows must be sorted by revenue DESC: %+v", top)
		}
	}
}

func TestAnalyticsRepository_PostgresTopCustomersFewGroups(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	analytics := NewAnalyticsRepository(store)

	seedRevenueOrder(t, orders, 1, "Aoki Trading", "WID-100", date(2024, 3, 5), 500)

	rows, err := analytics.TopCustomers(date(2024, 3, 1), date(2024, 3, 31))
	if err != nil {
		t.Fatalf("top customers: %v", err)
	}

	// Строка Other присутствует всегда, даже с нулевым остатком.
	if len(rows) != 2 {
		t.Fatalf("expected one customer plus Other, got %d rows", len(rows))
	}
	other := rows[len(rows)-1]
	if other.CustomerID != domain.OtherCustomerID || other.AmountMinor != 0 {
		t.Fatalf("Other must be present with zero remainder: %+v", other)
	}
}

func TestAnalyticsRepository_PostgresTopProducts(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	analytics := NewAnalyticsRepository(store)

	var grandTotal int64
	for i := 1; i <= domain.TopGroupLimit+3; i++ {
		amount := int64(i * 10)
		grandTotal += amount
		seedRevenueOrder(t, orders, 1, "Aoki Trading", fmt.Sprintf("SKU-%02d", i), date(2024, 3, 5), amount)
	}

	rows, err := analytics.TopProducts(date(2024, 3, 1), date(2024, 3, 31))
	if err != nil {
		t.Fatalf("top products: %v", err)
	}

	if len(rows) != domain.TopGroupLimit+1 {
		t.Fatalf("expected top %d plus Other, got %d rows", domain.TopGroupLimit, len(rows))
	}

	var sum int64
	for _, row := range rows {
		sum += row.AmountMinor
	}
	if sum != grandTotal {
		t.Fatalf("rows must add up to the grand total: got %d, want %d", sum, grandTotal)
	}

	other := rows[len(rows)-1]
	if other.ProductCode != domain.OtherProductCode || other.ProductName != "" {
		t.Fatalf("last row must be the synthetic Other row: %+v", other)
	}
	if other.AmountMinor != 10+20+30 {
		t.Fatalf("unexpected Other amount: %d", other.AmountMinor)
	}
}
