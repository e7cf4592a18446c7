package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

func TestOrderDetail_Blank(t *testing.T) {
	if !(domain.OrderDetail{}).Blank() {
		t.Fatal("empty product code must be blank")
	}
	if !(domain.OrderDetail{ProductCode: "   "}).Blank() {
		t.Fatal("whitespace product code must be blank")
	}
	if (domain.OrderDetail{ProductCode: "P-1"}).Blank() {
		t.Fatal("non-empty product code must not be blank")
	}
}

func TestOrder_RecalculateTotal(t *testing.T) {
	order := domain.Order{
		OrderDate: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Details: []domain.OrderDetail{
			{ProductCode: "P-1", UnitPriceMinor: 100, Quantity: 2},
			{ProductCode: "P-2", UnitPriceMinor: 50, Quantity: 3},
			{ProductCode: "", UnitPriceMinor: 999, Quantity: 9},
		},
	}

	order.RecalculateTotal()
	if order.TotalAmountMinor != 350 {
		t.Fatalf("expected total 350, got %d", order.TotalAmountMinor)
	}

	persistable := order.PersistableDetails()
	if len(persistable) != 2 {
		t.Fatalf("expected 2 persistable details, got %d", len(persistable))
	}
}

func TestOrder_RecalculateTotalEmpty(t *testing.T) {
	order := domain.Order{TotalAmountMinor: 12345}
	order.RecalculateTotal()
	if order.TotalAmountMinor != 0 {
		t.Fatalf("expected zero total for empty detail list, got %d", order.TotalAmountMinor)
	}
}

func TestNewOrderEvent(t *testing.T) {
	order := domain.Order{
		ID:           42,
		OrderDate:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		CustomerID:   7,
		CustomerName: "ACME",
		Version:      3,
		Details: []domain.OrderDetail{
			{ProductCode: "P-1", UnitPriceMinor: 10, Quantity: 1},
			{ProductCode: ""},
		},
	}

	msg, err := domain.NewOrderEvent(domain.EventTypeOrderUpdated, order, time.Now())
	if err != nil {
		t.Fatalf("build order event: %v", err)
	}
	if msg.AggregateType != domain.AggregateTypeOrder {
		t.Fatalf("unexpected aggregate type: %s", msg.AggregateType)
	}
	if msg.AggregateID != "42" {
		t.Fatalf("unexpected aggregate id: %s", msg.AggregateID)
	}
	if msg.EventType != domain.EventTypeOrderUpdated {
		t.Fatalf("unexpected event type: %s", msg.EventType)
	}
	if len(msg.Payload) == 0 {
		t.Fatal("payload must not be empty")
	}
}
