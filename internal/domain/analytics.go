package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Сентинелы для синтетической строки "прочие" в top-N отчётах. Конвенции
// для клиентов и товаров различаются исторически; потребители отчётов
// зависят от их точной формы, поэтому они не унифицированы.
const (
	OtherCustomerID   int64 = -1
	OtherCustomerName       = "Other"
	OtherProductCode        = "OTHER"
)

// TopGroupLimit — число групп, показываемых индивидуально в top-N отчётах.
const TopGroupLimit = 10

// reportLocation — региональная зона, в которой определяется "сегодня" для
// недельных корзин.
var reportLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}()

// ReportToday приводит момент времени к календарной дате в отчётной зоне.
func ReportToday(now time.Time) time.Time {
	y, m, d := now.In(reportLocation).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FirstWeekStart возвращает начало первой недельной корзины: startDate,
// сдвинутый на (номер дня недели "сегодня" + 1) mod 7 дней. Нумерация дней
// недели: воскресенье=0 .. суббота=6. Последующие корзины идут с шагом 7 дней.
func FirstWeekStart(start, today time.Time) time.Time {
	offset := (int(today.Weekday()) + 1) % 7
	return start.AddDate(0, 0, offset)
}

// orderEventPayload — форма JSON-события изменения заказа для outbox.
type orderEventPayload struct {
	OrderID      int64     `json:"order_id"`
	OrderDate    string    `json:"order_date"`
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	TotalAmount  int64     `json:"total_amount_minor"`
	Version      int64     `json:"version"`
	DetailCount  int       `json:"detail_count"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewOrderEvent собирает outbox-сообщение для события изменения заказа.
// Идентификатор сообщения назначается хранилищем outbox при записи.
func NewOrderEvent(eventType string, o Order, occurredAt time.Time) (OutboxMessage, error) {
	payload, err := json.Marshal(orderEventPayload{
		OrderID:      o.ID,
		OrderDate:    o.OrderDate.Format("2006-01-02"),
		CustomerID:   o.CustomerID,
		CustomerName: o.CustomerName,
		TotalAmount:  o.TotalAmountMinor,
		Version:      o.Version,
		DetailCount:  len(o.PersistableDetails()),
		OccurredAt:   occurredAt.UTC(),
	})
	if err != nil {
		return OutboxMessage{}, err
	}

	return OutboxMessage{
		AggregateType: AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(o.ID, 10),
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
