package domain

import "time"

// Колонки, допустимые для динамической сортировки результатов поиска.
// Любое другое значение тихо заменяется на SortByOrderDate.
const (
	SortByOrderID      = "order_id"
	SortByOrderDate    = "order_date"
	SortByCustomerName = "customer_name"
	SortByTotalAmount  = "total_amount"
)

// SortAscending — единственное значение направления, дающее сортировку по
// возрастанию (сравнение без учёта регистра); всё остальное трактуется как DESC.
const SortAscending = "asc"

// Границы периода для истории заказов, когда вызывающая сторона их не задала.
var (
	HistoryFarPast   = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	HistoryFarFuture = time.Date(2999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// SearchFilter задаёт параметры поиска заказов.
type SearchFilter struct {
	// Start и End — включительные границы по дате заказа.
	Start time.Time
	End   time.Time
	// Keyword — подстрока без учёта регистра; пустое значение отключает
	// фильтрацию. Совпадение ищется по имени клиента заказа и по
	// коду/наименованию товара в его позициях.
	Keyword string
	// SortColumn и SortDirection резолвятся через whitelist, см. константы выше.
	SortColumn    string
	SortDirection string
}

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// List возвращает всех клиентов, отсортированных по имени.
	List() ([]Customer, error)
	// Get возвращает клиента или (nil, nil), если id пуст либо строки нет.
	Get(id *int64) (*Customer, error)
	// Create сохраняет нового клиента с version=1 и записывает назначенный id.
	Create(c *Customer) error
	// Update применяет изменения с проверкой версии.
	Update(c Customer) error
	// Delete удаляет клиента с проверкой версии.
	Delete(c Customer) error
}

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// List возвращает все товары, отсортированные по коду.
	List() ([]Product, error)
	// Get возвращает товар или (nil, nil), если код пуст либо строки нет.
	Get(code string) (*Product, error)
	// Search ищет подстроку в коде и наименовании без учёта регистра;
	// выборка ограничена десятью строками для type-ahead сценариев.
	Search(keyword string) ([]Product, error)
	Create(p Product) error
	Update(p Product) error
	Delete(p Product) error
}

// OrderRepository описывает требования к хранилищу агрегата заказа.
type OrderRepository interface {
	// List возвращает заголовки всех заказов без позиций.
	List() ([]Order, error)
	// Get возвращает заказ с полным списком позиций или (nil, nil).
	Get(id *int64) (*Order, error)
	// Search возвращает заголовки заказов по фильтру.
	Search(filter SearchFilter) ([]Order, error)
	// History возвращает заказы с позициями; отсутствующие границы периода
	// заменяются на HistoryFarPast/HistoryFarFuture, сортировка фиксированная:
	// дата DESC, id DESC.
	History(start, end *time.Time, keyword string) ([]Order, error)
	// Create сохраняет заголовок и позиции в одной транзакции,
	// записывая назначенные идентификаторы обратно в o.
	Create(o *Order) error
	// Update заменяет заголовок и весь список позиций в одной транзакции.
	Update(o *Order) error
	// Delete удаляет позиции и заголовок в одной транзакции.
	Delete(o Order) error
}

// RevenuePoint — одна точка временного ряда выручки.
type RevenuePoint struct {
	Date        time.Time
	AmountMinor int64
}

// CustomerRevenue — выручка по клиенту за период.
type CustomerRevenue struct {
	CustomerID   int64
	CustomerName string
	AmountMinor  int64
}

// ProductRevenue — выручка по товару за период.
type ProductRevenue struct {
	ProductCode string
	ProductName string
	AmountMinor int64
}

// AnalyticsRepository описывает read-side отчёты по истории заказов.
type AnalyticsRepository interface {
	// DailyRevenue возвращает ряд по одной точке на каждый календарный день
	// периода включительно; дни без заказов заполняются нулями.
	DailyRevenue(start, end time.Time) ([]RevenuePoint, error)
	// WeeklyRevenue возвращает ряд по недельным корзинам, см. FirstWeekStart.
	WeeklyRevenue(start, end time.Time) ([]RevenuePoint, error)
	// TopCustomers возвращает десять клиентов с наибольшей выручкой плюс
	// синтетическую строку {OtherCustomerID, OtherCustomerName} с остатком.
	TopCustomers(start, end time.Time) ([]CustomerRevenue, error)
	// TopProducts — то же для товаров; синтетическая строка использует
	// {OtherProductCode, пустое наименование}.
	TopProducts(start, end time.Time) ([]ProductRevenue, error)
}

// Типы агрегатов и событий для transactional outbox.
const (
	AggregateTypeOrder = "order"

	EventTypeOrderCreated = "order.created"
	EventTypeOrderUpdated = "order.updated"
	EventTypeOrderDeleted = "order.deleted"
)

// OutboxMessage — событие, записанное в outbox в той же транзакции, что и
// породившее его изменение агрегата.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}
