package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository с той же
// семантикой версий, поиска и истории, что и у PostgreSQL-реализации.
type orderRepositoryInMemory struct {
	mu           sync.RWMutex
	nextOrderID  int64
	nextDetailID int64
	items        map[int64]domain.Order

	outbox domain.OutboxRepository
}

// OrderOption настраивает in-memory репозиторий заказов.
type OrderOption func(*orderRepositoryInMemory)

// WithOutbox подключает outbox: каждая мутация агрегата записывает событие,
// как это делает PostgreSQL-реализация внутри транзакции.
func WithOutbox(outbox domain.OutboxRepository) OrderOption {
	return func(r *orderRepositoryInMemory) {
		r.outbox = outbox
	}
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository(opts ...OrderOption) domain.OrderRepository {
	r := &orderRepositoryInMemory{
		nextOrderID:  1,
		nextDetailID: 1,
		items:        make(map[int64]domain.Order),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List возвращает заголовки всех заказов без позиций.
func (r *orderRepositoryInMemory) List() ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, o := range r.items {
		header := o
		header.Details = nil
		result = append(result, header)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OrderDate.Equal(result[j].OrderDate) {
			return result[i].OrderDate.Before(result[j].OrderDate)
		}
		if result[i].CustomerName != result[j].CustomerName {
			return result[i].CustomerName < result[j].CustomerName
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Get возвращает заказ с позициями или (nil, nil).
func (r *orderRepositoryInMemory) Get(id *int64) (*domain.Order, error) {
	if id == nil {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.items[*id]
	if !ok {
		return nil, nil
	}
	clone := cloneOrder(o)
	return &clone, nil
}

// Search возвращает заголовки заказов по фильтру.
func (r *orderRepositoryInMemory) Search(filter domain.SearchFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keyword := strings.TrimSpace(filter.Keyword)

	result := make([]domain.Order, 0, len(r.items))
	for _, o := range r.items {
		if !withinRange(o.OrderDate, filter.Start, filter.End) {
			continue
		}
		if keyword != "" && !matchesCustomer(o, keyword) && len(matchingDetails(o, keyword)) == 0 {
			continue
		}
		header := o
		header.Details = nil
		result = append(result, header)
	}
	sortOrders(result, filter.SortColumn, filter.SortDirection)

	return result, nil
}

// History возвращает заказы с позициями; отсутствующие границы периода
// заменяются на domain.HistoryFarPast/HistoryFarFuture.
func (r *orderRepositoryInMemory) History(start, end *time.Time, keyword string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	safeStart := domain.HistoryFarPast
	if start != nil {
		safeStart = *start
	}
	safeEnd := domain.HistoryFarFuture
	if end != nil {
		safeEnd = *end
	}
	keyword = strings.TrimSpace(keyword)

	result := make([]domain.Order, 0, len(r.items))
	for _, o := range r.items {
		if !withinRange(o.OrderDate, safeStart, safeEnd) {
			continue
		}
		switch {
		case keyword == "" || matchesCustomer(o, keyword):
			// Пустой keyword или совпадение по клиенту: полный список позиций.
			result = append(result, cloneOrder(o))
		default:
			// Keyword совпал только на уровне позиций: у заказа остаются
			// лишь совпавшие позиции.
			matched := matchingDetails(o, keyword)
			if len(matched) == 0 {
				continue
			}
			clone := o
			clone.Details = matched
			result = append(result, clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OrderDate.Equal(result[j].OrderDate) {
			return result[i].OrderDate.After(result[j].OrderDate)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// Create сохраняет заголовок и позиции, назначая идентификаторы и version=1.
func (r *orderRepositoryInMemory) Create(o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o.ID = r.nextOrderID
	r.nextOrderID++
	o.Version = 1
	o.RecalculateTotal()
	r.stampDetails(o)

	r.items[o.ID] = cloneOrder(*o)
	return r.enqueueEvent(domain.EventTypeOrderCreated, *o)
}

// Update заменяет заголовок и весь список позиций с проверкой версии.
func (r *orderRepositoryInMemory) Update(o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[o.ID]
	if !ok || current.Version != o.Version {
		return domain.ErrVersionConflict
	}

	o.RecalculateTotal()
	r.stampDetails(o)

	stored := cloneOrder(*o)
	stored.Version++
	r.items[o.ID] = stored
	return r.enqueueEvent(domain.EventTypeOrderUpdated, stored)
}

// Delete удаляет заказ вместе с позициями с проверкой версии.
func (r *orderRepositoryInMemory) Delete(o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[o.ID]
	if !ok || current.Version != o.Version {
		return domain.ErrVersionConflict
	}
	delete(r.items, o.ID)
	return r.enqueueEvent(domain.EventTypeOrderDeleted, o)
}

// stampDetails отбрасывает незаполненные строки и назначает оставшимся
// позициям идентификаторы и ссылку на заказ-владелец.
func (r *orderRepositoryInMemory) stampDetails(o *domain.Order) {
	kept := make([]domain.OrderDetail, 0, len(o.Details))
	for _, d := range o.Details {
		if d.Blank() {
			continue
		}
		d.OrderID = o.ID
		if d.DetailID == 0 {
			d.DetailID = r.nextDetailID
			r.nextDetailID++
		}
		kept = append(kept, d)
	}
	o.Details = kept
}

func (r *orderRepositoryInMemory) enqueueEvent(eventType string, o domain.Order) error {
	if r.outbox == nil {
		return nil
	}
	msg, err := domain.NewOrderEvent(eventType, o, time.Now())
	if err != nil {
		return fmt.Errorf("build order event: %w", err)
	}
	if _, err := r.outbox.Enqueue(msg); err != nil {
		return fmt.Errorf("enqueue order event: %w", err)
	}
	return nil
}

func cloneOrder(o domain.Order) domain.Order {
	clone := o
	clone.Details = make([]domain.OrderDetail, len(o.Details))
	copy(clone.Details, o.Details)
	return clone
}

func withinRange(day, start, end time.Time) bool {
	return !day.Before(start) && !day.After(end)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchesCustomer(o domain.Order, keyword string) bool {
	return containsFold(o.CustomerName, keyword)
}

func matchingDetails(o domain.Order, keyword string) []domain.OrderDetail {
	matched := make([]domain.OrderDetail, 0, len(o.Details))
	for _, d := range o.Details {
		if containsFold(d.ProductCode, keyword) || containsFold(d.ProductName, keyword) {
			matched = append(matched, d)
		}
	}
	return matched
}

// sortOrders сортирует результат поиска по whitelist-колонке; нераспознанная
// колонка тихо заменяется на дату заказа, направление по умолчанию — DESC.
func sortOrders(orders []domain.Order, column, direction string) {
	asc := strings.EqualFold(strings.TrimSpace(direction), domain.SortAscending)

	var less func(a, b domain.Order) (lt, eq bool)
	switch strings.ToLower(strings.TrimSpace(column)) {
	case domain.SortByOrderID:
		less = func(a, b domain.Order) (bool, bool) { return a.ID < b.ID, a.ID == b.ID }
	case domain.SortByCustomerName:
		less = func(a, b domain.Order) (bool, bool) {
			return a.CustomerName < b.CustomerName, a.CustomerName == b.CustomerName
		}
	case domain.SortByTotalAmount:
		less = func(a, b domain.Order) (bool, bool) {
			return a.TotalAmountMinor < b.TotalAmountMinor, a.TotalAmountMinor == b.TotalAmountMinor
		}
	default:
		less = func(a, b domain.Order) (bool, bool) {
			return a.OrderDate.Before(b.OrderDate), a.OrderDate.Equal(b.OrderDate)
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		lt, eq := less(orders[i], orders[j])
		if eq {
			// Вторичный ключ всегда id по возрастанию, как и в SQL-версии.
			return orders[i].ID < orders[j].ID
		}
		if asc {
			return lt
		}
		return !lt
	})
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
