package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// customerRepositoryInMemory — простая in-memory реализация CustomerRepository.
type customerRepositoryInMemory struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]domain.Customer
}

// NewCustomerRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewCustomerRepository() domain.CustomerRepository {
	return &customerRepositoryInMemory{
		nextID: 1,
		items:  make(map[int64]domain.Customer),
	}
}

// List возвращает всех клиентов, отсортированных по имени.
func (r *customerRepositoryInMemory) List() ([]domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Customer, 0, len(r.items))
	for _, c := range r.items {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Get возвращает клиента или (nil, nil), если id пуст либо записи нет.
func (r *customerRepositoryInMemory) Get(id *int64) (*domain.Customer, error) {
	if id == nil {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[*id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Create сохраняет нового клиента, назначая id и version=1.
func (r *customerRepositoryInMemory) Create(c *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.ID = r.nextID
	r.nextID++
	c.Version = 1
	r.items[c.ID] = *c
	return nil
}

// Update перезаписывает клиента с проверкой версии.
func (r *customerRepositoryInMemory) Update(c domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[c.ID]
	if !ok || current.Version != c.Version {
		return domain.ErrVersionConflict
	}
	c.Version++
	r.items[c.ID] = c
	return nil
}

// Delete удаляет клиента с проверкой версии.
func (r *customerRepositoryInMemory) Delete(c domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[c.ID]
	if !ok || current.Version != c.Version {
		return domain.ErrVersionConflict
	}
	delete(r.items, c.ID)
	return nil
}

var _ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
