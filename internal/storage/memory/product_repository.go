package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

const productSearchLimit = 10

// productRepositoryInMemory — простая in-memory реализация ProductRepository.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// List возвращает все товары, отсортированные по коду.
func (r *productRepositoryInMemory) List() ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, p := range r.items {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })

	return result, nil
}

// Get возвращает товар или (nil, nil), если код пуст либо записи нет.
func (r *productRepositoryInMemory) Get(code string) (*domain.Product, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Search ищет подстроку в коде и наименовании без учёта регистра.
func (r *productRepositoryInMemory) Search(keyword string) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(keyword))

	result := make([]domain.Product, 0, productSearchLimit)
	for _, p := range r.items {
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Code), needle) &&
			!strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })

	if len(result) > productSearchLimit {
		result = result[:productSearchLimit]
	}

	return result, nil
}

// Create сохраняет новый товар, если код ещё не занят.
func (r *productRepositoryInMemory) Create(p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[p.Code]; exists {
		return domain.ErrProductCodeTaken
	}
	p.Version = 1
	r.items[p.Code] = p
	return nil
}

// Update перезаписывает товар с проверкой версии.
func (r *productRepositoryInMemory) Update(p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[p.Code]
	if !ok || current.Version != p.Version {
		return domain.ErrVersionConflict
	}
	p.Version++
	r.items[p.Code] = p
	return nil
}

// Delete удаляет товар с проверкой версии.
func (r *productRepositoryInMemory) Delete(p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[p.Code]
	if !ok || current.Version != p.Version {
		return domain.ErrVersionConflict
	}
	delete(r.items, p.Code)
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
