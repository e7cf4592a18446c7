package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
)

const entityOrder = "order"

// sortableColumns — whitelist динамической сортировки. Входной токен никогда
// не интерполируется в SQL напрямую: он резолвится в фиксированное имя
// колонки, любое нераспознанное значение тихо падает в order_date.
var sortableColumns = map[string]string{
	domain.SortByOrderID:      "id",
	domain.SortByOrderDate:    "order_date",
	domain.SortByCustomerName: "customer_name",
	domain.SortByTotalAmount:  "total_amount",
}

func safeSortColumn(name string) string {
	if column, ok := sortableColumns[strings.ToLower(strings.TrimSpace(name))]; ok {
		return column
	}
	return "order_date"
}

func safeSortDirection(direction string) string {
	if strings.EqualFold(strings.TrimSpace(direction), domain.SortAscending) {
		return "ASC"
	}
	return "DESC"
}

type orderRepository struct {
	db      *sql.DB
	metrics *metrics.StorageMetrics
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
// Каждая мутация агрегата записывает событие в transactional outbox
// в той же транзакции, что и сам агрегат.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB(), metrics: metrics.NewStorageMetrics()}
}

func (r *orderRepository) List() ([]domain.Order, error) {
	defer r.metrics.ObserveOp(entityOrder, "list", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_date, customer_id, customer_name, total_amount, notes, version
		FROM orders
		ORDER BY order_date, customer_name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	return scanOrderHeaders(rows)
}

func (r *orderRepository) Get(id *int64) (*domain.Order, error) {
	defer r.metrics.ObserveOp(entityOrder, "get", time.Now())

	if id == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.order_date, o.customer_id, o.customer_name, o.total_amount, o.notes, o.version,
		       d.detail_id, d.product_code, d.product_name, d.unit_price, d.quantity
		FROM orders o
		LEFT JOIN order_details d ON d.order_id = o.id
		WHERE o.id = $1
		ORDER BY d.detail_id
	`, *id)
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrdersWithDetails(rows)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	return &orders[0], nil
}

func (r *orderRepository) Search(filter domain.SearchFilter) ([]domain.Order, error) {
	defer r.metrics.ObserveOp(entityOrder, "search", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	keyword := strings.TrimSpace(filter.Keyword)

	// Колонка и направление подставляются только из whitelist-резолвера.
	query := fmt.Sprintf(`
		WITH sub AS (
			SELECT o.id, o.order_date, o.customer_id, o.customer_name, o.total_amount, o.notes, o.version
			FROM orders o
			WHERE o.order_date BETWEEN $1 AND $2
		)
		SELECT t.id, t.order_date, t.customer_id, t.customer_name, t.total_amount, t.notes, t.version
		FROM sub t
		WHERE $3
		   OR t.customer_name ILIKE $4
		   OR EXISTS (
		        SELECT 1 FROM order_details d
		        WHERE d.order_id = t.id
		          AND (d.product_code ILIKE $4 OR d.product_name ILIKE $4)
		   )
		ORDER BY t.%s %s, t.id
	`, safeSortColumn(filter.SortColumn), safeSortDirection(filter.SortDirection))

	rows, err := r.db.QueryContext(ctx, query,
		filter.Start, filter.End, keyword == "", "%"+keyword+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("search orders: %w", err)
	}
	defer rows.Close()

	return scanOrderHeaders(rows)
}

func (r *orderRepository) History(start, end *time.Time, keyword string) ([]domain.Order, error) {
	defer r.metrics.ObserveOp(entityOrder, "history", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	safeStart := domain.HistoryFarPast
	if start != nil {
		safeStart = *start
	}
	safeEnd := domain.HistoryFarFuture
	if end != nil {
		safeEnd = *end
	}
	keyword = strings.TrimSpace(keyword)

	// Сортировка этого эндпоинта фиксированная: дата DESC, id DESC.
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.order_date, o.customer_id, o.customer_name, o.total_amount, o.notes, o.version,
		       d.detail_id, d.product_code, d.product_name, d.unit_price, d.quantity
		FROM orders o
		LEFT JOIN order_details d ON d.order_id = o.id
		WHERE o.order_date BETWEEN $1 AND $2
		  AND (
		        $3
		     OR o.customer_name ILIKE $4
		     OR d.product_code ILIKE $4
		     OR d.product_name ILIKE $4
		  )
		ORDER BY o.order_date DESC, o.id DESC, d.detail_id
	`, safeStart, safeEnd, keyword == "", "%"+keyword+"%")
	if err != nil {
		return nil, fmt.Errorf("order history: %w", err)
	}
	defer rows.Close()

	return collectOrdersWithDetails(rows)
}

func (r *orderRepository) Create(o *domain.Order) error {
	defer r.metrics.ObserveOp(entityOrder, "create", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Сумма заказа — производное поле, от вызывающей стороны не принимается.
	o.Version = 1
	o.RecalculateTotal()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (order_date, customer_id, customer_name, total_amount, notes, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, o.OrderDate, o.CustomerID, o.CustomerName, o.TotalAmountMinor, o.Notes, o.Version).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if err = r.insertDetails(ctx, tx, o); err != nil {
		return err
	}

	if err = r.enqueueOrderEvent(ctx, tx, domain.EventTypeOrderCreated, *o); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Update(o *domain.Order) error {
	defer r.metrics.ObserveOp(entityOrder, "update", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	o.RecalculateTotal()

	// Позиции не трогаются, пока guard по версии заголовка не прошёл.
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET order_date = $1,
		    customer_id = $2,
		    customer_name = $3,
		    total_amount = $4,
		    notes = $5,
		    version = version + 1
		WHERE id = $6
		  AND version = $7
	`, o.OrderDate, o.CustomerID, o.CustomerName, o.TotalAmountMinor, o.Notes, o.ID, o.Version)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.metrics.ConflictDetected(entityOrder)
		err = domain.ErrVersionConflict
		return err
	}

	// Список позиций заменяется целиком: старый набор удаляется,
	// новый вставляется в той же транзакции. Diff/patch отдельных
	// строк не поддерживается намеренно.
	if _, err = tx.ExecContext(ctx, `DELETE FROM order_details WHERE order_id = $1`, o.ID); err != nil {
		return fmt.Errorf("delete order details: %w", err)
	}

	if err = r.insertDetails(ctx, tx, o); err != nil {
		return err
	}

	stored := *o
	stored.Version++
	if err = r.enqueueOrderEvent(ctx, tx, domain.EventTypeOrderUpdated, stored); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update order: %w", err)
	}

	return nil
}

func (r *orderRepository) Delete(o domain.Order) error {
	defer r.metrics.ObserveOp(entityOrder, "delete", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Позиции удаляются первыми; откат по конфликту версии заголовка
	// восстановит и их.
	if _, err = tx.ExecContext(ctx, `DELETE FROM order_details WHERE order_id = $1`, o.ID); err != nil {
		return fmt.Errorf("delete order details: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM orders
		WHERE id = $1
		  AND version = $2
	`, o.ID, o.Version)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.metrics.ConflictDetected(entityOrder)
		err = domain.ErrVersionConflict
		return err
	}

	if err = r.enqueueOrderEvent(ctx, tx, domain.EventTypeOrderDeleted, o); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete order: %w", err)
	}

	return nil
}

// insertDetails вставляет сохраняемые позиции, проставляя каждой ссылку на
// заказ-владелец и записывая назначенные detail_id обратно в o.Details.
func (r *orderRepository) insertDetails(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	for i := range o.Details {
		if o.Details[i].Blank() {
			continue
		}
		o.Details[i].OrderID = o.ID
		d := &o.Details[i]
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO order_details (order_id, product_code, product_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING detail_id
		`, d.OrderID, d.ProductCode, d.ProductName, d.UnitPriceMinor, d.Quantity).Scan(&d.DetailID); err != nil {
			return fmt.Errorf("insert order detail: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) enqueueOrderEvent(ctx context.Context, tx *sql.Tx, eventType string, o domain.Order) error {
	msg, err := domain.NewOrderEvent(eventType, o, time.Now())
	if err != nil {
		return fmt.Errorf("build order event: %w", err)
	}
	return enqueueOutboxTx(ctx, tx, msg)
}

func scanOrderHeaders(rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.OrderDate, &o.CustomerID, &o.CustomerName,
			&o.TotalAmountMinor, &o.Notes, &o.Version,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// collectOrdersWithDetails материализует результат LEFT JOIN заказов с
// позициями, сохраняя порядок строк. Ссылка detail.OrderID проставляется
// явно из заголовка: join её не переносит, и после материализации она
// обязана совпадать с id заказа-владельца.
func collectOrdersWithDetails(rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	index := make(map[int64]int)

	for rows.Next() {
		var (
			o           domain.Order
			detailID    sql.NullInt64
			productCode sql.NullString
			productName sql.NullString
			unitPrice   sql.NullInt64
			quantity    sql.NullInt32
		)
		if err := rows.Scan(
			&o.ID, &o.OrderDate, &o.CustomerID, &o.CustomerName,
			&o.TotalAmountMinor, &o.Notes, &o.Version,
			&detailID, &productCode, &productName, &unitPrice, &quantity,
		); err != nil {
			return nil, fmt.Errorf("scan order join row: %w", err)
		}

		pos, ok := index[o.ID]
		if !ok {
			o.Details = make([]domain.OrderDetail, 0, 4)
			orders = append(orders, o)
			pos = len(orders) - 1
			index[o.ID] = pos
		}

		if detailID.Valid {
			orders[pos].Details = append(orders[pos].Details, domain.OrderDetail{
				DetailID:       detailID.Int64,
				OrderID:        orders[pos].ID,
				ProductCode:    productCode.String,
				ProductName:    productName.String,
				UnitPriceMinor: unitPrice.Int64,
				Quantity:       quantity.Int32,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order join rows: %w", err)
	}

	return orders, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
