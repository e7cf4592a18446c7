package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
)

const (
	opTimeout = 5 * time.Second

	entityCustomer = "customer"
)

type customerRepository struct {
	db      *sql.DB
	metrics *metrics.StorageMetrics
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB(), metrics: metrics.NewStorageMetrics()}
}

func (r *customerRepository) List() ([]domain.Customer, error) {
	defer r.metrics.ObserveOp(entityCustomer, "list", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, phone, notes, version
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Notes, &c.Version); err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}

	return customers, nil
}

func (r *customerRepository) Get(id *int64) (*domain.Customer, error) {
	defer r.metrics.ObserveOp(entityCustomer, "get", time.Now())

	// Пустой идентификатор — это "не найдено", запрос не выполняется.
	if id == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var c domain.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, phone, notes, version
		FROM customers
		WHERE id = $1
	`, *id).Scan(&c.ID, &c.Name, &c.Phone, &c.Notes, &c.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select customer: %w", err)
	}

	return &c, nil
}

func (r *customerRepository) Create(c *domain.Customer) error {
	defer r.metrics.ObserveOp(entityCustomer, "create", time.Now())

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

	c.Version = 1
	err = tx.QueryRowContext(ctx, `
		INSERT INTO customers (name, phone, notes, version)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.Name, c.Phone, c.Notes, c.Version).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create customer: %w", err)
	}

	return nil
}

func (r *customerRepository) Update(c domain.Customer) error {
	defer r.metrics.ObserveOp(entityCustomer, "update", time.Now())

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

	res, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET name = $1,
		    phone = $2,
		    notes = $3,
		    version = version + 1
		WHERE id = $4
		  AND version = $5
	`, c.Name, c.Phone, c.Notes, c.ID, c.Version)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.metrics.ConflictDetected(entityCustomer)
		err = domain.ErrVersionConflict
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update customer: %w", err)
	}

	return nil
}

func (r *customerRepository) Delete(c domain.Customer) error {
	defer r.metrics.ObserveOp(entityCustomer, "delete", time.Now())

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

	res, err := tx.ExecContext(ctx, `
		DELETE FROM customers
		WHERE id = $1
		  AND version = $2
	`, c.ID, c.Version)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.metrics.ConflictDetected(entityCustomer)
		err = domain.ErrVersionConflict
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete customer: %w", err)
	}

	return nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
