package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
)

const (
	entityProduct = "product"

	// productSearchLimit ограничивает выборку type-ahead поиска,
	// чтобы не возвращать неограниченный список совпадений.
	productSearchLimit = 10
)

type productRepository struct {
	db      *sql.DB
	metrics *metrics.StorageMetrics
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB(), metrics: metrics.NewStorageMetrics()}
}

func (r *productRepository) List() ([]domain.Product, error) {
	defer r.metrics.ObserveOp(entityProduct, "list", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT code, name, unit_price, notes, version
		FROM products
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *productRepository) Get(code string) (*domain.Product, error) {
	defer r.metrics.ObserveOp(entityProduct, "get", time.Now())

	if code == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT code, name, unit_price, notes, version
		FROM products
		WHERE code = $1
	`, code).Scan(&p.Code, &p.Name, &p.UnitPriceMinor, &p.Notes, &p.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select product: %w", err)
	}

	return &p, nil
}

func (r *productRepository) Search(keyword string) ([]domain.Product, error) {
	defer r.metrics.ObserveOp(entityProduct, "search", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT code, name, unit_price, notes, version
		FROM products
		WHERE code ILIKE $1 OR name ILIKE $1
		ORDER BY code
		LIMIT $2
	`, "%"+keyword+"%", productSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *productRepository) Create(p domain.Product) error {
	defer r.metrics.ObserveOp(entityProduct, "create", time.Now())

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

	p.Version = 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (code, name, unit_price, notes, version)
		VALUES ($1, $2, $3, $4, $5)
	`, p.Code, p.Name, p.UnitPriceMinor, p.Notes, p.Version)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrProductCodeTaken
			return err
		}
		return fmt.Errorf("insert product: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create product: %w", err)
	}

	return nil
}

func (r *productRepository) Update(p domain.Product) error {
	defer r.metrics.ObserveOp(entityProduct, "update", time.Now())

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
		UPDATE products
		SET name = $1,
		    unit_price = $2,
		    notes = $3,
		    version = version + 1
		WHERE code = $4
		  AND version = $5
	`, p.Name, p.UnitPriceMinor, p.Notes, p.Code, p.Version)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.metrics.ConflictDetected(entityProduct)
		err = domain.ErrVersionConflict
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update product: %w", err)
	}

	return nil
}

func (r *productRepository) Delete(p domain.Product) error {
	defer r.metrics.ObserveOp(entityProduct, "delete", time.Now())

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
		DELETE FROM products
		WHERE code = $1
		  AND version = $2
	`, p.Code, p.Version)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.metrics.ConflictDetected(entityProduct)
		err = domain.ErrVersionConflict
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete product: %w", err)
	}

	return nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.Code, &p.Name, &p.UnitPriceMinor, &p.Notes, &p.Version); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.ProductRepository = (*productRepository)(nil)
