package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"core/internal/apperr"
	"core/internal/logger"
	"core/internal/metrics"
)

// recordQuery times a query method and reports it to both the
// Prometheus db_queries_total/db_query_duration_seconds counters and
// the debug query log, mirroring pim/postgres_repo.go's per-call
// instrumentation.
func recordQuery(op string, start time.Time, err *error) {
	duration := time.Since(start)
	metrics.RecordDBQuery(op, duration.Seconds())
	logger.DBQuery(op, duration, *err)
}

// PostgresStore implements ProductRepository, CategoryRepository,
// ClientRepository and OrderRepository against a single *sql.DB,
// following pim/postgres_repo.go's init-on-construct + ON CONFLICT
// upsert idiom.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.init(context.Background()); err != nil {
		return nil, fmt.Errorf("catalog: init schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			parent_id TEXT REFERENCES categories(id)
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			sku TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			brand TEXT NOT NULL DEFAULT '',
			price NUMERIC(14,2) NOT NULL CHECK (price >= 0),
			category_id TEXT REFERENCES categories(id),
			specifications JSONB NOT NULL DEFAULT '{}',
			image_urls TEXT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE SEQUENCE IF NOT EXISTS client_id_seq`,
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE SEQUENCE IF NOT EXISTS order_id_seq`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			client_id TEXT REFERENCES clients(id),
			chat_id TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			address TEXT NOT NULL,
			total_amount NUMERIC(14,2) NOT NULL CHECK (total_amount >= 0),
			status TEXT NOT NULL,
			invoice_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id TEXT NOT NULL REFERENCES orders(id),
			sku TEXT NOT NULL REFERENCES products(sku),
			quantity INT NOT NULL CHECK (quantity > 0),
			unit_price NUMERIC(14,2) NOT NULL CHECK (unit_price >= 0)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ===================== ProductRepository =====================

func (s *PostgresStore) GetBySKU(ctx context.Context, sku string) (p *Product, err error) {
	defer recordQuery("get_product_by_sku", time.Now(), &err)
	row := s.db.QueryRowContext(ctx, `
		SELECT sku, name, description, brand, price, COALESCE(category_id, ''), specifications, image_urls
		FROM products WHERE sku = $1`, sku)

	p, err = scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(fmt.Sprintf("I can't find product %s.", sku), err)
	}
	if err != nil {
		return nil, apperr.TransientUpstream("catalog lookup failed", err)
	}
	return p, nil
}

func (s *PostgresStore) GetBySKUs(ctx context.Context, skus []string) (out []Product, err error) {
	if len(skus) == 0 {
		return nil, nil
	}
	defer recordQuery("get_products_by_skus", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, description, brand, price, COALESCE(category_id, ''), specifications, image_urls
		FROM products WHERE sku = ANY($1)`, pq.Array(skus))
	if err != nil {
		return nil, apperr.TransientUpstream("catalog lookup failed", err)
	}
	defer rows.Close()

	bySKU := make(map[string]Product, len(skus))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperr.TransientUpstream("catalog lookup failed", err)
		}
		bySKU[p.SKU] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.TransientUpstream("catalog lookup failed", err)
	}

	// Preserve requested order; silently drop SKUs missing from the
	// catalog (catalog/vector-index consistency is eventually
	// consistent per spec.md §9).
	out = make([]Product, 0, len(skus))
	for _, sku := range skus {
		if p, ok := bySKU[sku]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ProductFilter) (out []Product, err error) {
	defer recordQuery("list_products", time.Now(), &err)
	query := `SELECT sku, name, description, brand, price, COALESCE(category_id, ''), specifications, image_urls FROM products WHERE 1=1`
	var args []interface{}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		query += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.TransientUpstream("catalog lookup failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperr.TransientUpstream("catalog lookup failed", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var specJSON []byte
	if err := row.Scan(&p.SKU, &p.Name, &p.Description, &p.Brand, &p.Price, &p.CategoryID, &specJSON, pq.Array(&p.ImageURLs)); err != nil {
		return nil, err
	}
	p.Specifications = map[string]string{}
	if len(specJSON) > 0 {
		_ = json.Unmarshal(specJSON, &p.Specifications)
	}
	return &p, nil
}

// ===================== CategoryRepository =====================

func (s *PostgresStore) GetCategoryByID(ctx context.Context, id string) (_ *Category, err error) {
	defer recordQuery("get_category_by_id", time.Now(), &err)
	var c Category
	var parent sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT id, name, parent_id FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("category not found", err)
	}
	if err != nil {
		return nil, apperr.TransientUpstream("catalog lookup failed", err)
	}
	c.Parent = parent.String
	return &c, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) (out []Category, err error) {
	defer recordQuery("list_categories", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, parent_id FROM categories`)
	if err != nil {
		return nil, apperr.TransientUpstream("catalog lookup failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Category
		var parent sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &parent); err != nil {
			return nil, apperr.TransientUpstream("catalog lookup failed", err)
		}
		c.Parent = parent.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// ===================== ClientRepository =====================

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*Client, error) {
	return s.scanClient(ctx, `SELECT id, name, email, phone, address FROM clients WHERE email = $1`, email)
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Client, error) {
	return s.scanClient(ctx, `SELECT id, name, email, phone, address FROM clients WHERE id = $1`, id)
}

func (s *PostgresStore) scanClient(ctx context.Context, query, arg string) (_ *Client, err error) {
	defer recordQuery("get_client", time.Now(), &err)
	var c Client
	err = s.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("no client found for that email", err)
	}
	if err != nil {
		return nil, apperr.TransientUpstream("client lookup failed", err)
	}
	return &c, nil
}

// UpsertByEmail is idempotent on email: a concurrent first-time
// checkout racing on the same email resolves to a single row, the
// loser's DO UPDATE keeping the winner's id. Grounded on
// crm/internal/customer/repo.go's ON CONFLICT(telegram_id) shape,
// generalized to ON CONFLICT(email).
func (s *PostgresStore) UpsertByEmail(ctx context.Context, c Client) (_ *Client, err error) {
	defer recordQuery("upsert_client", time.Now(), &err)
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO clients (id, name, email, phone, address)
		VALUES ('CUST' || lpad(nextval('client_id_seq')::text, 4, '0'), $1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, name, email, phone, address`,
		c.Name, c.Email, c.Phone, c.Address)

	var out Client
	if err = row.Scan(&out.ID, &out.Name, &out.Email, &out.Phone, &out.Address); err != nil {
		return nil, apperr.TransientUpstream("client upsert failed", err)
	}
	return &out, nil
}

// ===================== OrderRepository =====================

// CommitOrder inserts the order and its items in one transaction,
// assigning the next ORDnnnnn id. On any failure the transaction
// rolls back, so no Order row is left behind.
func (s *PostgresStore) CommitOrder(ctx context.Context, order Order) (orderID string, err error) {
	defer recordQuery("commit_order", time.Now(), &err)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", apperr.TransientUpstream("could not start checkout", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `SELECT 'ORD' || lpad(nextval('order_id_seq')::text, 5, '0')`).Scan(&orderID)
	if err != nil {
		return "", apperr.TransientUpstream("could not assign order id", err)
	}

	var clientID sql.NullString
	if order.ClientID != "" {
		clientID = sql.NullString{String: order.ClientID, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, client_id, chat_id, customer_name, customer_email, address, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		orderID, clientID, order.ChatID, order.CustomerName, order.CustomerEmail, order.Address,
		order.TotalAmount, string(OrderStatusPending))
	if err != nil {
		return "", apperr.TransientUpstream("could not save your order, please try again", err)
	}

	if len(order.Items) == 0 {
		return "", apperr.InvariantViolation("order must have at least one item", fmt.Errorf("empty items"))
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, sku, quantity, unit_price)
			VALUES ($1, $2, $3, $4)`,
			orderID, item.SKU, item.Quantity, item.UnitPrice)
		if err != nil {
			return "", apperr.TransientUpstream("could not save your order, please try again", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", apperr.TransientUpstream("could not save your order, please try again", err)
	}
	return orderID, nil
}

func (s *PostgresStore) GetOrderByID(ctx context.Context, id string) (*Order, error) {
	return s.getOrder(ctx, id, false)
}

func (s *PostgresStore) GetOrderWithProducts(ctx context.Context, id string) (*Order, error) {
	return s.getOrder(ctx, id, true)
}

func (s *PostgresStore) getOrder(ctx context.Context, id string, withProducts bool) (_ *Order, err error) {
	defer recordQuery("get_order", time.Now(), &err)
	var o Order
	var clientID sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT id, client_id, chat_id, customer_name, customer_email, address, total_amount, status, invoice_url, created_at, updated_at
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &clientID, &o.ChatID, &o.CustomerName, &o.CustomerEmail, &o.Address, &o.TotalAmount,
			&o.Status, &o.InvoiceURL, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order not found", err)
	}
	if err != nil {
		return nil, apperr.TransientUpstream("order lookup failed", err)
	}
	o.ClientID = clientID.String

	itemQuery := `SELECT order_id, sku, quantity, unit_price FROM order_items WHERE order_id = $1`
	if withProducts {
		itemQuery = `
			SELECT oi.order_id, oi.sku, oi.quantity, oi.unit_price,
			       p.sku, p.name, p.description, p.brand, p.price, COALESCE(p.category_id,''), p.specifications, p.image_urls
			FROM order_items oi
			LEFT JOIN products p ON p.sku = oi.sku
			WHERE oi.order_id = $1`
	}

	rows, err := s.db.QueryContext(ctx, itemQuery, id)
	if err != nil {
		return nil, apperr.TransientUpstream("order items lookup failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if withProducts {
			var p Product
			var specJSON []byte
			if err := rows.Scan(&item.OrderID, &item.SKU, &item.Quantity, &item.UnitPrice,
				&p.SKU, &p.Name, &p.Description, &p.Brand, &p.Price, &p.CategoryID, &specJSON, pq.Array(&p.ImageURLs)); err != nil {
				return nil, apperr.TransientUpstream("order items lookup failed", err)
			}
			p.Specifications = map[string]string{}
			if len(specJSON) > 0 {
				_ = json.Unmarshal(specJSON, &p.Specifications)
			}
			item.Product = &p
		} else if err := rows.Scan(&item.OrderID, &item.SKU, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, apperr.TransientUpstream("order items lookup failed", err)
		}
		o.Items = append(o.Items, item)
	}
	return &o, rows.Err()
}

func (s *PostgresStore) GetRecentOrdersByClient(ctx context.Context, clientID string, limit int) (out []Order, err error) {
	defer recordQuery("get_recent_orders_by_client", time.Now(), &err)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, chat_id, customer_name, customer_email, address, total_amount, status, invoice_url, created_at, updated_at
		FROM orders WHERE client_id = $1 ORDER BY created_at DESC LIMIT $2`, clientID, limit)
	if err != nil {
		return nil, apperr.TransientUpstream("order lookup failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o Order
		var cid sql.NullString
		if err := rows.Scan(&o.ID, &cid, &o.ChatID, &o.CustomerName, &o.CustomerEmail, &o.Address, &o.TotalAmount,
			&o.Status, &o.InvoiceURL, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, apperr.TransientUpstream("order lookup failed", err)
		}
		o.ClientID = cid.String
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetOrderInvoiceURL(ctx context.Context, orderID, url string) (err error) {
	defer recordQuery("set_order_invoice_url", time.Now(), &err)
	_, err = s.db.ExecContext(ctx, `UPDATE orders SET invoice_url = $1, updated_at = $2 WHERE id = $3`, url, time.Now(), orderID)
	if err != nil {
		return apperr.TransientUpstream("could not record invoice url", err)
	}
	return nil
}
