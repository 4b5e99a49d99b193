// Package sqlite is a single-file store for one-till clubs. It runs on the
// pure-Go modernc driver, so the binary needs no cgo.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/xraph/till"
	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	tillstore "github.com/xraph/till/store"
	"github.com/xraph/till/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// compile-time interface checks
var (
	_ tillstore.Store    = (*Store)(nil)
	_ cart.SnapshotStore = (*Store)(nil)
)

// Store implements store.Store on SQLite. Atomic units run in a database/sql
// transaction over a single connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn. Use ":memory:" for a
// throwaway database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("till/sqlite: open: %w", err)
	}
	// SQLite has one writer; a single connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("till/sqlite: %w: %w", till.ErrStoreNotReady, err)
	}
	return &Store{db: db}, nil
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies the embedded migrations.
func (s *Store) Migrate(_ context.Context) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("till/sqlite: %w: open migrations: %w", till.ErrMigrationFailed, err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("till/sqlite: %w: migration driver: %w", till.ErrMigrationFailed, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("till/sqlite: %w: %w", till.ErrMigrationFailed, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("till/sqlite: %w: %w", till.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Customer Store ====================

const customerColumns = `id, name, phone, email, loyalty_points, total_spent, total_play_minutes,
	is_member, membership_plan, membership_expires_at, membership_hours_left, metadata, created_at, updated_at`

func (s *Store) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO till_customers (id, name, name_lower, phone, email, loyalty_points, total_spent,
			total_play_minutes, is_member, membership_plan, membership_expires_at, membership_hours_left,
			metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Name, strings.ToLower(c.Name), c.Phone, c.Email,
		c.LoyaltyPoints, c.TotalSpent.Int64(), c.TotalPlayMinutes,
		c.IsMember, c.MembershipPlan, nanosPtr(c.MembershipExpiresAt), c.MembershipHoursLeft.String(),
		string(meta), c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano(),
	)
	if isConstraint(err) {
		return till.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	return getCustomer(ctx, s.db, customerID.String())
}

func (s *Store) ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	var (
		where []string
		args  []any
	)
	if opts.Members {
		where = append(where, "is_member = 1")
	}
	if opts.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(opts.Search)) + "%"
		where = append(where, `(name_lower LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\' OR lower(email) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	q := "SELECT " + customerColumns + " FROM till_customers"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY name_lower ASC" + limitOffset(opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("till/sqlite: list customers: %w", err)
	}
	defer rows.Close()

	result := make([]*customer.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// UpdateCustomer writes profile and membership fields; aggregates are left alone.
func (s *Store) UpdateCustomer(ctx context.Context, c *customer.Customer) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE till_customers SET
			name = ?, name_lower = ?, phone = ?, email = ?, is_member = ?, membership_plan = ?,
			membership_expires_at = ?, membership_hours_left = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, strings.ToLower(c.Name), c.Phone, c.Email, c.IsMember, c.MembershipPlan,
		nanosPtr(c.MembershipExpiresAt), c.MembershipHoursLeft.String(), string(meta), now().UnixNano(),
		c.ID.String(),
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return till.ErrCustomerNotFound
	}
	return nil
}

// ==================== Bill Store ====================

func (s *Store) GetBill(ctx context.Context, billID id.BillID) (*bill.Bill, error) {
	return getBill(ctx, s.db, billID.String())
}

func (s *Store) ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	var (
		where []string
		args  []any
	)
	if !opts.CustomerID.IsNil() {
		where = append(where, "customer_id = ?")
		args = append(args, opts.CustomerID.String())
	}
	if !opts.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}
	if !opts.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, opts.Until.UnixNano())
	}

	q := "SELECT revision, document, created_at, updated_at FROM till_bills"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC" + limitOffset(opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("till/sqlite: list bills: %w", err)
	}
	defer rows.Close()

	result := make([]*bill.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// ==================== Atomic units ====================

func (s *Store) CommitSale(ctx context.Context, b *bill.Bill, d customer.Delta) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO till_bills (id, customer_id, terminal_id, total, revision, document, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID.String(), b.CustomerID.String(), b.TerminalID, b.Total.Int64(), b.Revision,
			string(doc), b.CreatedAt.UnixNano(), b.UpdatedAt.UnixNano(),
		)
		if isConstraint(err) {
			return till.ErrAlreadyExists
		}
		if err != nil {
			return err
		}
		return applyDelta(ctx, tx, b.CustomerID.String(), d)
	})
}

func (s *Store) ReviseBill(ctx context.Context, prev, next *bill.Bill, adjustments []customer.Adjustment) error {
	doc, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE till_bills SET customer_id = ?, terminal_id = ?, total = ?, revision = ?, document = ?, updated_at = ?
			WHERE id = ? AND revision = ?`,
			next.CustomerID.String(), next.TerminalID, next.Total.Int64(), next.Revision, string(doc),
			next.UpdatedAt.UnixNano(), prev.ID.String(), prev.Revision,
		)
		if err != nil {
			return err
		}
		if err := guard(ctx, tx, res, prev.ID.String()); err != nil {
			return err
		}
		for _, adj := range adjustments {
			if err := applyDelta(ctx, tx, adj.CustomerID.String(), adj.Delta); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteBill(ctx context.Context, b *bill.Bill, d customer.Delta) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM till_bills WHERE id = ? AND revision = ?`,
			b.ID.String(), b.Revision)
		if err != nil {
			return err
		}
		if err := guard(ctx, tx, res, b.ID.String()); err != nil {
			return err
		}
		// A bill whose customer has gone keeps nothing to reverse.
		err = applyDelta(ctx, tx, b.CustomerID.String(), d)
		if errors.Is(err, till.ErrCustomerNotFound) {
			return nil
		}
		return err
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("till/sqlite: %w: begin: %w", till.ErrTransactionFailed, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("till/sqlite: %w: commit: %w", till.ErrTransactionFailed, err)
	}
	return nil
}

// applyDelta reads the customer inside tx and writes the adjusted
// aggregates back. Hours are decimal strings, so the sum is done here
// rather than in SQL.
func applyDelta(ctx context.Context, tx *sql.Tx, customerID string, d customer.Delta) error {
	c, err := getCustomer(ctx, tx, customerID)
	if err != nil {
		return err
	}
	c.Apply(d)
	_, err = tx.ExecContext(ctx, `
		UPDATE till_customers SET loyalty_points = ?, total_spent = ?, total_play_minutes = ?,
			membership_hours_left = ?, updated_at = ?
		WHERE id = ?`,
		c.LoyaltyPoints, c.TotalSpent.Int64(), c.TotalPlayMinutes, c.MembershipHoursLeft.String(),
		now().UnixNano(), customerID,
	)
	return err
}

// guard explains a revision-guarded write that touched no row.
func guard(ctx context.Context, tx *sql.Tx, res sql.Result, billID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := getBill(ctx, tx, billID); err != nil {
		return err
	}
	return till.ErrBillMismatch
}

// ==================== Cart snapshots ====================

func (s *Store) SaveCart(ctx context.Context, c *cart.Cart) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO till_carts (terminal_id, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (terminal_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		c.TerminalID, string(doc), now().UnixNano(),
	)
	return err
}

func (s *Store) LoadCart(ctx context.Context, terminalID string) (*cart.Cart, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM till_carts WHERE terminal_id = ?`, terminalID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cart.ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	var c cart.Cart
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, fmt.Errorf("till/sqlite: unmarshal cart %s: %w", terminalID, err)
	}
	return &c, nil
}

func (s *Store) DeleteCart(ctx context.Context, terminalID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM till_carts WHERE terminal_id = ?`, terminalID)
	return err
}

// ==================== Helpers ====================

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getCustomer(ctx context.Context, q querier, customerID string) (*customer.Customer, error) {
	row := q.QueryRowContext(ctx, "SELECT "+customerColumns+" FROM till_customers WHERE id = ?", customerID)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, till.ErrCustomerNotFound
	}
	return c, err
}

func scanCustomer(row scanner) (*customer.Customer, error) {
	var (
		rawID, hours, meta   string
		spent                int64
		expires              sql.NullInt64
		createdAt, updatedAt int64
		c                    customer.Customer
	)
	err := row.Scan(&rawID, &c.Name, &c.Phone, &c.Email, &c.LoyaltyPoints, &spent, &c.TotalPlayMinutes,
		&c.IsMember, &c.MembershipPlan, &expires, &hours, &meta, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if c.ID, err = id.ParseCustomerID(rawID); err != nil {
		return nil, err
	}
	if c.MembershipHoursLeft, err = decimal.NewFromString(hours); err != nil {
		return nil, fmt.Errorf("till/sqlite: customer %s hours: %w", rawID, err)
	}
	if meta != "" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("till/sqlite: customer %s metadata: %w", rawID, err)
		}
	}
	if expires.Valid {
		t := time.Unix(0, expires.Int64).UTC()
		c.MembershipExpiresAt = &t
	}
	c.TotalSpent = types.Money(spent)
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	c.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &c, nil
}

func getBill(ctx context.Context, q querier, billID string) (*bill.Bill, error) {
	row := q.QueryRowContext(ctx,
		`SELECT revision, document, created_at, updated_at FROM till_bills WHERE id = ?`, billID)
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, till.ErrBillNotFound
	}
	return b, err
}

func scanBill(row scanner) (*bill.Bill, error) {
	var (
		revision             int
		doc                  string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&revision, &doc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var b bill.Bill
	if err := json.Unmarshal([]byte(doc), &b); err != nil {
		return nil, fmt.Errorf("till/sqlite: unmarshal bill: %w", err)
	}
	b.Revision = revision
	b.CreatedAt = time.Unix(0, createdAt).UTC()
	b.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &b, nil
}

func limitOffset(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}
	return ""
}

func nanosPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func isConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func now() time.Time {
	return time.Now().UTC()
}
