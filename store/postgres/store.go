package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/till"
	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	tillstore "github.com/xraph/till/store"
)

// compile-time interface checks
var (
	_ tillstore.Store    = (*Store)(nil)
	_ cart.SnapshotStore = (*Store)(nil)
)

// Store implements store.Store using PostgreSQL via Grove ORM.
//
// Each atomic unit is a single statement built from data-modifying CTEs, so
// the bill row and the customer aggregates commit or roll back together
// without an explicit transaction.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("till/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("till/postgres: %w: %w", till.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", till.ErrStoreNotReady, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Customer Store ====================

func (s *Store) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	m := toCustomerModel(c)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if isUniqueViolation(err) {
		return till.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	m := new(customerModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", customerID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, till.ErrCustomerNotFound
		}
		return nil, err
	}
	return fromCustomerModel(m)
}

func (s *Store) ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	var models []customerModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Members {
		q = q.Where("is_member = TRUE")
	}
	if opts.Search != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d OR email ILIKE $%d)", argIdx, argIdx, argIdx),
			"%"+escapeLike(opts.Search)+"%")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("lower(name) ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*customer.Customer, len(models))
	for i := range models {
		c, err := fromCustomerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

// UpdateCustomer writes profile and membership fields. Points, spend and
// play time are owned by the bill commits and left alone.
func (s *Store) UpdateCustomer(ctx context.Context, c *customer.Customer) error {
	m := toCustomerModel(c)
	res, err := s.pg.NewUpdate((*customerModel)(nil)).
		Set("name = $1", m.Name).
		Set("phone = $2", m.Phone).
		Set("email = $3", m.Email).
		Set("is_member = $4", m.IsMember).
		Set("membership_plan = $5", m.MembershipPlan).
		Set("membership_expires_at = $6", m.MembershipExpiresAt).
		Set("membership_hours_left = $7", m.MembershipHoursLeft).
		Set("metadata = $8", m.Metadata).
		Set("updated_at = $9", now()).
		Where("id = $10", m.ID).
		Exec(ctx)
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
	m := new(billModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", billID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, till.ErrBillNotFound
		}
		return nil, err
	}
	return fromBillModel(m)
}

func (s *Store) ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	var models []billModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.CustomerID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("customer_id = $%d", argIdx), opts.CustomerID.String())
	}
	if !opts.Since.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), opts.Since)
	}
	if !opts.Until.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at < $%d", argIdx), opts.Until)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*bill.Bill, len(models))
	for i := range models {
		b, err := fromBillModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

// ==================== Atomic units ====================

const commitSaleSQL = `
WITH b AS (
    INSERT INTO till_bills (id, customer_id, terminal_id, total, revision, document, created_at, updated_at)
    SELECT $1, $2, $3, $4, $5, $6::jsonb, $7, $8
    WHERE EXISTS (SELECT 1 FROM till_customers WHERE id = $2)
    ON CONFLICT (id) DO NOTHING
    RETURNING customer_id
), c AS (
    UPDATE till_customers SET
        loyalty_points        = till_customers.loyalty_points + $9,
        total_spent           = till_customers.total_spent + $10,
        total_play_minutes    = till_customers.total_play_minutes + $11,
        membership_hours_left = till_customers.membership_hours_left + $12::numeric,
        updated_at            = $8
    FROM b
    WHERE till_customers.id = b.customer_id
    RETURNING till_customers.id
)
SELECT COUNT(*) FROM c`

func (s *Store) CommitSale(ctx context.Context, b *bill.Bill, d customer.Delta) error {
	m, err := toBillModel(b)
	if err != nil {
		return err
	}

	var applied int64
	err = s.pg.NewRaw(commitSaleSQL,
		m.ID, m.CustomerID, m.TerminalID, m.Total, m.Revision, string(m.Document), m.CreatedAt, m.UpdatedAt,
		d.LoyaltyPoints, d.TotalSpent.Int64(), d.PlayMinutes, d.MembershipHours.String(),
	).Scan(ctx, &applied)
	if err != nil {
		return fmt.Errorf("%w: %w", till.ErrTransactionFailed, err)
	}
	if applied == 1 {
		return nil
	}

	// Nothing was written: either the bill exists or the customer does not.
	if _, err := s.GetBill(ctx, b.ID); err == nil {
		return till.ErrAlreadyExists
	}
	return till.ErrCustomerNotFound
}

const reviseBillSQL = `
WITH adj AS (
    SELECT * FROM jsonb_to_recordset($1::jsonb) AS x(
        customer_id TEXT, loyalty_points BIGINT, total_spent BIGINT, play_minutes BIGINT, membership_hours NUMERIC)
), b AS (
    UPDATE till_bills SET
        customer_id = $3,
        terminal_id = $4,
        total       = $5,
        revision    = $6,
        document    = $7::jsonb,
        updated_at  = $8
    WHERE id = $2 AND revision = $9
      AND (SELECT COUNT(*) FROM till_customers WHERE id IN (SELECT customer_id FROM adj))
        = (SELECT COUNT(DISTINCT customer_id) FROM adj)
    RETURNING id
), c AS (
    UPDATE till_customers SET
        loyalty_points        = till_customers.loyalty_points + adj.loyalty_points,
        total_spent           = till_customers.total_spent + adj.total_spent,
        total_play_minutes    = till_customers.total_play_minutes + adj.play_minutes,
        membership_hours_left = till_customers.membership_hours_left + adj.membership_hours,
        updated_at            = $8
    FROM adj, b
    WHERE till_customers.id = adj.customer_id
    RETURNING till_customers.id
)
SELECT COUNT(*) FROM b`

func (s *Store) ReviseBill(ctx context.Context, prev, next *bill.Bill, adjustments []customer.Adjustment) error {
	m, err := toBillModel(next)
	if err != nil {
		return err
	}
	adj, err := adjustmentRows(adjustments)
	if err != nil {
		return err
	}

	var applied int64
	err = s.pg.NewRaw(reviseBillSQL,
		adj, prev.ID.String(), m.CustomerID, m.TerminalID, m.Total, m.Revision, string(m.Document), m.UpdatedAt,
		prev.Revision,
	).Scan(ctx, &applied)
	if err != nil {
		return fmt.Errorf("%w: %w", till.ErrTransactionFailed, err)
	}
	if applied == 1 {
		return nil
	}

	stored, err := s.GetBill(ctx, prev.ID)
	if err != nil {
		return err
	}
	if stored.Revision != prev.Revision {
		return till.ErrBillMismatch
	}
	return till.ErrCustomerNotFound
}

const deleteBillSQL = `
WITH d AS (
    DELETE FROM till_bills WHERE id = $1 AND revision = $2
    RETURNING customer_id
), c AS (
    UPDATE till_customers SET
        loyalty_points        = till_customers.loyalty_points + $3,
        total_spent           = till_customers.total_spent + $4,
        total_play_minutes    = till_customers.total_play_minutes + $5,
        membership_hours_left = till_customers.membership_hours_left + $6::numeric,
        updated_at            = $7
    FROM d
    WHERE till_customers.id = d.customer_id
    RETURNING till_customers.id
)
SELECT COUNT(*) FROM d`

func (s *Store) DeleteBill(ctx context.Context, b *bill.Bill, d customer.Delta) error {
	var applied int64
	err := s.pg.NewRaw(deleteBillSQL,
		b.ID.String(), b.Revision,
		d.LoyaltyPoints, d.TotalSpent.Int64(), d.PlayMinutes, d.MembershipHours.String(), now(),
	).Scan(ctx, &applied)
	if err != nil {
		return fmt.Errorf("%w: %w", till.ErrTransactionFailed, err)
	}
	if applied == 1 {
		return nil
	}

	if _, err := s.GetBill(ctx, b.ID); err != nil {
		return err
	}
	return till.ErrBillMismatch
}

// ==================== Cart snapshots ====================

func (s *Store) SaveCart(ctx context.Context, c *cart.Cart) error {
	m, err := toCartModel(c)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).
		OnConflict("(terminal_id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) LoadCart(ctx context.Context, terminalID string) (*cart.Cart, error) {
	m := new(cartModel)
	err := s.pg.NewSelect(m).
		Where("terminal_id = $1", terminalID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, cart.ErrNoSnapshot
		}
		return nil, err
	}
	return fromCartModel(m)
}

func (s *Store) DeleteCart(ctx context.Context, terminalID string) error {
	_, err := s.pg.NewDelete((*cartModel)(nil)).
		Where("terminal_id = $1", terminalID).
		Exec(ctx)
	return err
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
