package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/till"
	"github.com/xraph/till/bill"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	tillstore "github.com/xraph/till/store"
)

// Collection name constants.
const (
	colCustomers = "till_customers"
	colBills     = "till_bills"
)

// compile-time interface check
var _ tillstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Reads and profile writes go through grove. The bill commits run inside a
// driver session transaction, so the server must be a replica set or a
// sharded cluster.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all till collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("till/mongo: %w: %s indexes: %w", till.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Customer Store ====================

func (s *Store) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	m, err := toCustomerModel(c)
	if err != nil {
		return err
	}
	_, err = s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return till.ErrAlreadyExists
		}
		return fmt.Errorf("till/mongo: create customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	var m customerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": customerID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, till.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("till/mongo: get customer: %w", err)
	}
	return fromCustomerModel(&m)
}

func (s *Store) ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	var models []customerModel

	filter := bson.M{}
	if opts.Members {
		filter["is_member"] = true
	}
	if opts.Search != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(opts.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"phone": pattern},
			bson.M{"email": pattern},
		}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "name", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("till/mongo: list customers: %w", err)
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

// UpdateCustomer writes profile and membership fields; aggregates are left alone.
func (s *Store) UpdateCustomer(ctx context.Context, c *customer.Customer) error {
	m, err := toCustomerModel(c)
	if err != nil {
		return err
	}
	res, err := s.mdb.NewUpdate((*customerModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("name", m.Name).
		Set("phone", m.Phone).
		Set("email", m.Email).
		Set("is_member", m.IsMember).
		Set("membership_plan", m.MembershipPlan).
		Set("membership_expires_at", m.MembershipExpiresAt).
		Set("membership_hours_left", m.MembershipHoursLeft).
		Set("metadata", m.Metadata).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("till/mongo: update customer: %w", err)
	}
	if res.MatchedCount() == 0 {
		return till.ErrCustomerNotFound
	}
	return nil
}

// ==================== Bill Store ====================

func (s *Store) GetBill(ctx context.Context, billID id.BillID) (*bill.Bill, error) {
	var m billModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": billID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, till.ErrBillNotFound
		}
		return nil, fmt.Errorf("till/mongo: get bill: %w", err)
	}
	return fromBillModel(&m)
}

func (s *Store) ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	var models []billModel

	filter := bson.M{}
	if !opts.CustomerID.IsNil() {
		filter["customer_id"] = opts.CustomerID.String()
	}
	if !opts.Since.IsZero() || !opts.Until.IsZero() {
		created := bson.M{}
		if !opts.Since.IsZero() {
			created["$gte"] = opts.Since
		}
		if !opts.Until.IsZero() {
			created["$lt"] = opts.Until
		}
		filter["created_at"] = created
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("till/mongo: list bills: %w", err)
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

func (s *Store) CommitSale(ctx context.Context, b *bill.Bill, d customer.Delta) error {
	m, err := toBillModel(b)
	if err != nil {
		return err
	}
	inc, err := incUpdate(d, now())
	if err != nil {
		return err
	}

	return s.inTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.bills().InsertOne(ctx, m); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return till.ErrAlreadyExists
			}
			return err
		}
		return s.applyDelta(ctx, m.CustomerID, inc)
	})
}

func (s *Store) ReviseBill(ctx context.Context, prev, next *bill.Bill, adjustments []customer.Adjustment) error {
	m, err := toBillModel(next)
	if err != nil {
		return err
	}
	incs := make([]bson.M, len(adjustments))
	at := now()
	for i, adj := range adjustments {
		if incs[i], err = incUpdate(adj.Delta, at); err != nil {
			return err
		}
	}

	return s.inTransaction(ctx, func(ctx context.Context) error {
		res, err := s.bills().ReplaceOne(ctx,
			bson.M{"_id": prev.ID.String(), "revision": prev.Revision}, m)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return s.guardFailure(ctx, prev.ID)
		}
		for i, adj := range adjustments {
			if err := s.applyDelta(ctx, adj.CustomerID.String(), incs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteBill(ctx context.Context, b *bill.Bill, d customer.Delta) error {
	inc, err := incUpdate(d, now())
	if err != nil {
		return err
	}

	return s.inTransaction(ctx, func(ctx context.Context) error {
		res, err := s.bills().DeleteOne(ctx, bson.M{"_id": b.ID.String(), "revision": b.Revision})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return s.guardFailure(ctx, b.ID)
		}
		// A bill whose customer has gone keeps nothing to reverse.
		err = s.applyDelta(ctx, b.CustomerID.String(), inc)
		if errors.Is(err, till.ErrCustomerNotFound) {
			return nil
		}
		return err
	})
}

// inTransaction runs fn in a session transaction. Domain errors pass
// through unchanged; anything else is reported as ErrTransactionFailed.
func (s *Store) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	client := s.bills().Database().Client()
	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("till/mongo: %w: start session: %w", till.ErrTransactionFailed, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, till.ErrAlreadyExists) ||
		errors.Is(err, till.ErrCustomerNotFound) ||
		errors.Is(err, till.ErrBillNotFound) ||
		errors.Is(err, till.ErrBillMismatch) {
		return err
	}
	return fmt.Errorf("till/mongo: %w: %w", till.ErrTransactionFailed, err)
}

func (s *Store) applyDelta(ctx context.Context, customerID string, inc bson.M) error {
	res, err := s.customers().UpdateOne(ctx, bson.M{"_id": customerID}, inc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return till.ErrCustomerNotFound
	}
	return nil
}

// guardFailure explains why a revision-guarded write matched nothing.
func (s *Store) guardFailure(ctx context.Context, billID id.BillID) error {
	err := s.bills().FindOne(ctx, bson.M{"_id": billID.String()}).Err()
	if isNoDocuments(err) {
		return till.ErrBillNotFound
	}
	if err != nil {
		return err
	}
	return till.ErrBillMismatch
}

func (s *Store) bills() *mongo.Collection     { return s.mdb.Collection(colBills) }
func (s *Store) customers() *mongo.Collection { return s.mdb.Collection(colCustomers) }

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all till collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colCustomers: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
			{Keys: bson.D{{Key: "phone", Value: 1}}},
			{Keys: bson.D{{Key: "is_member", Value: 1}, {Key: "name", Value: 1}}},
		},
		colBills: {
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "terminal_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetSparse(true),
			},
		},
	}
}
