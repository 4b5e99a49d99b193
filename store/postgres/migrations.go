package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the till store.
var Migrations = migrate.NewGroup("till")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_till_customers",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS till_customers (
    id                    TEXT PRIMARY KEY,
    name                  TEXT NOT NULL DEFAULT '',
    phone                 TEXT NOT NULL DEFAULT '',
    email                 TEXT NOT NULL DEFAULT '',
    loyalty_points        BIGINT NOT NULL DEFAULT 0,
    total_spent           BIGINT NOT NULL DEFAULT 0,
    total_play_minutes    BIGINT NOT NULL DEFAULT 0,
    is_member             BOOLEAN NOT NULL DEFAULT FALSE,
    membership_plan       TEXT NOT NULL DEFAULT '',
    membership_expires_at TIMESTAMPTZ,
    membership_hours_left NUMERIC(12,2) NOT NULL DEFAULT 0,
    metadata              JSONB NOT NULL DEFAULT '{}',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_till_customers_name ON till_customers (lower(name));
CREATE INDEX IF NOT EXISTS idx_till_customers_phone ON till_customers (phone);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS till_customers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_till_bills",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS till_bills (
    id          TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL REFERENCES till_customers (id),
    terminal_id TEXT NOT NULL DEFAULT '',
    total       BIGINT NOT NULL DEFAULT 0,
    revision    INT NOT NULL DEFAULT 0,
    document    JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_till_bills_customer ON till_bills (customer_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_till_bills_created ON till_bills (created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS till_bills`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_till_carts",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS till_carts (
    terminal_id TEXT PRIMARY KEY,
    document    JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS till_carts`)
				return err
			},
		},
	)
}
