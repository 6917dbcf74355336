// internal/store/promo/promo.go
package promo

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Code is one single-use promotional code row.
type Code struct {
	Code          string
	EntitlementID string
	DurationDays  int
	DurationUnit  string
	RedeemedBy    sql.NullString
	ExpiresAt     sql.NullTime
}

// Redeemed reports whether the code has already been used.
func (c *Code) Redeemed() bool {
	return c.RedeemedBy.Valid
}

// Expired reports whether the code is past its expiry, if it has one.
func (c *Code) Expired(now time.Time) bool {
	return c.ExpiresAt.Valid && now.After(c.ExpiresAt.Time)
}

// Store holds promotional codes in Postgres.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Lookup returns the code row, or nil when the code does not exist.
func (s *Store) Lookup(ctx context.Context, code string) (*Code, error) {
	var c Code
	err := s.db.QueryRowContext(ctx,
		`SELECT code, entitlement_id, duration_days, duration_unit, redeemed_by, expires_at
		 FROM promo_codes WHERE code = $1`, code,
	).Scan(&c.Code, &c.EntitlementID, &c.DurationDays, &c.DurationUnit, &c.RedeemedBy, &c.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("promo lookup: %w", err)
	}
	return &c, nil
}

// MarkRedeemed claims the code for the user. The IS NULL guard makes the
// claim single-winner under concurrent redemptions; false means someone
// else got there first.
func (s *Store) MarkRedeemed(ctx context.Context, code, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE promo_codes SET redeemed_by = $2, redeemed_at = NOW()
		 WHERE code = $1 AND redeemed_by IS NULL`,
		code, userID,
	)
	if err != nil {
		return false, fmt.Errorf("promo redeem: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("promo redeem result: %w", err)
	}
	return affected == 1, nil
}
