// internal/store/wallet/wallet.go
package wallet

import (
	"context"
	"database/sql"
	"fmt"
)

// Store holds in-app coin balances in Postgres. The debit is a single
// guarded UPDATE so two concurrent spends can never take the balance below
// zero.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ReadBalance returns the current coin balance. A user without a wallet row
// has a balance of zero.
func (s *Store) ReadBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = $1`, userID,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("wallet read: %w", err)
	}
	return balance, nil
}

// ConditionalDebit decrements the balance by amount only if the balance
// still covers it at commit time. Returns false when the guard fails.
func (s *Store) ConditionalDebit(ctx context.Context, userID string, amount int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE wallets SET balance = balance - $2, updated_at = NOW()
		 WHERE user_id = $1 AND balance >= $2`,
		userID, amount,
	)
	if err != nil {
		return false, fmt.Errorf("wallet debit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("wallet debit result: %w", err)
	}
	return affected == 1, nil
}

// Credit adds coins to the wallet, creating the row on first use.
func (s *Store) Credit(ctx context.Context, userID string, amount int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("wallet credit: %w", err)
	}
	return nil
}
