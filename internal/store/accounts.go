package store

import (
	"context"
	"database/sql"
	"fmt"

	"beantrack/internal/model"
)

// GetAccount returns a principal's settlement account. A principal without
// an account row has a zero balance.
func GetAccount(ctx context.Context, db *sql.DB, principal string) (*model.Account, error) {
	acct := &model.Account{Principal: principal}
	err := db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE principal = ?`, principal,
	).Scan(&acct.Balance)
	if err == sql.ErrNoRows {
		return acct, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return acct, nil
}

// Deposit adds funds to a principal's account, creating it if needed.
func Deposit(ctx context.Context, db *sql.DB, principal string, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (principal, balance) VALUES (?, ?)
		 ON CONFLICT (principal) DO UPDATE SET balance = balance + ?`,
		principal, amount, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("depositing: %w", err)
	}
	return GetAccount(ctx, db, principal)
}
