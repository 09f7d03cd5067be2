package store

import (
	"context"
	"database/sql"
	"fmt"

	"beantrack/internal/model"
)

// GrantRole adds a role to a principal. Granting an already-held role is a
// no-op. There is deliberately no revoke counterpart; the observed system
// only ever grants.
func GrantRole(ctx context.Context, db *sql.DB, principal, role string) error {
	if !model.ValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO roles (principal, role) VALUES (?, ?)
		 ON CONFLICT (principal, role) DO NOTHING`,
		principal, role,
	)
	if err != nil {
		return fmt.Errorf("granting role: %w", err)
	}
	return nil
}

// HasRole reports whether the principal holds the role.
func HasRole(ctx context.Context, db *sql.DB, principal, role string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		`SELECT 1 FROM roles WHERE principal = ? AND role = ?`,
		principal, role,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking role: %w", err)
	}
	return true, nil
}

// ListRoles returns all roles held by a principal.
func ListRoles(ctx context.Context, db *sql.DB, principal string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT role FROM roles WHERE principal = ? ORDER BY role`,
		principal,
	)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
