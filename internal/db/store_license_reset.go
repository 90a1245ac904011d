package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/purlock/purlock/internal/models"
)

// Append inserts a license reset audit record. Rows are append-only.
func (db *DB) Append(ctx context.Context, reset *models.LicenseReset) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO license_resets (id, license_id, user_id, reason, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`, reset.ID, reset.LicenseID, reset.UserID, reset.Reason, reset.CreatedAt)

	if err != nil {
		return fmt.Errorf("append license reset: %w", err)
	}
	return nil
}

// ListResetsByLicense returns the reset history for a license, newest first.
func (db *DB) ListResetsByLicense(ctx context.Context, licenseID uuid.UUID) ([]*models.LicenseReset, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, license_id, user_id, COALESCE(reason, ''), created_at
		FROM license_resets
		WHERE license_id = $1
		ORDER BY created_at DESC
	`, licenseID)
	if err != nil {
		return nil, fmt.Errorf("list license resets: %w", err)
	}
	defer rows.Close()

	var resets []*models.LicenseReset
	for rows.Next() {
		var r models.LicenseReset
		if err := rows.Scan(&r.ID, &r.LicenseID, &r.UserID, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan license reset: %w", err)
		}
		resets = append(resets, &r)
	}
	return resets, rows.Err()
}
