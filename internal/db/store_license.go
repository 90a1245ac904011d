package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/purlock/purlock/internal/models"
)

// FindByPurchaseCode returns the license for a purchase code, or (nil, nil)
// if none exists.
func (db *DB) FindByPurchaseCode(ctx context.Context, purchaseCode string) (*models.License, error) {
	var lic models.License
	var mode string

	err := db.Pool.QueryRow(ctx, `
		SELECT id, purchase_code, item_id, mode, active, created_at, updated_at
		FROM licenses
		WHERE purchase_code = $1
	`, purchaseCode).Scan(
		&lic.ID, &lic.PurchaseCode, &lic.ItemID, &mode, &lic.Active, &lic.CreatedAt, &lic.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find license by purchase code: %w", err)
	}

	lic.Mode = models.BindingMode(mode)
	return &lic, nil
}

// Upsert inserts a license or, when the purchase code already exists,
// reconciles item id, mode, and update time in place. The purchase code and
// creation time are immutable across the conflict path. The surviving row's
// id is written back into lic, so a caller that lost a concurrent insert
// continues with the id that actually exists.
func (db *DB) Upsert(ctx context.Context, lic *models.License) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO licenses (id, purchase_code, item_id, mode, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (purchase_code)
		DO UPDATE SET item_id = $3, mode = $4, updated_at = $7
		RETURNING id
	`, lic.ID, lic.PurchaseCode, lic.ItemID, string(lic.Mode), lic.Active, lic.CreatedAt, lic.UpdatedAt).Scan(&lic.ID)

	if err != nil {
		return fmt.Errorf("upsert license: %w", err)
	}
	return nil
}

// SetLicenseActive flips the administrative active flag on a license.
func (db *DB) SetLicenseActive(ctx context.Context, purchaseCode string, active bool) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE licenses SET active = $2, updated_at = NOW()
		WHERE purchase_code = $1
	`, purchaseCode, active)

	if err != nil {
		return fmt.Errorf("set license active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set license active: no license for purchase code")
	}
	return nil
}
