package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/purlock/purlock/internal/engine"
	"github.com/purlock/purlock/internal/models"
)

const pgUniqueViolation = "23505"

const activationColumns = `
	id, license_id, COALESCE(device_id, ''), COALESCE(network_address, ''),
	active, activated_at, updated_at
`

func scanActivation(row pgx.Row) (*models.Activation, error) {
	var act models.Activation
	err := row.Scan(
		&act.ID, &act.LicenseID, &act.DeviceID, &act.NetworkAddress,
		&act.Active, &act.ActivatedAt, &act.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &act, nil
}

// FindActiveByLicense returns the active activation for a license, or
// (nil, nil) if none exists.
func (db *DB) FindActiveByLicense(ctx context.Context, licenseID uuid.UUID) (*models.Activation, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+activationColumns+`
		FROM activations
		WHERE license_id = $1 AND active
		ORDER BY activated_at
		LIMIT 1
	`, licenseID)

	act, err := scanActivation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active activation: %w", err)
	}
	return act, nil
}

// ListActiveByLicense returns every active activation for a license. Under
// the uniq_active_activation constraint there is at most one, but callers
// repairing invariant drift need the full set.
func (db *DB) ListActiveByLicense(ctx context.Context, licenseID uuid.UUID) ([]*models.Activation, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+activationColumns+`
		FROM activations
		WHERE license_id = $1 AND active
		ORDER BY activated_at
	`, licenseID)
	if err != nil {
		return nil, fmt.Errorf("list active activations: %w", err)
	}
	defer rows.Close()

	var acts []*models.Activation
	for rows.Next() {
		act, err := scanActivation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		acts = append(acts, act)
	}
	return acts, rows.Err()
}

// Create inserts a new activation. A unique violation on the partial index
// means another active activation won a race for this license; that is
// surfaced as engine.ErrActiveActivationExists.
func (db *DB) Create(ctx context.Context, act *models.Activation) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO activations (id, license_id, device_id, network_address, active, activated_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)
	`, act.ID, act.LicenseID, act.DeviceID, act.NetworkAddress, act.Active, act.ActivatedAt, act.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "uniq_active_activation" {
			return engine.ErrActiveActivationExists
		}
		return fmt.Errorf("create activation: %w", err)
	}
	return nil
}

// Deactivate clears the active flag on an activation.
func (db *DB) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE activations SET active = FALSE, updated_at = $2
		WHERE id = $1
	`, id, at)

	if err != nil {
		return fmt.Errorf("deactivate activation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deactivate activation: no activation %s", id)
	}
	return nil
}

// CountActiveByLicense returns the number of active activations.
func (db *DB) CountActiveByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM activations WHERE license_id = $1 AND active
	`, licenseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active activations: %w", err)
	}
	return n, nil
}
