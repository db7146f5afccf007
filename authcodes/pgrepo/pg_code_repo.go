// Package pgrepo stores authorization codes in Postgres.
package pgrepo

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrsteele09/go-authenticator/authcodes"
	"github.com/jrsteele09/go-authenticator/internal/postgres"
)

var _ authcodes.Repo = (*PGCodeRepo)(nil)

type PGCodeRepo struct {
	db postgres.Querier
}

func New(db postgres.Querier) *PGCodeRepo {
	return &PGCodeRepo{db: db}
}

func (r *PGCodeRepo) Insert(ctx context.Context, c *authcodes.AuthorizationCode) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO authorization_codes
		    (tenant_id, code, client_id, client_key, redirect_url, username, create_time, expiry_time, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)`,
		c.TenantID, c.Code, c.ClientID, c.ClientKey, c.RedirectURL, c.Username, c.CreateTime, c.ExpiryTime,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == postgres.UniqueViolation {
			return authcodes.ErrCodeExists
		}
		return fmt.Errorf("[PGCodeRepo.Insert] %w", err)
	}
	return nil
}

// Consume relies on the row lock taken by the conditional UPDATE: of several
// concurrent redemptions only one sees consumed = FALSE.
func (r *PGCodeRepo) Consume(ctx context.Context, tenantID, code, clientID, clientKey string, now time.Time) (*authcodes.AuthorizationCode, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE authorization_codes
		   SET consumed = TRUE
		 WHERE tenant_id = $1
		   AND code = $2
		   AND client_id = $3
		   AND client_key = $4
		   AND consumed = FALSE
		   AND expiry_time > $5
		RETURNING tenant_id, code, client_id, client_key, redirect_url, username, create_time, expiry_time, consumed`,
		tenantID, code, clientID, clientKey, now,
	)

	var c authcodes.AuthorizationCode
	err := row.Scan(&c.TenantID, &c.Code, &c.ClientID, &c.ClientKey, &c.RedirectURL, &c.Username, &c.CreateTime, &c.ExpiryTime, &c.Consumed)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, authcodes.Rejected("no redeemable code matched")
		}
		return nil, fmt.Errorf("[PGCodeRepo.Consume] %w", err)
	}
	return &c, nil
}

// DeleteExpired removes codes that can no longer be redeemed.
func (r *PGCodeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM authorization_codes WHERE expiry_time <= $1 OR consumed = TRUE`, before)
	if err != nil {
		return 0, fmt.Errorf("[PGCodeRepo.DeleteExpired] %w", err)
	}
	return tag.RowsAffected(), nil
}
