// Package pgrepo stores clients in Postgres.
package pgrepo

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrsteele09/go-authenticator/clients"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/internal/postgres"
)

var _ clients.Repo = (*PGClientRepo)(nil)

const clientColumns = `tenant_id, client_id, client_key, callback_url, display_name, description, owner, create_time, last_update_time`

type PGClientRepo struct {
	db postgres.Querier
}

func New(db postgres.Querier) *PGClientRepo {
	return &PGClientRepo{db: db}
}

func (r *PGClientRepo) Create(ctx context.Context, c *clients.Client) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.TenantID, c.ClientID, c.ClientKey, c.CallbackURL, c.DisplayName, c.Description, c.Owner, c.CreateTime, c.LastUpdateTime,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == postgres.UniqueViolation {
			return errors.Newf(errors.ErrValidation, "client %s already exists", c.ClientID)
		}
		return fmt.Errorf("[PGClientRepo.Create] %w", err)
	}
	return nil
}

func (r *PGClientRepo) Get(ctx context.Context, tenantID, clientID string) (*clients.Client, error) {
	row := r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE tenant_id = $1 AND client_id = $2`, tenantID, clientID)
	c, err := scanClient(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.ErrNotFound, "no client found with id %s", clientID)
		}
		return nil, fmt.Errorf("[PGClientRepo.Get] %w", err)
	}
	return c, nil
}

func (r *PGClientRepo) ListByOwner(ctx context.Context, tenantID, owner string) ([]*clients.Client, error) {
	rows, err := r.db.Query(ctx, `SELECT `+clientColumns+` FROM clients WHERE tenant_id = $1 AND owner = $2 ORDER BY client_id`, tenantID, owner)
	if err != nil {
		return nil, fmt.Errorf("[PGClientRepo.ListByOwner] %w", err)
	}
	defer rows.Close()

	list := make([]*clients.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("[PGClientRepo.ListByOwner] scan: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *PGClientRepo) Delete(ctx context.Context, tenantID, clientID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE tenant_id = $1 AND client_id = $2`, tenantID, clientID)
	if err != nil {
		return fmt.Errorf("[PGClientRepo.Delete] %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrNotFound, "no client found with id %s", clientID)
	}
	return nil
}

func scanClient(row pgx.Row) (*clients.Client, error) {
	var c clients.Client
	if err := row.Scan(&c.TenantID, &c.ClientID, &c.ClientKey, &c.CallbackURL, &c.DisplayName, &c.Description, &c.Owner, &c.CreateTime, &c.LastUpdateTime); err != nil {
		return nil, err
	}
	return &c, nil
}
