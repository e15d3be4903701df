package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/flexprice/recurring/internal/domain/customer"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
)

type customerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewCustomerRepository(db *postgres.DB, logger *logger.Logger) customer.Repository {
	return &customerRepository{db: db, logger: logger}
}

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
	INSERT INTO customers (id, tenant_id, email, name, status, created_at, updated_at, created_by, updated_by)
	VALUES (:id, :tenant_id, :email, :name, :status, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, c); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("Customer %s already exists", c.ID).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create customer").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	query := `
	SELECT id, tenant_id, email, name, status, created_at, updated_at,
		COALESCE(created_by, '') AS created_by, COALESCE(updated_by, '') AS updated_by
	FROM customers
	WHERE id = $1 AND tenant_id = $2 AND status <> $3`

	var c customer.Customer
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, id, types.GetTenantID(ctx), types.StatusDeleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Customer %s not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get customer").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}
