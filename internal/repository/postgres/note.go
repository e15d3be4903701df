package postgres

import (
	"context"

	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
)

type noteRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionNoteRepository(db *postgres.DB, logger *logger.Logger) subscription.NoteRepository {
	return &noteRepository{db: db, logger: logger}
}

func (r *noteRepository) CreateNote(ctx context.Context, note *subscription.Note) error {
	query := `
	INSERT INTO subscription_notes (id, tenant_id, subscription_id, text, created_at, created_by)
	VALUES (:id, :tenant_id, :subscription_id, :text, :created_at, :created_by)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, note); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to add subscription note").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *noteRepository) ListNotes(ctx context.Context, subscriptionID string) ([]*subscription.Note, error) {
	query := `
	SELECT id, tenant_id, subscription_id, text, created_at, COALESCE(created_by, '') AS created_by
	FROM subscription_notes
	WHERE tenant_id = $1 AND subscription_id = $2
	ORDER BY created_at, id`

	var notes []*subscription.Note
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &notes, query, types.GetTenantID(ctx), subscriptionID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscription notes").
			Mark(ierr.ErrDatabase)
	}
	return notes, nil
}
