package repository

import (
	"github.com/flexprice/recurring/internal/domain/customer"
	"github.com/flexprice/recurring/internal/domain/eventlog"
	"github.com/flexprice/recurring/internal/domain/order"
	"github.com/flexprice/recurring/internal/domain/subscription"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	postgresRepo "github.com/flexprice/recurring/internal/repository/postgres"
)

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewSubscriptionNoteRepository(db *postgres.DB, logger *logger.Logger) subscription.NoteRepository {
	return postgresRepo.NewSubscriptionNoteRepository(db, logger)
}

func NewLedgerRepository(db *postgres.DB, logger *logger.Logger) order.Ledger {
	return postgresRepo.NewLedgerRepository(db, logger)
}

func NewCustomerRepository(db *postgres.DB, logger *logger.Logger) customer.Repository {
	return postgresRepo.NewCustomerRepository(db, logger)
}

func NewEventLogRepository(db *postgres.DB, logger *logger.Logger) eventlog.Repository {
	return postgresRepo.NewEventLogRepository(db, logger)
}
