package sync

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopfront/backend/internal/domain/erp"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// ledgerAccountCode derives the ERP ledger account code for a user. The code
// is a pure function of the user id, so repeated pushes of the same user
// always hit the same account without a lookup round-trip.
func ledgerAccountCode(userID uuid.UUID) string {
	h := fnv.New32a()
	h.Write(userID[:])
	return fmt.Sprintf("CARI%010d", h.Sum32())
}

// CustomerSyncService pushes storefront users into ERP ledger accounts.
// The flow is push-only: the storefront owns the user record and the ERP
// mirrors it as a customer ledger (cari) account.
type CustomerSyncService struct {
	erp       erp.Client
	directory syncdomain.CustomerDirectory
	stateRepo syncdomain.SyncStateRepository
	mappings  syncdomain.ExternalMappingRepository
	oplog     syncdomain.OperationLogger
	guard     *KeyedGuard
	logger    *zap.Logger
}

// NewCustomerSyncService creates a new CustomerSyncService
func NewCustomerSyncService(
	erpClient erp.Client,
	directory syncdomain.CustomerDirectory,
	stateRepo syncdomain.SyncStateRepository,
	mappings syncdomain.ExternalMappingRepository,
	oplog syncdomain.OperationLogger,
	guard *KeyedGuard,
	logger *zap.Logger,
) *CustomerSyncService {
	return &CustomerSyncService{
		erp:       erpClient,
		directory: directory,
		stateRepo: stateRepo,
		mappings:  mappings,
		oplog:     oplog,
		guard:     guard,
		logger:    logger.Named("customer_sync"),
	}
}

// GetExternalAccountCode returns the ledger account code for a user without
// contacting the ERP
func (s *CustomerSyncService) GetExternalAccountCode(userID uuid.UUID) string {
	return ledgerAccountCode(userID)
}

// CreateOrUpdateLedgerAccount pushes the given contact details into the
// user's ledger account, creating it on first contact
func (s *CustomerSyncService) CreateOrUpdateLedgerAccount(ctx context.Context, userID uuid.UUID, name, email, phone string) (string, error) {
	code := ledgerAccountCode(userID)
	err := s.guard.Do(syncdomain.EntityTypeCustomer, userID.String(), func() error {
		return s.pushLedgerAccount(ctx, userID, code, name, email, phone)
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// SyncUserToLedgerAccount pushes the user's current directory record into
// their ledger account
func (s *CustomerSyncService) SyncUserToLedgerAccount(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%w: unknown user %s", syncdomain.ErrValidation, userID)
	}
	return s.CreateOrUpdateLedgerAccount(ctx, user.ID, user.Name, user.Email, user.Phone)
}

// SyncAllUsersToLedgerAccount pushes every directory user into the ERP ledger
func (s *CustomerSyncService) SyncAllUsersToLedgerAccount(ctx context.Context) *syncdomain.Result {
	result := syncdomain.NewResult(syncdomain.EntityTypeCustomer, syncdomain.DirectionToERP)
	cycleStart := time.Now()

	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		result.RecordFailure("*", fmt.Errorf("list users: %w", err))
		closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeCustomer, syncdomain.DirectionToERP, result, cycleStart, false, s.logger)
		return result.Finish()
	}

	for i := range users {
		if ctx.Err() != nil {
			result.AddWarning("cycle cancelled, remaining items skipped")
			break
		}
		user := users[i]
		_, err := s.CreateOrUpdateLedgerAccount(ctx, user.ID, user.Name, user.Email, user.Phone)
		if err != nil {
			result.RecordFailure(user.ID.String(), err)
			continue
		}
		result.RecordSuccess()
	}

	closeCycle(ctx, s.stateRepo, syncdomain.EntityTypeCustomer, syncdomain.DirectionToERP, result, cycleStart, ctx.Err() == nil, s.logger)
	return result.Finish()
}

func (s *CustomerSyncService) pushLedgerAccount(ctx context.Context, userID uuid.UUID, code, name, email, phone string) error {
	log, err := s.oplog.StartOperation(ctx, syncdomain.EntityTypeCustomer, syncdomain.DirectionToERP, code, userID.String())
	if err != nil {
		return err
	}

	account := erp.LedgerAccount{
		Code:  code,
		Name:  name,
		Email: email,
		Phone: phone,
	}
	if err := s.erp.UpsertLedgerAccount(ctx, account); err != nil {
		if logErr := s.oplog.FailOperation(ctx, log.ID, err); logErr != nil {
			return logErr
		}
		return err
	}

	if err := s.recordMapping(ctx, userID, code); err != nil {
		s.logger.Warn("ledger account mapping not recorded",
			zap.String("user_id", userID.String()),
			zap.String("code", code),
			zap.Error(err))
	}

	return s.oplog.CompleteOperation(ctx, log.ID, "ledger account upserted")
}

func (s *CustomerSyncService) recordMapping(ctx context.Context, userID uuid.UUID, code string) error {
	exists, err := s.mappings.Exists(ctx, syncdomain.EntityTypeCustomer, userID.String())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	mapping, err := syncdomain.NewExternalMapping(syncdomain.EntityTypeCustomer, userID.String(), code)
	if err != nil {
		return err
	}
	return s.mappings.Save(ctx, mapping)
}

// RetryItem reprocesses a single failed log entry
func (s *CustomerSyncService) RetryItem(ctx context.Context, log *syncdomain.SyncLog) error {
	userID, err := uuid.Parse(log.InternalID)
	if err != nil {
		return fmt.Errorf("%w: malformed user id %q", syncdomain.ErrValidation, log.InternalID)
	}
	_, err = s.SyncUserToLedgerAccount(ctx, userID)
	return err
}
