package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/locallink-app/locallink/backend/internal/fault"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	msgMissingFields  = "Missing required fields"
	msgRecordNotFound = "Service not found"
)

// StoreConfig bundles the dependencies required by the record store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store persists service listing records. All operations act on a single
// record; no multi-record transactions are required, and concurrent
// update/delete on the same id is resolved last-write-wins.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewStore constructs the record store after validating its dependencies.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Create validates the input and persists a new record owned by the caller.
// A zero price is rejected exactly like an absent one; clients depend on the
// resulting 400, so the check stays.
func (s *Store) Create(ctx context.Context, input NewRecord) (Record, error) {
	if input.OwnerIdentity.String() == "" {
		return Record{}, fault.Store("owner identity is required", ErrInvalidOwnerIdentity)
	}
	if input.Name == "" || input.Description == "" || input.Price == 0 {
		return Record{}, fault.Validation(msgMissingFields)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError("catalog.create", "id_generation_failed", err)
		return Record{}, fault.Store("failed to create service", err)
	}

	now := s.clock().UTC().Unix()
	record := Record{
		ID:               id,
		OwnerIdentity:    input.OwnerIdentity.String(),
		Name:             input.Name,
		Description:      input.Description,
		Price:            input.Price,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError("catalog.create", "insert_failed", err, zap.String("owner_identity", record.OwnerIdentity))
		return Record{}, fault.Store("failed to create service", err)
	}
	return record, nil
}

// Get returns the record with the given id, or a not-found fault.
func (s *Store) Get(ctx context.Context, id RecordID) (Record, error) {
	var record Record
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, fault.NotFound(msgRecordNotFound)
	}
	if err != nil {
		s.logError("catalog.get", "query_failed", err, zap.String("record_id", id.String()))
		return Record{}, fault.Store("failed to fetch service", err)
	}
	return record, nil
}

// Update applies the non-nil patch fields to the record and refreshes the
// updated timestamp. The owner identity is never part of the patch.
func (s *Store) Update(ctx context.Context, id RecordID, patch Patch) (Record, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}

	if patch.Name != nil {
		record.Name = *patch.Name
	}
	if patch.Description != nil {
		record.Description = *patch.Description
	}
	if patch.Price != nil {
		record.Price = *patch.Price
	}
	record.UpdatedAtSeconds = s.clock().UTC().Unix()

	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		s.logError("catalog.update", "save_failed", err, zap.String("record_id", id.String()))
		return Record{}, fault.Store("failed to update service", err)
	}
	return record, nil
}

// Delete removes the record. Deleting an already-removed id reports not found,
// so a repeated delete is observable rather than silently succeeding.
func (s *Store) Delete(ctx context.Context, id RecordID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&Record{})
	if result.Error != nil {
		s.logError("catalog.delete", "delete_failed", result.Error, zap.String("record_id", id.String()))
		return fault.Store("failed to delete service", result.Error)
	}
	if result.RowsAffected == 0 {
		return fault.NotFound(msgRecordNotFound)
	}
	return nil
}

// ListAll returns every record in creation order.
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	var records []Record
	if err := s.db.WithContext(ctx).Order("created_at_s ASC, id ASC").Find(&records).Error; err != nil {
		s.logError("catalog.list_all", "query_failed", err)
		return nil, fault.Store("failed to list services", err)
	}
	return records, nil
}

// ListByOwner returns the records created by the given identity in creation order.
func (s *Store) ListByOwner(ctx context.Context, owner OwnerIdentity) ([]Record, error) {
	var records []Record
	if err := s.db.WithContext(ctx).
		Where("owner_identity = ?", owner.String()).
		Order("created_at_s ASC, id ASC").
		Find(&records).Error; err != nil {
		s.logError("catalog.list_by_owner", "query_failed", err, zap.String("owner_identity", owner.String()))
		return nil, fault.Store("failed to list services", err)
	}
	return records, nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("catalog store error", attrs...)
}
