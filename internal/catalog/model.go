package catalog

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidRecordID indicates that a record identifier is empty or exceeds storage bounds.
	ErrInvalidRecordID = errors.New("catalog: invalid record id")
	// ErrInvalidOwnerIdentity indicates that an owner identifier is empty or exceeds storage bounds.
	ErrInvalidOwnerIdentity = errors.New("catalog: invalid owner identity")
)

// RecordID represents a validated service record identifier.
type RecordID string

// NewRecordID validates raw input and returns a RecordID.
func NewRecordID(rawInput string) (RecordID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRecordID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidRecordID, maxIdentifierLength)
	}
	return RecordID(trimmed), nil
}

// String returns the underlying string identifier.
func (id RecordID) String() string {
	return string(id)
}

// OwnerIdentity represents a validated provider identity extracted from token claims.
type OwnerIdentity string

// NewOwnerIdentity validates raw input and returns an OwnerIdentity.
func NewOwnerIdentity(rawInput string) (OwnerIdentity, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidOwnerIdentity)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidOwnerIdentity, maxIdentifierLength)
	}
	return OwnerIdentity(trimmed), nil
}

// String returns the underlying string identifier.
func (id OwnerIdentity) String() string {
	return string(id)
}

// Record models a persisted service listing. OwnerIdentity is set once at
// creation and never updated afterwards.
type Record struct {
	ID               string  `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	OwnerIdentity    string  `gorm:"column:owner_identity;size:190;not null;index:idx_services_owner" json:"owner_identity"`
	Name             string  `gorm:"column:name;size:320;not null" json:"name"`
	Description      string  `gorm:"column:description;type:text" json:"description"`
	Price            float64 `gorm:"column:price;not null" json:"price"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null;index:idx_services_created" json:"created_at"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "services"
}

// NewRecord describes the input supplied by a provider when creating a listing.
type NewRecord struct {
	OwnerIdentity OwnerIdentity
	Name          string
	Description   string
	Price         float64
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	Name        *string
	Description *string
	Price       *float64
}

// IsEmpty reports whether the patch carries no changes.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil
}
