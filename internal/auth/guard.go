package auth

import (
	"context"
	"errors"

	"github.com/locallink-app/locallink/backend/internal/catalog"
	"github.com/locallink-app/locallink/backend/internal/fault"
	"go.uber.org/zap"
)

var errMissingRecordSource = errors.New("auth: record source required")

const (
	msgInsufficientScope = "Insufficient scope"
	msgNotOwner          = "Forbidden: You do not own this service"
)

// RecordSource resolves a record so ownership can be checked against the
// authenticated subject.
type RecordSource interface {
	Get(ctx context.Context, id catalog.RecordID) (catalog.Record, error)
}

// GuardConfig bundles the dependencies of the authorization guard.
type GuardConfig struct {
	Records RecordSource
	Logger  *zap.Logger
}

// Guard admits or rejects requests by composing token claims with a
// per-operation required-scope set and, for record mutations, with resource
// ownership. The guard itself never mutates state; its only side effect is the
// single read needed to resolve ownership.
type Guard struct {
	records RecordSource
	logger  *zap.Logger
}

// NewGuard constructs the guard with validated dependencies.
func NewGuard(cfg GuardConfig) (*Guard, error) {
	if cfg.Records == nil {
		return nil, errMissingRecordSource
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{records: cfg.Records, logger: logger}, nil
}

// RequireScopes admits the claims only when every required scope was granted.
func (g *Guard) RequireScopes(claims Claims, required ...string) error {
	if !claims.HasScopes(required...) {
		g.logger.Info("scope denied",
			zap.String("subject", claims.Subject),
			zap.Strings("required", required))
		return fault.Authorization(fault.ReasonInsufficientScope, msgInsufficientScope)
	}
	return nil
}

// AuthorizeRecord performs the scope check, then resolves the target record
// and verifies the authenticated subject owns it. The scope check always runs
// first so a scope failure reveals nothing about record existence. The fetched
// record is returned for the handler to reuse.
func (g *Guard) AuthorizeRecord(ctx context.Context, claims Claims, id catalog.RecordID, required ...string) (catalog.Record, error) {
	if err := g.RequireScopes(claims, required...); err != nil {
		return catalog.Record{}, err
	}

	record, err := g.records.Get(ctx, id)
	if err != nil {
		return catalog.Record{}, err
	}

	if record.OwnerIdentity != claims.Subject {
		g.logger.Info("ownership denied",
			zap.String("subject", claims.Subject),
			zap.String("record_id", id.String()))
		return catalog.Record{}, fault.Authorization(fault.ReasonNotOwner, msgNotOwner)
	}

	return record, nil
}
