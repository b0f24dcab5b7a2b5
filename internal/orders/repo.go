package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/chronus-storefront/pkg/db"
	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository stores checkout snapshots.
type Repository interface {
	Record(ctx context.Context, snap *CheckoutSnapshot) (bool, error)
	MarkConfirmed(ctx context.Context, gatewaySessionID string, at time.Time) (bool, error)
	FindByGatewaySession(ctx context.Context, gatewaySessionID string) (*CheckoutSnapshot, error)
	ListBySession(ctx context.Context, storefrontSessionID string) ([]CheckoutSnapshot, error)
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a snapshot repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Record inserts snap. A second snapshot for the same gateway session is
// ignored and reported as not created.
func (r *repository) Record(ctx context.Context, snap *CheckoutSnapshot) (bool, error) {
	if snap == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "snapshot is required")
	}
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record checkout snapshot")
	}
	return true, nil
}

// MarkConfirmed stamps the snapshot of gatewaySessionID. It reports false
// when no unconfirmed snapshot exists.
func (r *repository) MarkConfirmed(ctx context.Context, gatewaySessionID string, at time.Time) (bool, error) {
	id := strings.TrimSpace(gatewaySessionID)
	if id == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "gateway session id is required")
	}
	res := r.db.WithContext(ctx).
		Model(&CheckoutSnapshot{}).
		Where("gateway_session_id = ? AND confirmed_at IS NULL", id).
		Update("confirmed_at", at.UTC())
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "confirm checkout snapshot")
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByGatewaySession(ctx context.Context, gatewaySessionID string) (*CheckoutSnapshot, error) {
	var snap CheckoutSnapshot
	err := r.db.WithContext(ctx).
		Where("gateway_session_id = ?", strings.TrimSpace(gatewaySessionID)).
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout snapshot not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find checkout snapshot")
	}
	return &snap, nil
}

// ListBySession returns the snapshots of one storefront session, oldest first.
func (r *repository) ListBySession(ctx context.Context, storefrontSessionID string) ([]CheckoutSnapshot, error) {
	var snaps []CheckoutSnapshot
	err := r.db.WithContext(ctx).
		Where("storefront_session_id = ?", storefrontSessionID).
		Order("created_at ASC").
		Find(&snaps).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list checkout snapshots")
	}
	return snaps, nil
}
