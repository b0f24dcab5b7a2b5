package orders

import (
	"time"

	"github.com/google/uuid"
)

// Outcome values recorded on a snapshot.
const (
	OutcomeRedirect   = "redirect"
	OutcomeConfirmed  = "confirmed"
	OutcomeFailed     = "failed"
	OutcomeUnexpected = "unexpected"
	OutcomeRejected   = "rejected"
)

// CheckoutSnapshot is the point-in-time copy of a cart submitted to the
// gateway. Rows are written once; only ConfirmedAt is set afterwards.
type CheckoutSnapshot struct {
	ID                  uuid.UUID  `gorm:"type:text;primaryKey"`
	StorefrontSessionID string     `gorm:"column:storefront_session_id;not null"`
	UserID              string     `gorm:"not null"`
	GatewaySessionID    *string    `gorm:"column:gateway_session_id"`
	OrderID             *string    `gorm:"column:order_id"`
	Outcome             string     `gorm:"not null"`
	Mode                string     `gorm:"not null"`
	ItemsCount          int        `gorm:"not null"`
	TotalAmount         int64      `gorm:"not null"`
	Currency            string     `gorm:"not null"`
	Payload             string     `gorm:"type:text;not null"`
	ConfirmedAt         *time.Time `gorm:"column:confirmed_at"`
	CreatedAt           time.Time  `gorm:"not null"`
}

func (CheckoutSnapshot) TableName() string { return "checkout_snapshots" }
