package domain

import "time"

// AuthorizationStatus represents the state of a payment hold at the processor.
type AuthorizationStatus string

const (
	AuthorizationStatusAuthorized AuthorizationStatus = "authorized"
	AuthorizationStatusCaptured   AuthorizationStatus = "captured"
	AuthorizationStatusVoided     AuthorizationStatus = "voided"
	AuthorizationStatusRefunded   AuthorizationStatus = "refunded"
)

// Authorization is the local record of a processor hold. It makes capture,
// void and refund idempotent per authorization reference.
type Authorization struct {
	Ref            string
	Amount         Money
	IdempotencyKey string
	Status         AuthorizationStatus
	CaptureRef     string
	RefundRef      string
	RefundAmount   Money
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Payout is an append-only record of money sent to a driver.
type Payout struct {
	ID         string
	DriverID   string
	Amount     Money
	Note       string
	RecordedBy string
	CreatedAt  time.Time
}
