package entity

import "time"

// Receipts are what the kiosk "prints" at the end of each workflow. The
// presentation layer renders them; the core only fills them in.

// CardReturnReceipt summarizes a completed card return
type CardReturnReceipt struct {
	TransactionID string
	CardNumber    string
	CardType      CardType
	RefundAmount  int64
	Refunded      bool
	IssuedAt      time.Time
}

// PurchaseReceipt summarizes a completed card purchase
type PurchaseReceipt struct {
	CardNumber    string
	CardType      CardType
	InsertedTotal int64
	Balance       int64
	IssuedAt      time.Time
}

// RentalReceipt summarizes a confirmed bike rental
type RentalReceipt struct {
	BikeNumber string
	CardNumber string
	StartedAt  time.Time
}

// TopUpReceipt summarizes a successful top-up
type TopUpReceipt struct {
	CardNumber string
	Amount     int64
	Bonus      int64
	Credited   int64
	NewBalance int64
	IssuedAt   time.Time
}

// BikeReturnReceipt summarizes a paid bike return
type BikeReturnReceipt struct {
	TransactionID   string
	BikeNumber      string
	CardNumber      string
	DurationMinutes int
	BaseFee         int64
	Discount        int64
	TotalFee        int64
	IssuedAt        time.Time
}
