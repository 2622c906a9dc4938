// Package pricing holds the kiosk's fee and refund arithmetic. Everything
// here is a pure function over session data; no clocks, devices or loggers.
package pricing

import "time"

// CardRefund computes the amount returned to a prepaid card holder:
// remaining balance plus the deposit paid at purchase. Callers must not
// invoke this for postpaid cards, which get no refund.
func CardRefund(balance, deposit int64) int64 {
	return balance + deposit
}

// RentalCharge is the broken-down cost of a finished rental
type RentalCharge struct {
	DurationMinutes int
	Hours           int
	BaseFee         int64
	MinimumApplied  bool
}

// ChargeForRental prices a rental from start to end. Hours are rounded up;
// rentals under an hour pay at least the minimum fee.
func ChargeForRental(start, end time.Time, unitRate, minimumFee int64) RentalCharge {
	minutes := int(end.Sub(start).Milliseconds() / 60000)

	hours := minutes / 60
	if minutes%60 != 0 {
		hours++
	}

	charge := RentalCharge{
		DurationMinutes: minutes,
		Hours:           hours,
		BaseFee:         int64(hours) * unitRate,
	}

	if minutes < 60 && charge.BaseFee < minimumFee {
		charge.BaseFee = minimumFee
		charge.MinimumApplied = true
	}

	return charge
}

// Total applies a discount to a base fee, never going below zero
func Total(baseFee, discount int64) int64 {
	total := baseFee - discount
	if total < 0 {
		return 0
	}
	return total
}
