package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatVND formats an amount in Vietnamese dong with dot-grouped thousands,
// e.g. 80000 -> "80.000 ₫", -15000 -> "-15.000 ₫".
func FormatVND(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	if negative {
		return "-" + b.String() + " ₫"
	}
	return b.String() + " ₫"
}

// FormatCardNumber groups a card number into blocks of four digits.
func FormatCardNumber(number string) string {
	compact := strings.ReplaceAll(number, " ", "")
	var groups []string
	for len(compact) > 4 {
		groups = append(groups, compact[:4])
		compact = compact[4:]
	}
	groups = append(groups, compact)
	return strings.Join(groups, " ")
}

// FormatDuration renders a rental duration in minutes as "H giờ M phút"
// style text, matching the kiosk display convention.
func FormatDuration(minutes int) string {
	hours := minutes / 60
	mins := minutes % 60

	switch {
	case hours == 0:
		return fmt.Sprintf("%d phút", mins)
	case mins == 0:
		return fmt.Sprintf("%d giờ", hours)
	default:
		return fmt.Sprintf("%d giờ %d phút", hours, mins)
	}
}

// TransactionID generates a kiosk transaction identifier: a two-letter
// prefix followed by epoch milliseconds and four random digits.
func TransactionID(prefix string, now time.Time, rng func() float64) string {
	random := int(rng() * 10000)
	return fmt.Sprintf("%s%d%04d", prefix, now.UnixMilli(), random)
}

// NewCardNumber generates a fresh prepaid card number with the 9704 issuer
// prefix, grouped into blocks of four.
func NewCardNumber(rng func() float64) string {
	var b strings.Builder
	b.WriteString("9704")
	for i := 0; i < 12; i++ {
		b.WriteByte(byte('0' + int(rng()*10)))
	}
	return FormatCardNumber(b.String())
}
