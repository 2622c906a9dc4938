package entity

// CardType distinguishes prepaid from postpaid station cards
type CardType string

const (
	CardTypePrepaid  CardType = "PREPAID"
	CardTypePostpaid CardType = "POSTPAID"
)

// String returns the string representation of the card type
func (t CardType) String() string {
	return string(t)
}

// CardStatus describes the account state a scanner reports for a card
type CardStatus string

const (
	CardStatusActive   CardStatus = "ACTIVE"
	CardStatusRenting  CardStatus = "RENTING"
	CardStatusIndebted CardStatus = "INDEBTED"
)

// Card is a station card as read by a kiosk scanner. Balance is in VND.
type Card struct {
	Number  string
	Type    CardType
	Balance int64
	Status  CardStatus
}

// Refundable reports whether the card qualifies for a balance+deposit
// refund on return. Postpaid cards carry no stored value.
func (c *Card) Refundable() bool {
	return c.Type == CardTypePrepaid
}
