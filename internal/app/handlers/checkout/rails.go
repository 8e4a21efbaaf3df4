package checkout

import (
	domaintx "stayflow/internal/domain/transaction"
)

// DefaultPayPalFloor is the minimum base item price (minor units) below which
// the PayPal option is suppressed. Sub-floor transactions are uneconomical
// under PayPal's fee structure; this is product policy, not a provider error.
const DefaultPayPalFloor = 499

// AvailableRails lists the payment rails offered for a line item sequence.
func AvailableRails(items []domaintx.LineItem, paypalFloor int64) []domaintx.Rail {
	rails := []domaintx.Rail{domaintx.RailCard}
	if baseAmt, ok := domaintx.BaseItemAmount(items); ok && baseAmt.Amount >= paypalFloor {
		rails = append(rails, domaintx.RailPayPal)
	}
	return rails
}

func railAllowed(rail domaintx.Rail, items []domaintx.LineItem, paypalFloor int64) bool {
	for _, r := range AvailableRails(items, paypalFloor) {
		if r == rail {
			return true
		}
	}
	return false
}
