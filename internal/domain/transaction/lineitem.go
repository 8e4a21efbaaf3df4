package transaction

import (
	"errors"

	"stayflow/internal/domain/shared/money"
)

var (
	ErrEmptyLineItems     = errors.New("transaction: at least one line item required")
	ErrDanglingReversal   = errors.New("transaction: reversal must follow the entry it reverses")
	ErrInvalidLineItem    = errors.New("transaction: invalid line item")
	ErrLineItemCurrencies = errors.New("transaction: line items must share one currency")
)

// LineItem is one priced component of a checkout. Insertion order is
// meaningful: a reversal entry must appear after the entry it reverses.
type LineItem struct {
	Code      string
	UnitPrice money.Money
	Quantity  int64
	LineTotal money.Money
	Reversal  bool
}

// ValidateLineItems checks structure and ordering of a line item sequence.
func ValidateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrEmptyLineItems
	}
	currency := items[0].UnitPrice.Currency
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.Code == "" || it.Quantity <= 0 {
			return ErrInvalidLineItem
		}
		if it.UnitPrice.Currency != currency || it.LineTotal.Currency != currency {
			return ErrLineItemCurrencies
		}
		if it.Reversal && !seen[it.Code] {
			return ErrDanglingReversal
		}
		if !it.Reversal {
			seen[it.Code] = true
		}
	}
	return nil
}

// SumLineItems totals the sequence, subtracting reversal entries.
func SumLineItems(items []LineItem) (money.Money, error) {
	if err := ValidateLineItems(items); err != nil {
		return money.Money{}, err
	}
	total := money.Money{Currency: items[0].UnitPrice.Currency}
	for _, it := range items {
		amount := it.LineTotal
		if it.Reversal {
			amount = amount.Neg()
		}
		var err error
		total, err = total.Add(amount)
		if err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

// BaseItemAmount returns the first non-reversal line total, the item price
// before fees. Rail availability policies key off this value.
func BaseItemAmount(items []LineItem) (money.Money, bool) {
	for _, it := range items {
		if !it.Reversal {
			return it.LineTotal, true
		}
	}
	return money.Money{}, false
}
