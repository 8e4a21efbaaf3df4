package transaction

import (
	"testing"

	"stayflow/internal/domain/shared/money"
)

func TestValidateLineItemsOrdering(t *testing.T) {
	items := []LineItem{
		{Code: "night", UnitPrice: usd(5000), Quantity: 2, LineTotal: usd(10000)},
		{Code: "night", UnitPrice: usd(5000), Quantity: 1, LineTotal: usd(5000), Reversal: true},
	}
	if err := ValidateLineItems(items); err != nil {
		t.Errorf("reversal after its entry should validate: %v", err)
	}

	reversed := []LineItem{items[1], items[0]}
	if err := ValidateLineItems(reversed); err != ErrDanglingReversal {
		t.Errorf("reversal before its entry: got %v, want ErrDanglingReversal", err)
	}
}

func TestSumLineItemsSubtractsReversals(t *testing.T) {
	items := []LineItem{
		{Code: "night", UnitPrice: usd(5000), Quantity: 2, LineTotal: usd(10000)},
		{Code: "cleaning", UnitPrice: usd(1500), Quantity: 1, LineTotal: usd(1500)},
		{Code: "cleaning", UnitPrice: usd(1500), Quantity: 1, LineTotal: usd(1500), Reversal: true},
	}
	total, err := SumLineItems(items)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total.Amount != 10000 {
		t.Errorf("total = %d, want 10000", total.Amount)
	}
}

func TestSumLineItemsCurrencyMismatch(t *testing.T) {
	items := []LineItem{
		{Code: "night", UnitPrice: usd(5000), Quantity: 1, LineTotal: usd(5000)},
		{Code: "fee", UnitPrice: money.Must(100, "EUR"), Quantity: 1, LineTotal: money.Must(100, "EUR")},
	}
	if err := ValidateLineItems(items); err != ErrLineItemCurrencies {
		t.Errorf("got %v, want ErrLineItemCurrencies", err)
	}
}

func TestBaseItemAmount(t *testing.T) {
	items := []LineItem{
		{Code: "night", UnitPrice: usd(498), Quantity: 1, LineTotal: usd(498)},
		{Code: "fee", UnitPrice: usd(100), Quantity: 1, LineTotal: usd(100)},
	}
	baseAmt, ok := BaseItemAmount(items)
	if !ok || baseAmt.Amount != 498 {
		t.Errorf("base item = %v %v, want 498", baseAmt, ok)
	}
}
