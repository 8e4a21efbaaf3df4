package deposit

import (
	"errors"

	"stayflow/internal/domain/shared/money"
)

var ErrInvalidPercentage = errors.New("deposit: percentage must be between 1 and 100")

// TransferCommission is the share of a claimed deposit forwarded to the
// provider; the platform retains the remainder.
const TransferCommission = 0.90

// Calculation is derived fresh from the percentage policy and the pay-in
// total; it is never persisted.
type Calculation struct {
	PercentageValue  int64
	DepositAmount    money.Money
	TransferAmount   money.Money
	TotalPlusDeposit money.Money
}

// Calculate derives the deposit hold and transfer amounts from a
// percentage-of-total policy.
func Calculate(payinTotal money.Money, percentage int64) (Calculation, error) {
	if percentage <= 0 || percentage > 100 {
		return Calculation{}, ErrInvalidPercentage
	}
	amount := payinTotal.Percent(percentage)
	transfer := money.Money{
		Amount:   money.RoundHalfUp(float64(amount.Amount) * TransferCommission),
		Currency: amount.Currency,
	}
	total, err := payinTotal.Add(amount)
	if err != nil {
		return Calculation{}, err
	}
	return Calculation{
		PercentageValue:  percentage,
		DepositAmount:    amount,
		TransferAmount:   transfer,
		TotalPlusDeposit: total,
	}, nil
}
