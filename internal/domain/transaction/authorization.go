package transaction

import "errors"

var ErrInvalidAuthorization = errors.New("transaction: incomplete provider authorization")

type Rail string

const (
	RailCard   Rail = "card"
	RailPayPal Rail = "paypal"
)

type AuthorizationKind string

const (
	KindSetupIntent   AuthorizationKind = "card-setup-intent"
	KindPaymentIntent AuthorizationKind = "card-payment-intent"
	KindPayPalOrder   AuthorizationKind = "paypal-order"
)

type AuthorizationStatus string

const (
	AuthRequiresAction AuthorizationStatus = "requires-action"
	AuthAuthorized     AuthorizationStatus = "authorized"
	AuthCaptured       AuthorizationStatus = "captured"
	AuthVoided         AuthorizationStatus = "voided"
	AuthFailed         AuthorizationStatus = "failed"
)

// ProviderAuthorization is the closed tagged variant over the two payment
// rails. Callers drive the shared capability set and only inspect the rail
// for rail-specific policy, such as deposits being card-only.
type ProviderAuthorization struct {
	Rail             Rail
	Kind             AuthorizationKind
	IntentRef        string
	OrderRef         string
	AuthorizationRef string
	ChargeRef        string
	InstrumentRef    string
	Status           AuthorizationStatus
}

// Validate ensures the variant carries the identifiers its rail requires.
func (a ProviderAuthorization) Validate() error {
	switch a.Rail {
	case RailCard:
		if a.IntentRef == "" {
			return ErrInvalidAuthorization
		}
		if a.Kind != KindSetupIntent && a.Kind != KindPaymentIntent {
			return ErrInvalidAuthorization
		}
	case RailPayPal:
		if a.OrderRef == "" || a.Kind != KindPayPalOrder {
			return ErrInvalidAuthorization
		}
	default:
		return ErrInvalidAuthorization
	}
	if a.Status == "" {
		return ErrInvalidAuthorization
	}
	return nil
}

// SupportsDeposit reports whether a secondary deposit charge may ride this
// authorization. Only the card rail guarantees a reusable instrument.
func (a ProviderAuthorization) SupportsDeposit() bool {
	return a.Rail == RailCard && a.InstrumentRef != ""
}

// NeedsVoid reports whether declining the booking must compensate with an
// explicit void. Un-captured card authorizations expire on their own.
func (a ProviderAuthorization) NeedsVoid() bool {
	return a.Rail == RailPayPal && a.Status == AuthAuthorized
}
