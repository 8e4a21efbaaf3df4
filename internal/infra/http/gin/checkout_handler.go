package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stayflow/internal/app/commands"
	checkoutapp "stayflow/internal/app/handlers/checkout"
	"stayflow/internal/app/policies"
	"stayflow/internal/app/queries"
	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
)

type CheckoutHandler struct {
	Commands commands.Bus
	Queries  queries.Bus

	// DefaultDepositPercentage applies when the request does not carry its
	// own percentage. Zero means no deposit is required by default.
	DefaultDepositPercentage int64
}

type lineItemRequest struct {
	Code      string `json:"code"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	LineTotal int64  `json:"line_total"`
	Reversal  bool   `json:"reversal,omitempty"`
}

type requestPaymentRequest struct {
	TransactionID     string            `json:"transaction_id,omitempty"`
	ListingID         string            `json:"listing_id"`
	ProviderID        string            `json:"provider_id"`
	Rail              string            `json:"rail"`
	Flow              string            `json:"flow,omitempty"`
	InstrumentRef     string            `json:"instrument_ref,omitempty"`
	Currency          string            `json:"currency"`
	LineItems         []lineItemRequest `json:"line_items"`
	PayinTotal        int64             `json:"payin_total"`
	PayoutTotal       int64             `json:"payout_total"`
	PlatformFee       int64             `json:"platform_fee"`
	DepositPercentage int64             `json:"deposit_percentage,omitempty"`
	Description       string            `json:"description,omitempty"`
}

func (h CheckoutHandler) RequestPayment(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	var req requestPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	depositPct := req.DepositPercentage
	if depositPct == 0 {
		depositPct = h.DefaultDepositPercentage
	}
	items := make([]domaintx.LineItem, 0, len(req.LineItems))
	for _, it := range req.LineItems {
		items = append(items, domaintx.LineItem{
			Code:      it.Code,
			UnitPrice: money.Money{Amount: it.UnitPrice, Currency: req.Currency},
			Quantity:  it.Quantity,
			LineTotal: money.Money{Amount: it.LineTotal, Currency: req.Currency},
			Reversal:  it.Reversal,
		})
	}
	cmd := checkoutapp.RequestPaymentCommand{
		CommandID:         generateCommandID(),
		TxID:              req.TransactionID,
		ListingID:         req.ListingID,
		CustomerID:        user.ID,
		ProviderID:        req.ProviderID,
		Rail:              domaintx.Rail(req.Rail),
		Flow:              policies.CardFlow(req.Flow),
		InstrumentRef:     req.InstrumentRef,
		LineItems:         items,
		PayinTotal:        money.Money{Amount: req.PayinTotal, Currency: req.Currency},
		PayoutTotal:       money.Money{Amount: req.PayoutTotal, Currency: req.Currency},
		PlatformFee:       money.Money{Amount: req.PlatformFee, Currency: req.Currency},
		DepositPercentage: depositPct,
		Description:       req.Description,
		IdempotencyKeyV:   c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[checkoutapp.RequestPaymentCommand, *checkoutapp.RequestPaymentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CheckoutHandler) ListInstruments(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queries unavailable"})
		return
	}
	result, err := queries.Ask[checkoutapp.ListSavedInstrumentsQuery, []checkoutapp.SavedInstrumentView](
		c.Request.Context(), h.Queries, checkoutapp.ListSavedInstrumentsQuery{CustomerRef: user.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instruments": result})
}

func generateCommandID() string {
	return uuid.NewString()
}

var _ CheckoutHTTP = CheckoutHandler{}
