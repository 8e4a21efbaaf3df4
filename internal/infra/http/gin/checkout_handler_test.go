package ginserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	gin "github.com/gin-gonic/gin"

	"stayflow/internal/app/commands"
	checkoutapp "stayflow/internal/app/handlers/checkout"
)

type capturingBus struct {
	captured commands.Command
}

func (b *capturingBus) Dispatch(_ context.Context, cmd commands.Command) (any, error) {
	b.captured = cmd
	return &checkoutapp.RequestPaymentResult{TransactionID: "tx-1", State: "PENDING_PAYMENT"}, nil
}

func dispatchCheckout(t *testing.T, handler CheckoutHandler, body string) *capturingBus {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bus := &capturingBus{}
	handler.Commands = bus

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/checkout", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	setPrincipal(c, principal{ID: "cust-1"})

	handler.RequestPayment(c)

	if w.Code != 200 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	return bus
}

const checkoutBody = `{
	"listing_id": "lst-1",
	"provider_id": "prov-1",
	"rail": "card",
	"currency": "USD",
	"line_items": [{"code": "night", "unit_price": 10000, "quantity": 1, "line_total": 10000}],
	"payin_total": 10000,
	"payout_total": 9000,
	"platform_fee": 1000%s
}`

func TestRequestPaymentAppliesDefaultDepositPercentage(t *testing.T) {
	bus := dispatchCheckout(t, CheckoutHandler{DefaultDepositPercentage: 15},
		strings.Replace(checkoutBody, "%s", "", 1))

	cmd, ok := bus.captured.(checkoutapp.RequestPaymentCommand)
	if !ok {
		t.Fatalf("captured %T", bus.captured)
	}
	if cmd.DepositPercentage != 15 {
		t.Errorf("DepositPercentage = %d, want default 15", cmd.DepositPercentage)
	}
}

func TestRequestPaymentKeepsExplicitDepositPercentage(t *testing.T) {
	bus := dispatchCheckout(t, CheckoutHandler{DefaultDepositPercentage: 15},
		strings.Replace(checkoutBody, "%s", `, "deposit_percentage": 30`, 1))

	cmd, ok := bus.captured.(checkoutapp.RequestPaymentCommand)
	if !ok {
		t.Fatalf("captured %T", bus.captured)
	}
	if cmd.DepositPercentage != 30 {
		t.Errorf("DepositPercentage = %d, want 30", cmd.DepositPercentage)
	}
}
