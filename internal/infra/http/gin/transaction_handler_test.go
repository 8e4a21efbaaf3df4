package ginserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	bookingapp "stayflow/internal/app/handlers/booking"
	"stayflow/internal/app/queries"
	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
	"stayflow/internal/infra/storage/memory"
)

func seedTransaction(t *testing.T, stores *memory.UoWFactory) *domaintx.Transaction {
	t.Helper()
	total := money.Money{Amount: 10000, Currency: "USD"}
	tx, err := domaintx.New(domaintx.CreateParams{
		ID:         "tx-1",
		ListingID:  "lst-1",
		CustomerID: "cust-1",
		ProviderID: "prov-1",
		LineItems: []domaintx.LineItem{{
			Code:      "night",
			UnitPrice: total,
			Quantity:  1,
			LineTotal: total,
		}},
		PayinTotal:      total,
		PayoutTotal:     money.Money{Amount: 9000, Currency: "USD"},
		PlatformFee:     money.Money{Amount: 1000, Currency: "USD"},
		PaymentDeadline: time.Now().Add(time.Hour),
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	if err := stores.Transactions.Save(context.Background(), tx); err != nil {
		t.Fatalf("save: %v", err)
	}
	return tx
}

// Registers the real query handler the way the composition root does, so the
// Ask result type in Get cannot drift from what the handler returns.
func TestGetTransactionEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stores := memory.NewUoWFactory()
	seedTransaction(t, stores)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, bookingapp.GetTransactionQuery{}.Key(), &bookingapp.GetTransactionHandler{
		UoWFactory: stores,
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/transactions/tx-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tx-1"}}
	setPrincipal(c, principal{ID: "cust-1"})

	TransactionHandler{Queries: queryBus}.Get(c)

	if w.Code != 200 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var view bookingapp.TransactionView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.TransactionID != "tx-1" || view.CustomerID != "cust-1" {
		t.Errorf("view = %+v", view)
	}
	if view.PayinTotal != 10000 || view.Currency != "USD" {
		t.Errorf("amounts = %d %s, want 10000 USD", view.PayinTotal, view.Currency)
	}
}

func TestGetTransactionRequiresPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/transactions/tx-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tx-1"}}

	TransactionHandler{Queries: queries.NewInMemoryBus()}.Get(c)

	if w.Code != 401 {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
