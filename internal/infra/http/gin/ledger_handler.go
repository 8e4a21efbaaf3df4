package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stayflow/internal/app/commands"
	ledgerapp "stayflow/internal/app/handlers/ledgerops"
	"stayflow/internal/app/queries"
)

type LedgerHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

func (h LedgerHandler) ListByTransaction(c *gin.Context) {
	if _, ok := requireRole(c, "operator"); !ok {
		return
	}
	result, err := queries.Ask[ledgerapp.ListEntriesQuery, []ledgerapp.EntryView](
		c.Request.Context(), h.Queries, ledgerapp.ListEntriesQuery{TransactionRef: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": result})
}

type repairPayoutRequest struct {
	ExpectedStatus string `json:"expected_status"`
	NextStatus     string `json:"next_status"`
	PayoutBatchRef string `json:"payout_batch_ref,omitempty"`
}

func (h LedgerHandler) RepairPayout(c *gin.Context) {
	user, ok := requireRole(c, "operator")
	if !ok {
		return
	}
	var req repairPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := commands.Dispatch[ledgerapp.RepairPayoutCommand, *ledgerapp.RepairPayoutResult](
		c.Request.Context(), h.Commands, ledgerapp.RepairPayoutCommand{
			EntryID:        c.Param("entry"),
			ExpectedStatus: req.ExpectedStatus,
			NextStatus:     req.NextStatus,
			PayoutBatchRef: req.PayoutBatchRef,
			RepairedBy:     user.ID,
		})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ LedgerHTTP = LedgerHandler{}
