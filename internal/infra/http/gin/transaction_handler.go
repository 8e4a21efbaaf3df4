package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stayflow/internal/app/commands"
	bookingapp "stayflow/internal/app/handlers/booking"
	depositsapp "stayflow/internal/app/handlers/deposits"
	"stayflow/internal/app/queries"
)

type TransactionHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

func (h TransactionHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.GetTransactionQuery, bookingapp.TransactionView](
		c.Request.Context(), h.Queries, bookingapp.GetTransactionQuery{TxID: c.Param("id"), RequestedBy: user.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h TransactionHandler) Accept(c *gin.Context) {
	user, ok := requireRole(c, "provider")
	if !ok {
		return
	}
	result, err := commands.Dispatch[bookingapp.AcceptCommand, *bookingapp.AcceptResult](
		c.Request.Context(), h.Commands, bookingapp.AcceptCommand{TxID: c.Param("id"), ProviderID: user.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h TransactionHandler) Decline(c *gin.Context) {
	user, ok := requireRole(c, "provider")
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	result, err := commands.Dispatch[bookingapp.DeclineCommand, *bookingapp.DeclineResult](
		c.Request.Context(), h.Commands, bookingapp.DeclineCommand{TxID: c.Param("id"), ProviderID: user.ID, Reason: req.Reason})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h TransactionHandler) Cancel(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	result, err := commands.Dispatch[bookingapp.CancelCommand, *bookingapp.CancelResult](
		c.Request.Context(), h.Commands, bookingapp.CancelCommand{TxID: c.Param("id"), CustomerID: user.ID, Reason: req.Reason})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h TransactionHandler) Complete(c *gin.Context) {
	if _, ok := requireRole(c, "provider"); !ok {
		return
	}
	result, err := commands.Dispatch[bookingapp.CompleteCommand, *bookingapp.CompleteResult](
		c.Request.Context(), h.Commands, bookingapp.CompleteCommand{TxID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h TransactionHandler) RefundDeposit(c *gin.Context) {
	user, ok := requireRole(c, "operator")
	if !ok {
		return
	}
	result, err := commands.Dispatch[depositsapp.RefundCommand, *depositsapp.RefundResult](
		c.Request.Context(), h.Commands, depositsapp.RefundCommand{TxID: c.Param("id"), RequestedBy: user.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RequestDepositClaim accepts a multipart claim submission with optional
// evidence. Adjudication happens out of band.
func (h TransactionHandler) RequestDepositClaim(c *gin.Context) {
	user, ok := requireRole(c, "provider")
	if !ok {
		return
	}
	cmd := depositsapp.RequestClaimCommand{
		TxID:        c.Param("id"),
		RequestedBy: user.ID,
	}
	file, err := c.FormFile("evidence")
	if err == nil && file != nil {
		src, openErr := file.Open()
		if openErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": openErr.Error()})
			return
		}
		defer src.Close()
		cmd.Filename = file.Filename
		cmd.ContentType = file.Header.Get("Content-Type")
		cmd.Size = file.Size
		cmd.Evidence = src
	}
	result, err := commands.Dispatch[depositsapp.RequestClaimCommand, *depositsapp.RequestClaimResult](
		c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

type resolveClaimRequest struct {
	Upheld bool `json:"upheld"`
}

func (h TransactionHandler) ResolveDepositClaim(c *gin.Context) {
	user, ok := requireRole(c, "operator")
	if !ok {
		return
	}
	var req resolveClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := commands.Dispatch[depositsapp.ResolveClaimCommand, *depositsapp.ResolveClaimResult](
		c.Request.Context(), h.Commands, depositsapp.ResolveClaimCommand{TxID: c.Param("id"), ResolvedBy: user.ID, Upheld: req.Upheld})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ TransactionHTTP = TransactionHandler{}
