package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stayflow/internal/domain/ledger"
	"stayflow/internal/domain/shared/fault"
	domaintx "stayflow/internal/domain/transaction"
)

// writeError maps a handler failure onto a transport status. Fault kinds
// carry the decision; bare errors default to 500.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domaintx.ErrNotFound), errors.Is(err, ledger.ErrEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domaintx.ErrInvalidState), errors.Is(err, ledger.ErrStaleUpdate):
		status = http.StatusConflict
	default:
		switch fault.KindOf(err) {
		case fault.Validation:
			status = http.StatusBadRequest
		case fault.VerificationRequired:
			status = http.StatusForbidden
		case fault.ProviderRejected:
			status = http.StatusPaymentRequired
		case fault.ConcurrencyConflict:
			status = http.StatusConflict
		case fault.NotFound:
			status = http.StatusNotFound
		case fault.Transient, fault.VerificationUnavailable:
			status = http.StatusServiceUnavailable
		}
	}
	body := gin.H{"error": err.Error()}
	var f *fault.Error
	if errors.As(err, &f) && f.Code != "" {
		body["code"] = f.Code
	}
	c.JSON(status, body)
}
