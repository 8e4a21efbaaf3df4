package ginserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"stayflow/internal/app/outbox"
	"stayflow/internal/infra/inbox"
)

const webhookTolerance = 5 * time.Minute

// WebhookHandler receives provider notifications. Payloads are verified
// against the shared signing secret, deduplicated through the inbox and
// re-published on the outbox for downstream consumers. Money never moves
// here; the synchronous flows own that.
type WebhookHandler struct {
	SigningSecret []byte
	Inbox         inbox.Store
	Outbox        outbox.Outbox
	Logger        *slog.Logger
	Now           func() time.Time
}

type webhookEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    json.RawMessage `json:"data"`
}

func (h WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if !h.verifySignature(c.GetHeader("Stripe-Signature"), body) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}
	if h.Inbox != nil {
		first, err := h.Inbox.MarkSeen(c.Request.Context(), env.ID)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		if !first {
			// Redelivery: acknowledge without reprocessing.
			c.Status(http.StatusOK)
			return
		}
	}
	if h.Outbox != nil {
		rec := outbox.EventRecord{
			ID:         env.ID,
			Name:       "provider." + env.Type,
			Payload:    body,
			OccurredAt: time.Unix(env.Created, 0).UTC(),
			Aggregate:  env.ID,
			Headers:    map[string]string{"source": "stripe-webhook"},
		}
		if err := h.Outbox.Add(c.Request.Context(), rec); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		_ = h.Outbox.Flush(c.Request.Context())
	}
	if h.Logger != nil {
		h.Logger.Info("provider webhook accepted", "event_id", env.ID, "type", env.Type)
	}
	c.Status(http.StatusOK)
}

// verifySignature checks the t=...,v1=... signature header: an HMAC-SHA256
// of "<timestamp>.<payload>" under the endpoint secret, with a replay window.
func (h WebhookHandler) verifySignature(header string, body []byte) bool {
	if len(h.SigningSecret) == 0 {
		return true
	}
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts == "" || len(sigs) == 0 {
		return false
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	if d := now().Sub(time.Unix(sec, 0)); d > webhookTolerance || d < -webhookTolerance {
		return false
	}
	mac := hmac.New(sha256.New, h.SigningSecret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}

var _ WebhookHTTP = WebhookHandler{}
