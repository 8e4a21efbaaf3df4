package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"stayflow/internal/app/policies"
	"stayflow/internal/domain/shared/fault"
)

// Gate obtains proof-of-human tokens from the verification service. A zero
// URL means verification is not deployed; Verify then reports no token and
// no error, and callers decide how hard their gate is.
type Gate struct {
	URL    string
	Secret string
	Logger *slog.Logger
	client *http.Client
}

func NewGate(url, secret string, logger *slog.Logger) *Gate {
	return &Gate{
		URL:    url,
		Secret: secret,
		Logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *Gate) Verify(ctx context.Context, action string) (string, error) {
	if g.URL == "" {
		return "", nil
	}
	payload, err := json.Marshal(map[string]string{"action": action})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+g.Secret)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.VerificationUnavailable, "gate_unreachable", "verification service unreachable", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return "", fault.New(fault.VerificationUnavailable, "gate_error", fmt.Sprintf("verification service returned %d", resp.StatusCode))
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fault.Wrap(fault.VerificationUnavailable, "gate_malformed", "verification response malformed", err)
	}
	return out.Token, nil
}

var _ policies.VerificationGate = (*Gate)(nil)
