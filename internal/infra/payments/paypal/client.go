package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"stayflow/internal/app/policies"
	"stayflow/internal/domain/shared/fault"
	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
)

// Client drives the PayPal Orders and Payments APIs with the authorize-then-
// capture flow: orders are created with intent AUTHORIZE and only captured
// when the booking is accepted.
type Client struct {
	BaseURL string
	Logger  *slog.Logger
	client  *http.Client
}

// NewClient builds a client whose transport refreshes OAuth tokens via the
// client-credentials grant.
func NewClient(ctx context.Context, baseURL, clientID, clientSecret string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api-m.sandbox.paypal.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	conf := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
	}
	httpClient := conf.Client(ctx)
	httpClient.Timeout = 30 * time.Second
	return &Client{BaseURL: baseURL, Logger: logger, client: httpClient}
}

// NewClientWithHTTP is the test seam: it skips the OAuth transport.
func NewClientWithHTTP(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Logger: logger, client: httpClient}
}

type amountJSON struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

func (c *Client) CreateOrder(ctx context.Context, amount money.Money, description string) (string, error) {
	payload := map[string]any{
		"intent": "AUTHORIZE",
		"purchase_units": []map[string]any{{
			"amount": amountJSON{
				CurrencyCode: strings.ToUpper(amount.Currency),
				Value:        fmt.Sprintf("%.2f", money.ToDecimal(amount.Amount)),
			},
			"description": description,
		}},
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.post(ctx, "/v2/checkout/orders", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) Authorize(ctx context.Context, orderRef string) (policies.PayPalAuthorization, error) {
	var out struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Authorizations []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"authorizations"`
			} `json:"payments"`
		} `json:"purchase_units"`
		Payer struct {
			PayerID string `json:"payer_id"`
			Email   string `json:"email_address"`
		} `json:"payer"`
	}
	if err := c.post(ctx, "/v2/checkout/orders/"+orderRef+"/authorize", struct{}{}, &out); err != nil {
		return policies.PayPalAuthorization{}, err
	}
	auth := policies.PayPalAuthorization{
		OrderRef:   out.ID,
		PayerID:    out.Payer.PayerID,
		PayerEmail: out.Payer.Email,
	}
	if auth.OrderRef == "" {
		auth.OrderRef = orderRef
	}
	for _, pu := range out.PurchaseUnits {
		for _, a := range pu.Payments.Authorizations {
			auth.AuthorizationRef = a.ID
			break
		}
	}
	if auth.AuthorizationRef == "" {
		return policies.PayPalAuthorization{}, fault.New(fault.ProviderRejected, "no_authorization", "order produced no authorization")
	}
	return auth, nil
}

func (c *Client) Capture(ctx context.Context, authorizationRef string) (policies.FinalizeOutcome, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.post(ctx, "/v2/payments/authorizations/"+authorizationRef+"/capture", struct{}{}, &out)
	if err != nil {
		if issue := issueOf(err); issue == "AUTHORIZATION_ALREADY_CAPTURED" {
			return policies.FinalizeOutcome{Status: domaintx.AuthCaptured, AlreadyFinal: true}, nil
		}
		return policies.FinalizeOutcome{}, err
	}
	return policies.FinalizeOutcome{Status: domaintx.AuthCaptured}, nil
}

// Void releases an un-captured authorization. A repeat void reports
// AlreadyFinal instead of failing, so the compensation is idempotent.
func (c *Client) Void(ctx context.Context, authorizationRef string) (policies.FinalizeOutcome, error) {
	err := c.post(ctx, "/v2/payments/authorizations/"+authorizationRef+"/void", nil, nil)
	if err != nil {
		switch issueOf(err) {
		case "AUTHORIZATION_VOIDED", "AUTHORIZATION_ALREADY_VOIDED":
			return policies.FinalizeOutcome{Status: domaintx.AuthVoided, AlreadyFinal: true}, nil
		case "AUTHORIZATION_ALREADY_CAPTURED":
			return policies.FinalizeOutcome{Status: domaintx.AuthCaptured, AlreadyFinal: true}, nil
		}
		return policies.FinalizeOutcome{}, err
	}
	return policies.FinalizeOutcome{Status: domaintx.AuthVoided}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fault.Wrap(fault.Transient, "paypal_unreachable", "paypal request failed", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if c.Logger != nil {
		c.Logger.Debug("paypal call", "path", path, "status", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func decodeError(status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = fmt.Sprintf("paypal returned %d", status)
	}
	code := apiErr.Name
	if len(apiErr.Details) > 0 && apiErr.Details[0].Issue != "" {
		code = apiErr.Details[0].Issue
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return fault.New(fault.Transient, code, msg)
	}
	return fault.New(fault.ProviderRejected, code, msg)
}

// issueOf digs the provider issue code out of a fault for idempotence checks.
func issueOf(err error) string {
	var f *fault.Error
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}

var _ policies.PayPalRail = (*Client)(nil)
